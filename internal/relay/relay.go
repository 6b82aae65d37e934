package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"SharedBoard/internal/bus"
	boardnet "SharedBoard/internal/net"
	"SharedBoard/internal/store"
)

type Options struct {
	// OutboxSize is how many frames may wait for a member's write pump
	// before the member is dropped as too slow.
	OutboxSize    int
	PingInterval  time.Duration
	RatePerSecond float64
	RateBurst     int
}

func DefaultOptions() Options {
	return Options{
		OutboxSize:    256,
		PingInterval:  30 * time.Second,
		RatePerSecond: 30,
		RateBurst:     60,
	}
}

// busEnvelope is what relays exchange over the bus. Origin lets a relay
// skip the events it published itself.
type busEnvelope struct {
	Origin  string                  `json:"origin"`
	Message boardnet.NetworkMessage `json:"message"`
}

type roomEntry struct {
	room *room
	refs int
}

// Relay hosts rooms. Rooms are started on first join and retired when the
// last member leaves; the strokes stay in the store.
type Relay struct {
	origin    string
	snapshots *SnapshotService
	bus       bus.Bus
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	rooms  map[string]*roomEntry
	// retiring holds rooms whose actor is still applying queued commands.
	// A new room with the same id waits for it so its snapshot is complete.
	retiring map[string]*room
	members  map[*Member]struct{}
}

// New creates a relay over the given store. b may be nil.
func New(s store.Store, b bus.Bus, opts Options) *Relay {
	defaults := DefaultOptions()
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaults.OutboxSize
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaults.RatePerSecond
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaults.RateBurst
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		origin:    uuid.NewString(),
		snapshots: NewSnapshotService(s),
		bus:       b,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[string]*roomEntry),
		retiring:  make(map[string]*room),
		members:   make(map[*Member]struct{}),
	}
}

func (r *Relay) Snapshots() *SnapshotService { return r.snapshots }

// Serve runs a member on conn until the connection ends.
func (r *Relay) Serve(conn Conn) {
	m := newMember(conn, r)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close("relay shutting down")
		return
	}
	r.members[m] = struct{}{}
	r.mu.Unlock()

	log.Info().Str("member", m.id).Msg("[RELAY] Member connected")
	go m.WritePump(r.opts.PingInterval)
	m.ReadPump()
	log.Info().Str("member", m.id).Msg("[RELAY] Member disconnected")
}

func (r *Relay) forget(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, m)
}

// acquire returns the running room for roomID, starting it if needed, and
// takes a reference on it. Every acquire is paired with a release.
func (r *Relay) acquire(roomID string) (*room, error) {
	if !ValidRoomID(roomID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.closed {
			return nil, ErrRelayClosed
		}
		if e, ok := r.rooms[roomID]; ok {
			e.refs++
			return e.room, nil
		}
		old, ok := r.retiring[roomID]
		if !ok {
			break
		}
		r.mu.Unlock()
		<-old.stopped
		r.mu.Lock()
		if r.retiring[roomID] == old {
			delete(r.retiring, roomID)
		}
	}

	rm := newRoom(roomID, r)
	if r.bus != nil {
		sub, err := r.bus.Subscribe(roomID, r.busHandler(rm))
		if err != nil {
			return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
		}
		rm.sub = sub
	}
	go rm.run()
	r.rooms[roomID] = &roomEntry{room: rm, refs: 1}
	log.Info().Str("room", roomID).Msg("[RELAY] Room started")
	return rm, nil
}

func (r *Relay) release(rm *room) {
	r.mu.Lock()
	e, ok := r.rooms[rm.id]
	if !ok || e.room != rm {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, rm.id)
	r.retiring[rm.id] = rm
	r.mu.Unlock()

	rm.retire()

	r.mu.Lock()
	if r.retiring[rm.id] == rm {
		delete(r.retiring, rm.id)
	}
	r.mu.Unlock()
	log.Info().Str("room", rm.id).Msg("[RELAY] Room retired")
}

func (r *Relay) busHandler(rm *room) bus.Handler {
	return func(payload []byte) {
		var env busEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Warn().Err(err).Str("room", rm.id).Msg("[RELAY] Undecodable bus event dropped")
			return
		}
		if env.Origin == r.origin {
			return
		}
		switch env.Message.Type {
		case boardnet.TypeStroke, boardnet.TypeCleared:
			rm.deliverRemote(env.Message)
		default:
			log.Warn().Str("room", rm.id).Str("type", string(env.Message.Type)).Msg("[RELAY] Unexpected bus event dropped")
		}
	}
}

func (r *Relay) publishBus(ctx context.Context, roomID string, msg boardnet.NetworkMessage) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(busEnvelope{Origin: r.origin, Message: msg})
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("[RELAY] Failed to encode bus event")
		return
	}
	if err := r.bus.Publish(ctx, roomID, payload); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("[RELAY] Bus publish failed")
	}
}

// ClearRoom clears a room on behalf of a non-member, such as the HTTP API.
// Members of the room are told through a cleared event.
func (r *Relay) ClearRoom(ctx context.Context, roomID string) error {
	if !ValidRoomID(roomID) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}

	r.mu.Lock()
	e, ok := r.rooms[roomID]
	if ok {
		e.refs++
	}
	old, retiring := r.retiring[roomID]
	r.mu.Unlock()

	if ok {
		defer r.release(e.room)
		return e.room.clear()
	}
	if retiring {
		<-old.stopped
	}

	lastID, err := r.snapshots.Clear(ctx, roomID)
	if err != nil {
		return err
	}
	r.publishBus(ctx, roomID, boardnet.NetworkMessage{Type: boardnet.TypeCleared, RoomID: roomID, ID: lastID})
	return nil
}

// Stats reports the number of running rooms and connected members.
func (r *Relay) Stats() (rooms, members int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms), len(r.members)
}

// Close disconnects every member and stops every room.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	members := make([]*Member, 0, len(r.members))
	for m := range r.members {
		members = append(members, m)
	}
	rooms := make([]*room, 0, len(r.rooms))
	for _, e := range r.rooms {
		rooms = append(rooms, e.room)
	}
	r.rooms = make(map[string]*roomEntry)
	r.mu.Unlock()

	for _, m := range members {
		m.Close("relay shutting down")
	}
	for _, rm := range rooms {
		rm.retire()
	}
	r.cancel()
	log.Info().Int("members", len(members)).Int("rooms", len(rooms)).Msg("[RELAY] Closed")
	return nil
}
