package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	boardnet "SharedBoard/internal/net"
)

// Conn is one client connection as the relay sees it.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	// Close must be safe to call concurrently with Write.
	Close(reason string)
}

// Member is a connected client. Its read pump drives room membership; its
// write pump is the only writer of data frames to the connection.
type Member struct {
	id      string
	conn    Conn
	relay   *Relay
	limiter *rate.Limiter
	outbox  chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// Only touched by the read pump.
	room *room
}

func newMember(conn Conn, r *Relay) *Member {
	return &Member{
		id:      uuid.NewString(),
		conn:    conn,
		relay:   r,
		limiter: rate.NewLimiter(rate.Limit(r.opts.RatePerSecond), r.opts.RateBurst),
		outbox:  make(chan []byte, r.opts.OutboxSize),
		done:    make(chan struct{}),
	}
}

func (m *Member) ID() string { return m.id }

// enqueue hands data to the write pump without blocking. A member that
// cannot keep up is disconnected; it will re-join and get a fresh snapshot
// instead of a stream with holes in it.
func (m *Member) enqueue(data []byte) {
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.outbox <- data:
	default:
		log.Warn().Str("member", m.id).Msg("[RELAY] Outbox full, disconnecting slow member")
		m.Close("slow consumer")
	}
}

func (m *Member) send(msg boardnet.NetworkMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("member", m.id).Msg("[RELAY] Failed to encode message")
		return
	}
	m.enqueue(data)
}

func (m *Member) sendError(roomID, ref string, err error) {
	m.send(boardnet.NetworkMessage{Type: boardnet.TypeError, RoomID: roomID, Ref: ref, Error: err.Error()})
}

// Close disconnects the member. Safe to call more than once.
func (m *Member) Close(reason string) {
	m.closeOnce.Do(func() {
		close(m.done)
		m.conn.Close(reason)
	})
}

// ReadPump handles inbound messages until the connection fails. It leaves
// the current room on the way out.
func (m *Member) ReadPump() {
	defer func() {
		m.leaveRoom()
		m.Close("")
		m.relay.forget(m)
	}()

	for {
		data, err := m.conn.Read()
		if err != nil {
			return
		}

		var msg boardnet.NetworkMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.sendError("", "", errors.New("invalid message"))
			continue
		}
		m.handle(msg)
	}
}

func (m *Member) handle(msg boardnet.NetworkMessage) {
	switch msg.Type {
	case boardnet.TypeJoin:
		m.joinRoom(msg.RoomID)

	case boardnet.TypeLeave:
		m.leaveRoom()

	case boardnet.TypePublish:
		if m.room == nil {
			m.sendError(msg.RoomID, msg.Ref, ErrNotInRoom)
			return
		}
		if !m.limiter.Allow() {
			m.sendError(m.room.id, msg.Ref, ErrRateLimited)
			return
		}
		stroke, err := msg.DecodeStroke()
		if err != nil {
			log.Debug().Err(err).Str("member", m.id).Msg("[RELAY] Malformed stroke dropped")
			m.sendError(m.room.id, msg.Ref, err)
			return
		}
		if stroke.Ref == "" {
			stroke.Ref = msg.Ref
		}
		if err := m.room.publish(m, stroke); err != nil {
			m.sendError(m.room.id, msg.Ref, err)
		}

	case boardnet.TypeClear:
		if m.room == nil {
			m.sendError(msg.RoomID, "", ErrNotInRoom)
			return
		}
		if !m.limiter.Allow() {
			m.sendError(m.room.id, "", ErrRateLimited)
			return
		}
		if err := m.room.clear(); err != nil {
			m.sendError(m.room.id, "", err)
		}

	default:
		m.sendError(msg.RoomID, msg.Ref, errors.New("unknown message type "+string(msg.Type)))
	}
}

func (m *Member) joinRoom(roomID string) {
	// Joining the current room again re-delivers its snapshot.
	m.leaveRoom()

	rm, err := m.relay.acquire(roomID)
	if err != nil {
		m.sendError(roomID, "", err)
		return
	}
	if err := rm.join(m); err != nil {
		m.relay.release(rm)
		m.sendError(roomID, "", err)
		return
	}
	m.room = rm
	log.Info().Str("room", roomID).Str("member", m.id).Msg("[RELAY] Member joined")
}

func (m *Member) leaveRoom() {
	if m.room == nil {
		return
	}
	rm := m.room
	m.room = nil
	rm.leave(m)
	m.relay.release(rm)
	log.Info().Str("room", rm.id).Str("member", m.id).Msg("[RELAY] Member left")
}

// WritePump writes queued frames and keepalive pings until the member is
// closed or a write fails.
func (m *Member) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-m.outbox:
			if err := m.conn.Write(data); err != nil {
				m.Close("")
				return
			}
		case <-ticker.C:
			if err := m.conn.Ping(); err != nil {
				m.Close("")
				return
			}
		case <-m.done:
			return
		}
	}
}
