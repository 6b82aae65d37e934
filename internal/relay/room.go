package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"SharedBoard/internal/bus"
	boardnet "SharedBoard/internal/net"
	"SharedBoard/internal/state"
)

const storeTimeout = 5 * time.Second

type joinRequest struct {
	member  *Member
	errChan chan error
}

// command is a publish or a clear. Both travel on one channel so a member's
// clear is never applied ahead of strokes it published before it.
type command struct {
	from    *Member // publisher; unset for clears
	stroke  state.Stroke
	clear   bool
	errChan chan error // clears only
}

// room is the actor owning one room's membership. Every commit, clear and
// join of the room runs on its goroutine, one at a time.
type room struct {
	id      string
	relay   *Relay
	members map[*Member]struct{}
	sub     bus.Subscription

	joins    chan joinRequest
	leaves   chan *Member
	commands chan command
	remote   chan boardnet.NetworkMessage

	stop    chan struct{}
	stopped chan struct{}
}

func newRoom(id string, r *Relay) *room {
	return &room{
		id:       id,
		relay:    r,
		members:  make(map[*Member]struct{}),
		joins:    make(chan joinRequest),
		leaves:   make(chan *Member, 16),
		commands: make(chan command, 256),
		remote:   make(chan boardnet.NetworkMessage, 256),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (rm *room) run() {
	defer close(rm.stopped)
	log.Debug().Str("room", rm.id).Msg("[ROOM] Actor started")

	for {
		select {
		case req := <-rm.joins:
			req.errChan <- rm.handleJoin(req.member)
		case m := <-rm.leaves:
			delete(rm.members, m)
		case cmd := <-rm.commands:
			rm.handleCommand(cmd)
		case msg := <-rm.remote:
			rm.broadcast(msg, nil)
		case <-rm.stop:
			rm.drain()
			log.Debug().Str("room", rm.id).Msg("[ROOM] Actor stopped")
			return
		}
	}
}

// drain applies the commands still queued when the room is stopped. Each
// of them was accepted from a member, so it is committed rather than lost.
func (rm *room) drain() {
	for {
		select {
		case m := <-rm.leaves:
			delete(rm.members, m)
		case cmd := <-rm.commands:
			rm.handleCommand(cmd)
		default:
			return
		}
	}
}

// retire detaches the room from the bus and stops the actor. The
// subscription goes first so a pending bus delivery can still drain.
func (rm *room) retire() {
	if rm.sub != nil {
		if err := rm.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("room", rm.id).Msg("[ROOM] Bus unsubscribe failed")
		}
	}
	close(rm.stop)
	<-rm.stopped
}

func (rm *room) join(m *Member) error {
	req := joinRequest{member: m, errChan: make(chan error, 1)}
	select {
	case rm.joins <- req:
	case <-rm.stopped:
		return ErrRoomClosed
	}
	select {
	case err := <-req.errChan:
		return err
	case <-rm.stopped:
		return ErrRoomClosed
	}
}

func (rm *room) leave(m *Member) {
	select {
	case rm.leaves <- m:
	case <-rm.stopped:
	}
}

// publish queues a stroke for commit. The outcome reaches the publisher as
// a committed or error event.
func (rm *room) publish(from *Member, s state.Stroke) error {
	select {
	case rm.commands <- command{from: from, stroke: s}:
		return nil
	case <-rm.stopped:
		return ErrRoomClosed
	}
}

func (rm *room) clear() error {
	cmd := command{clear: true, errChan: make(chan error, 1)}
	select {
	case rm.commands <- cmd:
	case <-rm.stopped:
		return ErrRoomClosed
	}
	select {
	case err := <-cmd.errChan:
		return err
	case <-rm.stopped:
		// The actor may have answered just before it stopped.
		select {
		case err := <-cmd.errChan:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// deliverRemote hands an event from another relay to the actor.
func (rm *room) deliverRemote(msg boardnet.NetworkMessage) {
	select {
	case rm.remote <- msg:
	case <-rm.stopped:
	}
}

// handleJoin reads the snapshot and registers the member in the same actor
// step, so no commit can fall between the two.
func (rm *room) handleJoin(m *Member) error {
	ctx, cancel := context.WithTimeout(rm.relay.ctx, storeTimeout)
	defer cancel()

	strokes, err := rm.relay.snapshots.GetStrokes(ctx, rm.id)
	if err != nil {
		log.Error().Err(err).Str("room", rm.id).Msg("[ROOM] Snapshot read failed")
		return err
	}
	msg, err := boardnet.NewSnapshotMessage(rm.id, strokes)
	if err != nil {
		return err
	}
	m.send(msg)
	rm.members[m] = struct{}{}
	return nil
}

func (rm *room) handleCommand(cmd command) {
	if cmd.clear {
		cmd.errChan <- rm.handleClear()
		return
	}
	rm.handlePublish(cmd)
}

func (rm *room) handlePublish(req command) {
	ctx, cancel := context.WithTimeout(rm.relay.ctx, storeTimeout)
	defer cancel()

	committed, err := rm.relay.snapshots.Commit(ctx, rm.id, req.stroke)
	if err != nil {
		log.Warn().Err(err).Str("room", rm.id).Str("ref", req.stroke.Ref).Msg("[ROOM] Commit failed")
		req.from.sendError(rm.id, req.stroke.Ref, err)
		return
	}
	log.Debug().Str("room", rm.id).Uint64("id", committed.ID).Msg("[ROOM] Stroke committed")

	req.from.send(boardnet.NetworkMessage{
		Type:   boardnet.TypeCommitted,
		RoomID: rm.id,
		Ref:    committed.Ref,
		ID:     committed.ID,
	})

	msg, err := boardnet.NewStrokeMessage(boardnet.TypeStroke, committed)
	if err != nil {
		log.Error().Err(err).Str("room", rm.id).Msg("[ROOM] Failed to encode committed stroke")
		return
	}
	rm.broadcast(msg, req.from)
	rm.relay.publishBus(ctx, rm.id, msg)
}

// handleClear truncates the room and tells every member, the one asking
// included. The cleared event carries the last removed id so boards can drop
// strokes that were committed before the clear but are still on their way.
func (rm *room) handleClear() error {
	ctx, cancel := context.WithTimeout(rm.relay.ctx, storeTimeout)
	defer cancel()

	lastID, err := rm.relay.snapshots.Clear(ctx, rm.id)
	if err != nil {
		log.Warn().Err(err).Str("room", rm.id).Msg("[ROOM] Clear failed")
		return err
	}
	log.Info().Str("room", rm.id).Uint64("through", lastID).Msg("[ROOM] Cleared")

	msg := boardnet.NetworkMessage{Type: boardnet.TypeCleared, RoomID: rm.id, ID: lastID}
	rm.broadcast(msg, nil)
	rm.relay.publishBus(ctx, rm.id, msg)
	return nil
}

// broadcast queues msg for every member except the sender.
func (rm *room) broadcast(msg boardnet.NetworkMessage, except *Member) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("room", rm.id).Msg("[ROOM] Failed to encode broadcast")
		return
	}
	for m := range rm.members {
		if m == except {
			continue
		}
		m.enqueue(data)
	}
}
