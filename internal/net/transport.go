package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"SharedBoard/internal/state"
)

var (
	// ErrConnectionLost is reported when the relay connection drops. The
	// client must join again to resynchronize from a fresh snapshot.
	ErrConnectionLost = errors.New("connection to relay lost")
	ErrNotJoined      = errors.New("not joined to a room")
	ErrChannelClosed  = errors.New("channel closed")
)

const writeWait = 10 * time.Second

// Event is one inbound item from the relay: either a message or the loss of
// the connection.
type Event struct {
	Message NetworkMessage
	Err     error
}

// Channel is the client side of a room channel. It is bound to one relay
// address and may join, leave and rejoin rooms over its lifetime. All methods
// are safe for concurrent use.
type Channel struct {
	addr   string
	dialer *websocket.Dialer
	events chan Event

	// done is closed by Close and releases a read loop blocked on a full
	// events buffer nobody drains any more.
	done      chan struct{}
	closeOnce sync.Once
	loops     sync.WaitGroup

	mu     sync.Mutex
	conn   *websocket.Conn
	roomID string
}

// NewChannel creates a channel for the relay at addr, given as host:port or as
// a ws://, wss://, http:// or https:// URL.
func NewChannel(addr string) *Channel {
	return &Channel{
		addr:   addr,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

// Events streams inbound messages. After a connection loss one event with
// Err set is delivered; nothing more arrives until the next Join.
func (c *Channel) Events() <-chan Event { return c.events }

// Join connects if needed and asks the relay to add this client to roomID.
// The relay answers with a snapshot event.
func (c *Channel) Join(ctx context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return err
		}
	}
	c.roomID = roomID
	return c.write(ctx, NetworkMessage{Type: TypeJoin, RoomID: roomID})
}

// Publish sends a finished stroke to the current room. It does not wait for
// the relay's acknowledgment.
func (c *Channel) Publish(ctx context.Context, s state.Stroke) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID == "" {
		return ErrNotJoined
	}
	s.RoomID = c.roomID
	s.ID = 0
	msg, err := NewStrokeMessage(TypePublish, s)
	if err != nil {
		return err
	}
	return c.write(ctx, msg)
}

// Clear asks the relay to clear the current room for every member.
func (c *Channel) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID == "" {
		return ErrNotJoined
	}
	return c.write(ctx, NetworkMessage{Type: TypeClear, RoomID: c.roomID})
}

// Leave ends membership of the current room and keeps the connection open.
func (c *Channel) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID == "" {
		return nil
	}
	roomID := c.roomID
	c.roomID = ""
	if c.conn == nil {
		return nil
	}
	return c.write(ctx, NetworkMessage{Type: TypeLeave, RoomID: roomID})
}

// Close drops the connection without reporting it as lost and waits for the
// read loop to exit. The channel cannot be joined again afterwards.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.roomID = ""
	c.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.loops.Wait()
	return err
}

func (c *Channel) endpoint() (string, error) {
	addr := c.addr
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	return u.String(), nil
}

// dial must be called with c.mu held.
func (c *Channel) dial(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return fmt.Errorf("relay address %q: %w", c.addr, err)
	}
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrConnectionLost, endpoint, err)
	}
	c.conn = conn
	log.Info().Str("relay", endpoint).Msg("[CLIENT] connected")
	c.loops.Add(1)
	go c.readLoop(conn)
	return nil
}

// write must be called with c.mu held. A failed write closes the connection;
// the read loop then reports the loss.
func (c *Channel) write(ctx context.Context, msg NetworkMessage) error {
	if c.conn == nil {
		return ErrConnectionLost
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(msg); err != nil {
		c.conn.Close()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.loops.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.lost(conn, err)
			return
		}
		var msg NetworkMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("[CLIENT] undecodable frame dropped")
			continue
		}
		select {
		case c.events <- Event{Message: msg}:
		case <-c.done:
			conn.Close()
			return
		}
	}
}

func (c *Channel) lost(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.Close()
	if !current {
		return
	}
	log.Warn().Err(cause).Msg("[CLIENT] relay connection lost")
	select {
	case c.events <- Event{Err: fmt.Errorf("%w: %v", ErrConnectionLost, cause)}:
	case <-c.done:
	}
}
