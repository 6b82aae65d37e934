package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSBus maps each room onto the subject board.room.<roomID>.
type NATSBus struct {
	conn *nats.Conn
}

func NewNATSBus(url string) (*NATSBus, error) {
	nc, err := nats.Connect(url, nats.Name("sharedboard-relay"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{conn: nc}, nil
}

func subject(roomID string) string {
	return fmt.Sprintf("board.room.%s", roomID)
}

func (n *NATSBus) Publish(ctx context.Context, roomID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.conn.Publish(subject(roomID), payload); err != nil {
		return fmt.Errorf("failed to publish to room %s: %w", roomID, err)
	}
	return nil
}

func (n *NATSBus) Subscribe(roomID string, handler Handler) (Subscription, error) {
	sub, err := n.conn.Subscribe(subject(roomID), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}
	// Make sure the server knows about the interest before returning, so a
	// publish right after Subscribe is not missed.
	if err := n.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}
	return sub, nil
}

func (n *NATSBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
