package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus relays room events over Redis pub/sub on channel board:room:<id>.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(ctx context.Context, redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBus{client: client}, nil
}

func channel(roomID string) string {
	return "board:room:" + roomID
}

func (r *RedisBus) Publish(ctx context.Context, roomID string, payload []byte) error {
	if err := r.client.Publish(ctx, channel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to room %s: %w", roomID, err)
	}
	return nil
}

func (r *RedisBus) Subscribe(roomID string, handler Handler) (Subscription, error) {
	ctx := context.Background()
	pubsub := r.client.Subscribe(ctx, channel(roomID))
	// Receive waits for the subscribe confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()
	return sub, nil
}

func (r *RedisBus) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
	done   chan struct{}
}

func (s *redisSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.pubsub.Close()
		<-s.done
		if err != nil {
			log.Warn().Err(err).Msg("[BUS] closing redis subscription")
		}
	})
	return err
}
