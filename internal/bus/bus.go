package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DriverNone  = "none"
	DriverLocal = "local"
	DriverNATS  = "nats"
	DriverRedis = "redis"
)

var ErrUnknownDriver = errors.New("unknown bus driver")

// Handler receives one payload published to a room by any relay.
type Handler func(payload []byte)

// Subscription stops delivery to its handler.
type Subscription interface {
	Unsubscribe() error
}

// Bus fans room events out between relay instances that share a store.
type Bus interface {
	Publish(ctx context.Context, roomID string, payload []byte) error
	Subscribe(roomID string, handler Handler) (Subscription, error)
	Close() error
}

type Options struct {
	Driver string
	URL    string
}

// Open builds the bus named by opts.Driver. DriverNone yields a nil Bus:
// the relay then runs on its own.
func Open(ctx context.Context, opts Options) (Bus, error) {
	var (
		b   Bus
		err error
	)
	switch opts.Driver {
	case DriverNone, "":
		return nil, nil
	case DriverLocal:
		b = NewLocalBus()
	case DriverNATS:
		b, err = NewNATSBus(opts.URL)
	case DriverRedis:
		b, err = NewRedisBus(ctx, opts.URL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", opts.Driver).Msg("[BUS] Room bus ready")
	return b, nil
}

// LocalBus delivers in process. Several relays built on one LocalBus behave
// like relays sharing a broker.
type LocalBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]Handler)}
}

func (l *LocalBus) Publish(ctx context.Context, roomID string, payload []byte) error {
	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.subs[roomID]))
	for _, h := range l.subs[roomID] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(append([]byte(nil), payload...))
	}
	return nil
}

func (l *LocalBus) Subscribe(roomID string, handler Handler) (Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	if l.subs[roomID] == nil {
		l.subs[roomID] = make(map[int]Handler)
	}
	l.subs[roomID][id] = handler
	return &localSubscription{bus: l, roomID: roomID, id: id}, nil
}

func (l *LocalBus) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = make(map[string]map[int]Handler)
	return nil
}

type localSubscription struct {
	bus    *LocalBus
	roomID string
	id     int
}

func (s *localSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs[s.roomID], s.id)
	if len(s.bus.subs[s.roomID]) == 0 {
		delete(s.bus.subs, s.roomID)
	}
	return nil
}
