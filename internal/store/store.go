package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"SharedBoard/internal/state"
)

var (
	// ErrUnavailable wraps failures of the backing store.
	ErrUnavailable   = errors.New("stroke store unavailable")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store holds the committed strokes of every room in commit order.
// All implementations must be safe for concurrent use, and each call must be
// atomic: a concurrent Strokes sees an appended stroke fully or not at all.
type Store interface {
	// Append assigns the next id of the room to s and stores it last.
	// Ids keep increasing across Clear so a stale redelivery can never
	// collide with a newer stroke.
	Append(ctx context.Context, roomID string, s state.Stroke) (state.Stroke, error)

	// Strokes returns every stroke of the room in commit order.
	Strokes(ctx context.Context, roomID string) ([]state.Stroke, error)

	// Clear removes every stroke of the room and returns the last id
	// assigned before it. Every removed stroke has an id at or below it and
	// every later Append gets a higher one.
	Clear(ctx context.Context, roomID string) (uint64, error)

	Close() error
}

type roomLog struct {
	lastID  uint64
	strokes []state.Stroke
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*roomLog),
	}
}

// Append stores a copy of s so later changes by the caller cannot leak in.
func (m *MemoryStore) Append(ctx context.Context, roomID string, s state.Stroke) (state.Stroke, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rl, ok := m.rooms[roomID]
	if !ok {
		rl = &roomLog{}
		m.rooms[roomID] = rl
	}
	rl.lastID++
	stored := s.Clone()
	stored.ID = rl.lastID
	stored.RoomID = roomID
	rl.strokes = append(rl.strokes, stored)
	return stored.Clone(), nil
}

func (m *MemoryStore) Strokes(ctx context.Context, roomID string) ([]state.Stroke, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rl, ok := m.rooms[roomID]
	if !ok {
		return []state.Stroke{}, nil
	}
	out := make([]state.Stroke, len(rl.strokes))
	for i, s := range rl.strokes {
		out[i] = s.Clone()
	}
	return out, nil
}

// Clear drops the strokes but keeps the room's id counter.
func (m *MemoryStore) Clear(ctx context.Context, roomID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rl, ok := m.rooms[roomID]
	if !ok {
		return 0, nil
	}
	rl.strokes = nil
	return rl.lastID, nil
}

func (m *MemoryStore) Close() error { return nil }

// unavailable wraps a backend failure with ErrUnavailable. Context errors
// pass through untouched so callers can tell a cancelled request apart.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
