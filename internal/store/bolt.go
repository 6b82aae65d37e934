package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"SharedBoard/internal/state"
)

var roomsBucket = []byte("rooms")

// BoltStore keeps strokes in a bbolt file: one nested bucket per room, keyed
// by the big-endian stroke id so a cursor walks them in commit order. The
// bucket sequence is the id counter.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(roomsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &BoltStore{db: db}, nil
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func (b *BoltStore) Append(ctx context.Context, roomID string, s state.Stroke) (state.Stroke, error) {
	var stored state.Stroke
	err := b.db.Update(func(tx *bolt.Tx) error {
		room, err := tx.Bucket(roomsBucket).CreateBucketIfNotExists([]byte(roomID))
		if err != nil {
			return err
		}
		id, err := room.NextSequence()
		if err != nil {
			return err
		}
		stored = s.Clone()
		stored.ID = id
		stored.RoomID = roomID
		data, err := state.Encode(stored)
		if err != nil {
			return err
		}
		return room.Put(idKey(id), data)
	})
	if err != nil {
		return state.Stroke{}, fmt.Errorf("%w: append to %s: %w", ErrUnavailable, roomID, err)
	}
	return stored, nil
}

func (b *BoltStore) Strokes(ctx context.Context, roomID string) ([]state.Stroke, error) {
	strokes := []state.Stroke{}
	err := b.db.View(func(tx *bolt.Tx) error {
		room := tx.Bucket(roomsBucket).Bucket([]byte(roomID))
		if room == nil {
			return nil
		}
		return room.ForEach(func(k, v []byte) error {
			s, err := state.Decode(v)
			if err != nil {
				return fmt.Errorf("stroke %x: %w", k, err)
			}
			strokes = append(strokes, s)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, roomID, err)
	}
	return strokes, nil
}

// Clear deletes the room's keys but keeps its bucket, and with it the
// sequence that numbers new strokes.
func (b *BoltStore) Clear(ctx context.Context, roomID string) (uint64, error) {
	var lastID uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		room := tx.Bucket(roomsBucket).Bucket([]byte(roomID))
		if room == nil {
			return nil
		}
		lastID = room.Sequence()
		var keys [][]byte
		if err := room.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := room.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: clear %s: %w", ErrUnavailable, roomID, err)
	}
	return lastID, nil
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
