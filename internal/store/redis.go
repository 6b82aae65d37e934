package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"SharedBoard/internal/state"
)

// appendScript bumps the room counter and pushes the stroke in one atomic
// step. List entries are "<id> <stroke json>".
var appendScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[1])
redis.call('RPUSH', KEYS[2], id .. ' ' .. ARGV[1])
return id
`)

// clearScript drops the list and reads the counter in the same step, so no
// append can land between the two.
var clearScript = redis.NewScript(`
redis.call('DEL', KEYS[2])
return tonumber(redis.call('GET', KEYS[1]) or '0')
`)

// RedisStore keeps each room as a Redis list plus an id counter. Both keys
// share a hash tag so they live in the same cluster slot.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis: %w", ErrUnavailable, err)
	}
	return &RedisStore{client: client}, nil
}

func seqKey(roomID string) string     { return "board:{" + roomID + "}:seq" }
func strokesKey(roomID string) string { return "board:{" + roomID + "}:strokes" }

func (r *RedisStore) Append(ctx context.Context, roomID string, s state.Stroke) (state.Stroke, error) {
	stored := s.Clone()
	stored.ID = 0
	stored.RoomID = roomID
	data, err := state.Encode(stored)
	if err != nil {
		return state.Stroke{}, err
	}

	id, err := appendScript.Run(ctx, r.client, []string{seqKey(roomID), strokesKey(roomID)}, data).Int64()
	if err != nil {
		return state.Stroke{}, unavailable("append to "+roomID, err)
	}
	stored.ID = uint64(id)
	return stored, nil
}

func (r *RedisStore) Strokes(ctx context.Context, roomID string) ([]state.Stroke, error) {
	entries, err := r.client.LRange(ctx, strokesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, unavailable("read "+roomID, err)
	}
	strokes := make([]state.Stroke, 0, len(entries))
	for _, entry := range entries {
		s, err := decodeEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: room %s: %w", ErrUnavailable, roomID, err)
		}
		strokes = append(strokes, s)
	}
	return strokes, nil
}

// Clear deletes the list and leaves the counter in place.
func (r *RedisStore) Clear(ctx context.Context, roomID string) (uint64, error) {
	lastID, err := clearScript.Run(ctx, r.client, []string{seqKey(roomID), strokesKey(roomID)}).Int64()
	if err != nil {
		return 0, unavailable("clear "+roomID, err)
	}
	return uint64(lastID), nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func decodeEntry(entry string) (state.Stroke, error) {
	idPart, payload, ok := strings.Cut(entry, " ")
	if !ok {
		return state.Stroke{}, errors.New("entry without id")
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return state.Stroke{}, fmt.Errorf("entry id: %w", err)
	}
	s, err := state.Decode([]byte(payload))
	if err != nil {
		return state.Stroke{}, err
	}
	s.ID = id
	return s, nil
}
