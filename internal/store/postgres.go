package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"SharedBoard/internal/state"
	"SharedBoard/internal/store/migrations"
)

// PostgresStore keeps strokes in the strokes table. The per-room counter
// lives in rooms.last_stroke_id and is bumped in the same transaction as
// the insert.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to connect to Postgres: %w", ErrUnavailable, err)
	}
	if err := migrations.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Append(ctx context.Context, roomID string, s state.Stroke) (state.Stroke, error) {
	stored := s.Clone()
	stored.ID = 0
	stored.RoomID = roomID
	data, err := state.Encode(stored)
	if err != nil {
		return state.Stroke{}, err
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO rooms (id, last_stroke_id) VALUES ($1, 1)
			 ON CONFLICT (id) DO UPDATE SET last_stroke_id = rooms.last_stroke_id + 1
			 RETURNING last_stroke_id`, roomID).Scan(&id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO strokes (room_id, id, payload) VALUES ($1, $2, $3)",
			roomID, id, string(data)); err != nil {
			return err
		}
		stored.ID = uint64(id)
		return nil
	})
	if err != nil {
		return state.Stroke{}, unavailable("append to "+roomID, err)
	}
	return stored, nil
}

func (p *PostgresStore) Strokes(ctx context.Context, roomID string) ([]state.Stroke, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id, payload FROM strokes WHERE room_id = $1 ORDER BY id", roomID)
	if err != nil {
		return nil, unavailable("read "+roomID, err)
	}
	defer rows.Close()

	strokes := []state.Stroke{}
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, unavailable("scan "+roomID, err)
		}
		s, err := state.Decode([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: stroke %d of %s: %w", ErrUnavailable, id, roomID, err)
		}
		s.ID = uint64(id)
		strokes = append(strokes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read "+roomID, err)
	}
	return strokes, nil
}

// Clear deletes the room's strokes. The rooms row and its counter stay.
// The rooms row is locked first so the counter read and the delete are not
// interleaved with an Append.
func (p *PostgresStore) Clear(ctx context.Context, roomID string) (uint64, error) {
	var lastID int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			"SELECT last_stroke_id FROM rooms WHERE id = $1 FOR UPDATE", roomID).Scan(&lastID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "DELETE FROM strokes WHERE room_id = $1", roomID)
		return err
	})
	if err != nil {
		return 0, unavailable("clear "+roomID, err)
	}
	return uint64(lastID), nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
