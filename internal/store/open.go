package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver string
	// Path is the bbolt file.
	Path string
	// URL is the Redis or Postgres connection string.
	URL string
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverMemory, "":
		s = NewMemoryStore()
	case DriverBolt:
		s, err = NewBoltStore(opts.Path)
	case DriverRedis:
		s, err = NewRedisStore(ctx, opts.URL)
	case DriverPostgres:
		s, err = NewPostgresStore(ctx, opts.URL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", opts.Driver).Msg("[STORE] Stroke store ready")
	return s, nil
}
