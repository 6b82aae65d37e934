package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"SharedBoard/internal/client"
	"SharedBoard/internal/export"
	boardnet "SharedBoard/internal/net"
)

var ErrSyncTimeout = errors.New("timed out waiting for the room snapshot")

type ExportOptions struct {
	// Addr is the relay as host:port, a URL or a share link. Empty means
	// browse the local network for one.
	Addr    string
	RoomID  string
	Out     string
	Title   string
	Timeout time.Duration
}

// ExportRoom joins a room as a read-only participant and writes what it
// shows to opts.Out.
func ExportRoom(ctx context.Context, opts ExportOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	addr := boardnet.AddressFromLink(opts.Addr)
	if addr == "" {
		found, err := boardnet.Browse(opts.Timeout)
		if err != nil {
			return err
		}
		log.Info().Str("relay", found).Msg("[EXPORT] Found relay on the local network")
		addr = found
	}
	if opts.Title == "" {
		opts.Title = opts.RoomID
	}

	ch := boardnet.NewChannel(addr)
	defer ch.Close()

	cfg := client.DefaultConfig()
	cfg.MaxBackoff = time.Second
	session := client.NewSession(opts.RoomID, ch, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.Run(runCtx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	select {
	case <-session.Synced():
	case <-time.After(opts.Timeout):
		return fmt.Errorf("%w from %s", ErrSyncTimeout, addr)
	case <-ctx.Done():
		return ctx.Err()
	}

	strokes, err := session.Render(ctx)
	if err != nil {
		return err
	}
	if err := export.ExportFile(opts.Out, opts.Title, strokes); err != nil {
		return err
	}
	log.Info().Str("room", opts.RoomID).Int("strokes", len(strokes)).Str("out", opts.Out).Msg("[EXPORT] Board written")
	return nil
}
