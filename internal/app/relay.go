package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"

	"SharedBoard/internal/bus"
	"SharedBoard/internal/config"
	boardnet "SharedBoard/internal/net"
	"SharedBoard/internal/relay"
	"SharedBoard/internal/store"
)

const shutdownTimeout = 5 * time.Second

// RelayApp wires the relay to its store, bus and HTTP server.
type RelayApp struct {
	cfg    config.Config
	store  store.Store
	bus    bus.Bus
	relay  *relay.Relay
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	mdns     *mdns.Server
}

func NewRelayApp(ctx context.Context, cfg config.Config) (*RelayApp, error) {
	log.Info().Msg("[APP] Initializing relay components...")

	st, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		URL:    cfg.Store.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	b, err := bus.Open(ctx, bus.Options{Driver: cfg.Bus.Driver, URL: cfg.Bus.URL})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open bus: %w", err)
	}

	rel := relay.New(st, b, relay.Options{
		OutboxSize:    cfg.OutboxSize,
		PingInterval:  cfg.PingInterval,
		RatePerSecond: cfg.Rate.PerSecond,
		RateBurst:     cfg.Rate.Burst,
	})

	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := relay.NewRouter(relay.NewHandler(rel, cfg.AllowedOrigins))

	return &RelayApp{
		cfg:    cfg,
		store:  st,
		bus:    b,
		relay:  rel,
		server: &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Addr returns the address the relay listens on once Run has started.
func (a *RelayApp) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Run serves until ctx is done, then shuts everything down.
func (a *RelayApp) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Port))
	if err != nil {
		a.closeBackends()
		return fmt.Errorf("failed to listen on port %d: %w", a.cfg.Port, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	a.mu.Lock()
	a.listener = ln
	if a.cfg.Advertise {
		server, err := boardnet.Advertise(port)
		if err != nil {
			log.Warn().Err(err).Msg("[APP] mDNS advertisement disabled")
		} else {
			a.mdns = server
		}
	}
	a.mu.Unlock()

	ip, err := boardnet.GetOutgoingIP()
	if err != nil {
		ip = "127.0.0.1"
	}
	log.Info().Int("port", port).Str("link", boardnet.ShareLink(ip, port)).Msg("[APP] Relay listening")

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Warn().Msg("[APP] Shutdown requested")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("[APP] HTTP server failed")
			a.Stop()
			return err
		}
	}
	return a.Stop()
}

// Stop shuts the HTTP server down, disconnects members and closes the
// backends.
func (a *RelayApp) Stop() error {
	a.mu.Lock()
	if a.mdns != nil {
		a.mdns.Shutdown()
		a.mdns = nil
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Websocket members are hijacked connections that Shutdown does not wait
	// for, so the relay closes them itself.
	err := a.server.Shutdown(ctx)
	a.relay.Close()
	a.closeBackends()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	log.Info().Msg("[APP] Relay stopped")
	return nil
}

func (a *RelayApp) closeBackends() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			log.Warn().Err(err).Msg("[APP] Closing bus")
		}
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("[APP] Closing store")
	}
}
