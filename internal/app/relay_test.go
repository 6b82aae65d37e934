package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/config"
	boardnet "SharedBoard/internal/net"
	"SharedBoard/internal/state"
)

func testConfig(t *testing.T) config.Config {
	cfg, err := config.ReadConfig("")
	require.NoError(t, err)
	cfg.Port = 0
	cfg.Advertise = false
	cfg.Store.Driver = "bolt"
	cfg.Store.Path = filepath.Join(t.TempDir(), "board.db")
	cfg.Bus.Driver = "local"
	return cfg
}

func TestRelayAppServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := NewRelayApp(ctx, testConfig(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	port := a.Addr().(*net.TCPAddr).Port
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ch := boardnet.NewChannel(base)
	defer ch.Close()
	require.NoError(t, ch.Join(ctx, "r1"))
	select {
	case ev := <-ch.Events():
		require.NoError(t, ev.Err)
		assert.Equal(t, boardnet.TypeSnapshot, ev.Message.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	require.NoError(t, ch.Publish(ctx, state.Stroke{
		Points: []state.Point{{X: 1, Y: 1}}, Color: "#000", StrokeWidth: 1, Tool: state.ToolPen, Ref: "t-1",
	}))
	select {
	case ev := <-ch.Events():
		assert.Equal(t, boardnet.TypeCommitted, ev.Message.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no ack")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewRelayAppRejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "etcd"
	_, err := NewRelayApp(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Bus.Driver = "kafka"
	_, err = NewRelayApp(context.Background(), cfg)
	assert.Error(t, err)
}
