package net

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floodServer answers a join with more frames than the events buffer holds,
// then keeps the connection open.
func floodServer(t *testing.T, frames int) *httptest.Server {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for i := 0; i < frames; i++ {
			if err := conn.WriteJSON(NetworkMessage{Type: TypeCleared, RoomID: "r1"}); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCloseReleasesBlockedReadLoop(t *testing.T) {
	server := floodServer(t, 400)
	c := NewChannel(server.URL)
	require.NoError(t, c.Join(testContext(t), "r1"))

	require.Eventually(t, func() bool { return len(c.events) == cap(c.events) }, 2*time.Second, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the read loop was blocked")
	}

	assert.ErrorIs(t, c.Join(testContext(t), "r1"), ErrChannelClosed)
}
