package net

import (
	"encoding/json"
	"errors"
	stdnet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/state"
)

func TestSnapshotMessageDropsOnlyMalformedStrokes(t *testing.T) {
	good := state.Stroke{ID: 1, RoomID: "r1", Points: []state.Point{{X: 1, Y: 2}}, Color: "#000", StrokeWidth: 1, Tool: state.ToolPen}
	msg, err := NewSnapshotMessage("r1", []state.Stroke{good})
	require.NoError(t, err)

	msg.Strokes = append(msg.Strokes,
		json.RawMessage(`{"id":2,"points":[1],"strokeWidth":1,"tool":"pen"}`),
		json.RawMessage(`{"id":3,"points":"[3,4]","strokeWidth":1,"tool":"eraser"}`),
	)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var back NetworkMessage
	require.NoError(t, json.Unmarshal(data, &back))

	strokes, errs := back.DecodeStrokes()
	require.Len(t, errs, 1)
	var malformed *state.MalformedStrokeError
	assert.True(t, errors.As(errs[0], &malformed))

	require.Len(t, strokes, 2)
	assert.Equal(t, good, strokes[0])
	assert.Equal(t, uint64(3), strokes[1].ID)
	assert.Equal(t, []state.Point{{X: 3, Y: 4}}, strokes[1].Points)
}

func TestEmptySnapshotDecodesToNothing(t *testing.T) {
	msg, err := NewSnapshotMessage("r1", nil)
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"snapshot","roomId":"r1"}`, string(data))

	strokes, errs := msg.DecodeStrokes()
	assert.Empty(t, strokes)
	assert.Empty(t, errs)
}

func TestStrokeMessageCarriesRef(t *testing.T) {
	s := state.Stroke{RoomID: "r1", Points: []state.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, StrokeWidth: 2, Tool: state.ToolPen, Ref: "abc"}
	msg, err := NewStrokeMessage(TypePublish, s)
	require.NoError(t, err)
	assert.Equal(t, "abc", msg.Ref)
	assert.Equal(t, "r1", msg.RoomID)

	back, err := msg.DecodeStroke()
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestShareLinkRoundTrip(t *testing.T) {
	link := ShareLink("192.168.1.4", 8888)
	assert.Equal(t, "localboard://192.168.1.4:8888", link)
	assert.Equal(t, "192.168.1.4:8888", AddressFromLink(link+"/"))
}

func TestGetOutgoingIPIsIPv4(t *testing.T) {
	ip, err := GetOutgoingIP()
	require.NoError(t, err)
	parsed := stdnet.ParseIP(ip)
	require.NotNil(t, parsed, ip)
	assert.NotNil(t, parsed.To4(), ip)
}

func TestChannelEndpoint(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8888":        "ws://127.0.0.1:8888/ws",
		"http://127.0.0.1:9000": "ws://127.0.0.1:9000/ws",
		"https://board.example": "wss://board.example/ws",
		"ws://relay:1/":         "ws://relay:1/ws",
	}
	for addr, want := range cases {
		got, err := NewChannel(addr).endpoint()
		require.NoError(t, err)
		assert.Equal(t, want, got, addr)
	}
}

func TestChannelRequiresJoinBeforePublish(t *testing.T) {
	c := NewChannel("127.0.0.1:1")
	err := c.Publish(testContext(t), state.Stroke{Points: []state.Point{{X: 1, Y: 1}}, StrokeWidth: 1, Tool: state.ToolPen})
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.ErrorIs(t, c.Clear(testContext(t)), ErrNotJoined)
	assert.NoError(t, c.Close())
}
