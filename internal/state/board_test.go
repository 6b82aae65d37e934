package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committed(id uint64, ref string) Stroke {
	return Stroke{
		ID:          id,
		RoomID:      "r1",
		Points:      []Point{{float64(id), float64(id)}},
		Color:       "#000000",
		StrokeWidth: 1,
		Tool:        ToolPen,
		Ref:         ref,
	}
}

func ids(strokes []Stroke) []uint64 {
	out := make([]uint64, 0, len(strokes))
	for _, s := range strokes {
		out = append(out, s.ID)
	}
	return out
}

func TestBoardSnapshotThenRemote(t *testing.T) {
	b := NewBoard()
	republish := b.LoadSnapshot([]Stroke{committed(1, ""), committed(2, "")})
	assert.Empty(t, republish)

	assert.True(t, b.AddRemote(committed(3, "")))
	assert.Equal(t, []uint64{1, 2, 3}, ids(b.Strokes()))
}

func TestBoardIdempotentDelivery(t *testing.T) {
	b := NewBoard()
	s := committed(1, "other-1")

	assert.True(t, b.AddRemote(s))
	assert.False(t, b.AddRemote(s))
	assert.Equal(t, 1, b.Len())

	// a snapshot containing the same stroke twice still renders it once
	b.LoadSnapshot([]Stroke{s, s})
	assert.Equal(t, 1, b.Len())
}

func TestBoardDropsUncommittedRemote(t *testing.T) {
	b := NewBoard()
	assert.False(t, b.AddRemote(Stroke{Points: []Point{{1, 1}}, StrokeWidth: 1, Tool: ToolPen}))
	assert.Equal(t, 0, b.Len())
}

func TestBoardLocalEchoIsReplacedNotDuplicated(t *testing.T) {
	builder := NewBuilder()
	b := NewBoard()

	require.NoError(t, builder.Start(Point{0, 0}, "#ff0000ff", 2, ToolPen))
	builder.Extend(Point{5, 5})
	draft, err := builder.Finish()
	require.NoError(t, err)

	local := draft.Commit("r1", "mine-1")
	b.CommitLocal(local)
	require.Equal(t, 1, b.Len())
	assert.Len(t, b.Pending(), 1)

	assert.True(t, b.Acknowledge("mine-1", 42))
	assert.Empty(t, b.Pending())

	echo := local
	echo.ID = 42
	assert.False(t, b.AddRemote(echo))
	assert.Equal(t, []uint64{42}, ids(b.Strokes()))
}

func TestBoardEchoBeforeAcknowledge(t *testing.T) {
	b := NewBoard()
	local := Stroke{RoomID: "r1", Points: []Point{{1, 1}}, StrokeWidth: 1, Tool: ToolPen, Ref: "mine-1"}
	b.CommitLocal(local)

	echo := local
	echo.ID = 9
	assert.False(t, b.AddRemote(echo))
	assert.Equal(t, []uint64{9}, ids(b.Strokes()))

	// the late acknowledgment finds nothing left to stamp
	assert.False(t, b.Acknowledge("mine-1", 9))
	assert.Equal(t, 1, b.Len())
}

func TestBoardSnapshotKeepsUnacknowledgedLocalStrokes(t *testing.T) {
	b := NewBoard()
	b.CommitLocal(Stroke{RoomID: "r1", Points: []Point{{1, 1}}, StrokeWidth: 1, Tool: ToolPen, Ref: "mine-1"})
	b.CommitLocal(Stroke{RoomID: "r1", Points: []Point{{2, 2}}, StrokeWidth: 1, Tool: ToolPen, Ref: "mine-2"})

	// the relay got mine-1 before the connection dropped, but not mine-2
	republish := b.LoadSnapshot([]Stroke{committed(1, ""), committed(2, "mine-1")})

	require.Len(t, republish, 1)
	assert.Equal(t, "mine-2", republish[0].Ref)

	strokes := b.Strokes()
	require.Len(t, strokes, 3)
	assert.Equal(t, []uint64{1, 2, 0}, ids(strokes))

	assert.True(t, b.Acknowledge("mine-2", 3))
	assert.Equal(t, []uint64{1, 2, 3}, ids(b.Strokes()))
}

func TestBoardClear(t *testing.T) {
	b := NewBoard()
	b.AddRemote(committed(1, ""))
	b.CommitLocal(Stroke{Points: []Point{{1, 1}}, StrokeWidth: 1, Tool: ToolPen, Ref: "mine-1"})

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Pending())

	// ids seen before the clear may legitimately be rendered again
	assert.True(t, b.AddRemote(committed(1, "")))
}

func TestBoardClearThroughDropsStrokesInFlight(t *testing.T) {
	b := NewBoard()
	b.LoadSnapshot([]Stroke{committed(1, "")})
	b.AddRemote(committed(2, ""))
	b.CommitLocal(Stroke{Points: []Point{{1, 1}}, StrokeWidth: 1, Tool: ToolPen, Ref: "mine-1"})
	b.AddRemote(committed(5, ""))

	b.ClearThrough(4)
	assert.Equal(t, []uint64{0, 5}, ids(b.Strokes()))
	require.Len(t, b.Pending(), 1)

	// committed before the clear, delivered after it
	assert.False(t, b.AddRemote(committed(3, "")))
	assert.True(t, b.AddRemote(committed(6, "")))

	// the relay had committed mine-1 before the clear; the clear wiped it
	assert.True(t, b.Acknowledge("mine-1", 4))
	assert.Empty(t, b.Pending())
	assert.Equal(t, []uint64{5, 6}, ids(b.Strokes()))

	// a lower watermark arriving late does not lower the bar
	b.ClearThrough(2)
	assert.False(t, b.AddRemote(committed(4, "")))
}

func TestBoardClearThenClearedFromRelay(t *testing.T) {
	b := NewBoard()
	b.LoadSnapshot(nil)

	// local clear first, then a stroke committed before it still arrives
	b.Clear()
	b.AddRemote(committed(1, ""))
	b.ClearThrough(1)
	assert.Equal(t, 0, b.Len())

	b.AddRemote(committed(1, ""))
	assert.Equal(t, 0, b.Len())
}

func TestBoardSnapshotResetsClearWatermark(t *testing.T) {
	b := NewBoard()
	b.ClearThrough(10)
	b.LoadSnapshot([]Stroke{committed(1, "")})
	assert.True(t, b.AddRemote(committed(2, "")))
	assert.Equal(t, []uint64{1, 2}, ids(b.Strokes()))
}

func TestBoundsPadsByHalfWidth(t *testing.T) {
	area, ok := Bounds([]Stroke{
		{Points: []Point{{10, 10}, {20, 30}}, StrokeWidth: 4},
		{Points: []Point{{5, 40}}, StrokeWidth: 2},
	})
	require.True(t, ok)
	assert.Equal(t, Area{X: 4, Y: 8, Width: 18, Height: 33}, area)

	_, ok = Bounds(nil)
	assert.False(t, ok)
}
