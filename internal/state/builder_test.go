package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Run("start extend finish", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Start(Point{0, 0}, "#ff0000ff", 2, ToolPen))
		assert.Equal(t, Drawing, b.State())

		b.Extend(Point{5, 5})
		b.Extend(Point{10, 10})

		draft, err := b.Finish()
		require.NoError(t, err)
		require.NotNil(t, draft)
		assert.Equal(t, []Point{{0, 0}, {5, 5}, {10, 10}}, draft.Points)
		assert.Equal(t, "#ff0000ff", draft.Color)
		assert.Equal(t, 2.0, draft.StrokeWidth)
		assert.Equal(t, ToolPen, draft.Tool)
		assert.Equal(t, Idle, b.State())
	})

	t.Run("start while drawing keeps the open draft", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Start(Point{1, 1}, "#000", 1, ToolPen))
		b.Extend(Point{2, 2})

		err := b.Start(Point{9, 9}, "#fff", 4, ToolEraser)
		var stateErr *InvalidStateError
		require.True(t, errors.As(err, &stateErr))
		assert.Equal(t, "start", stateErr.Op)
		assert.Equal(t, Drawing, stateErr.State)

		draft, err := b.Finish()
		require.NoError(t, err)
		assert.Equal(t, []Point{{1, 1}, {2, 2}}, draft.Points)
		assert.Equal(t, ToolPen, draft.Tool)
	})

	t.Run("extend while idle is ignored", func(t *testing.T) {
		b := NewBuilder()
		b.Extend(Point{3, 3})
		assert.Equal(t, Idle, b.State())

		_, ok := b.Preview()
		assert.False(t, ok)
	})

	t.Run("finish while idle is an invalid state", func(t *testing.T) {
		b := NewBuilder()
		draft, err := b.Finish()
		assert.Nil(t, draft)
		var stateErr *InvalidStateError
		assert.True(t, errors.As(err, &stateErr))
	})

	t.Run("abandon discards the draft", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Start(Point{1, 1}, "#000", 1, ToolPen))
		b.Abandon()
		assert.Equal(t, Idle, b.State())
		require.NoError(t, b.Start(Point{2, 2}, "#000", 1, ToolPen))
	})

	t.Run("preview is a copy", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Start(Point{1, 1}, "#000", 1, ToolPen))

		preview, ok := b.Preview()
		require.True(t, ok)
		preview.Points[0] = Point{99, 99}

		b.Extend(Point{2, 2})
		again, _ := b.Preview()
		assert.Equal(t, []Point{{1, 1}, {2, 2}}, again.Points)
		assert.False(t, again.Committed())
	})
}

func TestDraftCommit(t *testing.T) {
	d := &Draft{Points: []Point{{1, 2}}, Color: "#123456", StrokeWidth: 3, Tool: ToolEraser}

	s := d.Commit("r1", "ref-1")
	d.Points[0] = Point{0, 0}

	assert.Equal(t, Stroke{
		RoomID:      "r1",
		Points:      []Point{{1, 2}},
		Color:       "#123456",
		StrokeWidth: 3,
		Tool:        ToolEraser,
		Ref:         "ref-1",
	}, s)
}

func TestNewRefIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewRef()
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}
