package state

import "math"

// Point is one sampled canvas coordinate.
type Point struct{ X, Y float64 }

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Tool decides how a stroke is composited over what is already drawn.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// CompositeOp names the canvas compositing operation a renderer must use.
type CompositeOp string

const (
	CompositeSourceOver     CompositeOp = "source-over"
	CompositeDestinationOut CompositeOp = "destination-out"
)

func (t Tool) Valid() bool {
	return t == ToolPen || t == ToolEraser
}

// Composite returns the compositing mode for the tool. Eraser strokes remove
// underlying pixels, pen strokes paint over them.
func (t Tool) Composite() CompositeOp {
	if t == ToolEraser {
		return CompositeDestinationOut
	}
	return CompositeSourceOver
}

// Stroke is a drawn path. Once it carries an ID it is committed and immutable.
type Stroke struct {
	ID          uint64
	RoomID      string
	Points      []Point
	Color       string
	StrokeWidth float64
	Tool        Tool
	// Ref is the commit reference chosen by the authoring client. It is kept
	// with the stroke so the author can recognise it in a later snapshot.
	Ref string
}

// Committed reports whether the relay has assigned the stroke an ID.
func (s Stroke) Committed() bool { return s.ID != 0 }

// Clone returns a copy that shares no memory with s.
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = append([]Point(nil), s.Points...)
	return c
}

// Draft is the in-progress stroke owned by a Builder.
type Draft struct {
	Points      []Point
	Color       string
	StrokeWidth float64
	Tool        Tool
}

// Commit turns a finished draft into a stroke for roomID. The stroke gets its
// own copy of the points.
func (d *Draft) Commit(roomID, ref string) Stroke {
	return Stroke{
		RoomID:      roomID,
		Points:      append([]Point(nil), d.Points...),
		Color:       d.Color,
		StrokeWidth: d.StrokeWidth,
		Tool:        d.Tool,
		Ref:         ref,
	}
}
