package state

// BuilderState is the drawing state of a Builder.
type BuilderState int

const (
	Idle BuilderState = iota
	Drawing
)

func (s BuilderState) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

// Builder accumulates pointer samples into a draft on the drawing client.
// It never touches the network; the caller publishes what Finish returns.
// The draft's points can only grow through Extend.
type Builder struct {
	state BuilderState
	draft *Draft
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) State() BuilderState { return b.state }

// Start begins a new draft seeded with p. Calling it while a draft is open
// returns an InvalidStateError and leaves that draft untouched.
func (b *Builder) Start(p Point, color string, width float64, tool Tool) error {
	if b.state != Idle {
		return &InvalidStateError{Op: "start", State: b.state}
	}
	b.draft = &Draft{
		Points:      []Point{p},
		Color:       color,
		StrokeWidth: width,
		Tool:        tool,
	}
	b.state = Drawing
	return nil
}

// Extend appends p to the open draft. Pointer moves that arrive after the
// stroke ended are ignored.
func (b *Builder) Extend(p Point) {
	if b.state != Drawing {
		return
	}
	b.draft.Points = append(b.draft.Points, p)
}

// Finish closes the draft and hands it to the caller. It returns nil when the
// draft has no points.
func (b *Builder) Finish() (*Draft, error) {
	if b.state != Drawing {
		return nil, &InvalidStateError{Op: "finish", State: b.state}
	}
	draft := b.draft
	b.draft = nil
	b.state = Idle
	if len(draft.Points) < 1 {
		return nil, nil
	}
	return draft, nil
}

// Abandon drops the open draft, if any.
func (b *Builder) Abandon() {
	b.draft = nil
	b.state = Idle
}

// Preview returns a copy of the open draft for speculative rendering.
func (b *Builder) Preview() (Stroke, bool) {
	if b.state != Drawing {
		return Stroke{}, false
	}
	return Stroke{
		Points:      append([]Point(nil), b.draft.Points...),
		Color:       b.draft.Color,
		StrokeWidth: b.draft.StrokeWidth,
		Tool:        b.draft.Tool,
	}, true
}
