package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"

	boardnet "SharedBoard/internal/net"
	"SharedBoard/internal/state"
)

// ErrStopped is returned by queries made after Run has returned.
var ErrStopped = errors.New("session stopped")

// RoomChannel is the transport a Session talks to a relay through.
// *boardnet.Channel implements it.
type RoomChannel interface {
	Join(ctx context.Context, roomID string) error
	Publish(ctx context.Context, s state.Stroke) error
	Clear(ctx context.Context) error
	Leave(ctx context.Context) error
	Events() <-chan boardnet.Event
}

type Config struct {
	Color       string
	StrokeWidth float64
	Tool        state.Tool

	// InitialBackoff and MaxBackoff bound the delay between join attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnChange, when set, is called on the session loop with the render
	// sequence whenever it changes. It must not call back into the Session.
	OnChange func(strokes []state.Stroke)
}

func DefaultConfig() Config {
	return Config{
		Color:          "#000000",
		StrokeWidth:    2,
		Tool:           state.ToolPen,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Session is one participant's view of a room. Pointer input, relay events
// and render requests are all serialized on the goroutine running Run, which
// owns the builder and the board.
type Session struct {
	roomID  string
	channel RoomChannel
	cfg     Config

	inbox    chan func()
	outbound chan func(ctx context.Context) error
	done     chan struct{}

	synced     chan struct{}
	syncedOnce sync.Once

	// Owned by the Run goroutine.
	builder    *state.Builder
	board      *state.Board
	color      string
	width      float64
	tool       state.Tool
	joined     bool
	cancelJoin context.CancelFunc
}

func NewSession(roomID string, ch RoomChannel, cfg Config) *Session {
	defaults := DefaultConfig()
	if cfg.Color == "" {
		cfg.Color = defaults.Color
	}
	if cfg.StrokeWidth <= 0 {
		cfg.StrokeWidth = defaults.StrokeWidth
	}
	if !cfg.Tool.Valid() {
		cfg.Tool = defaults.Tool
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}

	return &Session{
		roomID:   roomID,
		channel:  ch,
		cfg:      cfg,
		inbox:    make(chan func(), 64),
		outbound: make(chan func(ctx context.Context) error, 256),
		done:     make(chan struct{}),
		synced:   make(chan struct{}),
		builder:  state.NewBuilder(),
		board:    state.NewBoard(),
		color:    cfg.Color,
		width:    cfg.StrokeWidth,
		tool:     cfg.Tool,
	}
}

// Synced is closed once the first snapshot of the room is installed.
func (s *Session) Synced() <-chan struct{} { return s.synced }

// Run joins the room and processes events until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sendLoop(ctx)
	}()
	defer wg.Wait()

	s.startJoin(ctx)

	events := s.channel.Events()
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case ev := <-events:
			s.handleEvent(ctx, ev)
		case <-ctx.Done():
			if s.cancelJoin != nil {
				s.cancelJoin()
			}
			leaveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := s.channel.Leave(leaveCtx); err != nil {
				log.Debug().Err(err).Msg("[SESSION] leave on shutdown failed")
			}
			cancel()
			return ctx.Err()
		}
	}
}

// sendLoop performs channel writes off the event loop, in order.
func (s *Session) sendLoop(ctx context.Context) {
	for {
		select {
		case op := <-s.outbound:
			if err := op(ctx); err != nil {
				// The stroke stays pending and is published again after the
				// next snapshot.
				log.Warn().Err(err).Msg("[SESSION] send failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) send(op func(ctx context.Context) error) {
	select {
	case s.outbound <- op:
	default:
		log.Warn().Msg("[SESSION] send queue full, relying on resync")
	}
}

// startJoin (re)joins the room in the background with exponential backoff,
// replacing any attempt still running.
func (s *Session) startJoin(ctx context.Context) {
	if s.cancelJoin != nil {
		s.cancelJoin()
	}
	joinCtx, cancel := context.WithCancel(ctx)
	s.cancelJoin = cancel

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	go func() {
		op := func() error {
			return s.channel.Join(joinCtx, s.roomID)
		}
		notify := func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("retry_in", wait).Str("room", s.roomID).Msg("[SESSION] join failed")
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(b, joinCtx), notify); err != nil && joinCtx.Err() == nil {
			log.Error().Err(err).Str("room", s.roomID).Msg("[SESSION] giving up on join")
		}
	}()
}

func (s *Session) handleEvent(ctx context.Context, ev boardnet.Event) {
	if ev.Err != nil {
		if s.joined {
			log.Warn().Err(ev.Err).Str("room", s.roomID).Msg("[SESSION] connection lost, rejoining")
		}
		s.joined = false
		s.startJoin(ctx)
		return
	}

	msg := ev.Message
	switch msg.Type {
	case boardnet.TypeSnapshot:
		strokes, errs := msg.DecodeStrokes()
		for _, err := range errs {
			log.Warn().Err(err).Msg("[SESSION] malformed snapshot stroke dropped")
		}
		republish := s.board.LoadSnapshot(strokes)
		for _, stroke := range republish {
			s.publish(stroke)
		}
		s.joined = true
		s.syncedOnce.Do(func() { close(s.synced) })
		log.Info().Str("room", s.roomID).Int("strokes", len(strokes)).Int("republished", len(republish)).Msg("[SESSION] synced")
		s.changed()

	case boardnet.TypeCommitted:
		s.board.Acknowledge(msg.Ref, msg.ID)

	case boardnet.TypeStroke:
		stroke, err := msg.DecodeStroke()
		if err != nil {
			log.Warn().Err(err).Msg("[SESSION] malformed stroke dropped")
			return
		}
		if s.board.AddRemote(stroke) {
			s.changed()
		}

	case boardnet.TypeCleared:
		s.board.ClearThrough(msg.ID)
		s.changed()

	case boardnet.TypeError:
		log.Warn().Str("ref", msg.Ref).Str("error", msg.Error).Msg("[SESSION] relay rejected request")

	default:
		log.Debug().Str("type", string(msg.Type)).Msg("[SESSION] unknown event ignored")
	}
}

func (s *Session) publish(stroke state.Stroke) {
	s.send(func(ctx context.Context) error {
		return s.channel.Publish(ctx, stroke)
	})
}

func (s *Session) changed() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(s.render())
	}
}

func (s *Session) render() []state.Stroke {
	strokes := s.board.Strokes()
	if preview, ok := s.builder.Preview(); ok {
		preview.RoomID = s.roomID
		strokes = append(strokes, preview)
	}
	return strokes
}

// do runs fn on the session loop. It returns false once the session has
// stopped.
func (s *Session) do(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) SetColor(color string) {
	s.do(func() { s.color = color })
}

func (s *Session) SetStrokeWidth(width float64) {
	s.do(func() {
		if width > 0 {
			s.width = width
		}
	})
}

func (s *Session) SetTool(tool state.Tool) {
	s.do(func() {
		if tool.Valid() {
			s.tool = tool
		}
	})
}

// PointerDown starts a stroke at p.
func (s *Session) PointerDown(p state.Point) {
	s.do(func() {
		if err := s.builder.Start(p, s.color, s.width, s.tool); err != nil {
			log.Warn().Err(err).Msg("[SESSION] pointer down ignored")
			return
		}
		s.changed()
	})
}

// PointerMove extends the stroke in progress. Without one it does nothing.
func (s *Session) PointerMove(p state.Point) {
	s.do(func() {
		if s.builder.State() != state.Drawing {
			return
		}
		s.builder.Extend(p)
		s.changed()
	})
}

// PointerUp finishes the stroke, adds it to the board and publishes it.
func (s *Session) PointerUp() {
	s.do(func() {
		draft, err := s.builder.Finish()
		if err != nil {
			log.Warn().Err(err).Msg("[SESSION] pointer up ignored")
			return
		}
		if draft == nil {
			return
		}
		stroke := draft.Commit(s.roomID, state.NewRef())
		s.board.CommitLocal(stroke)
		if s.joined {
			s.publish(stroke)
		}
		s.changed()
	})
}

// PointerCancel drops the stroke in progress.
func (s *Session) PointerCancel() {
	s.do(func() {
		s.builder.Abandon()
		s.changed()
	})
}

// Clear empties the room for every participant. The board is emptied right
// away; strokes the relay committed before the clear are dropped again when
// its cleared event arrives.
func (s *Session) Clear() {
	s.do(func() {
		s.board.Clear()
		if s.joined {
			s.send(func(ctx context.Context) error { return s.channel.Clear(ctx) })
		} else {
			log.Warn().Str("room", s.roomID).Msg("[SESSION] clear while offline only applies locally")
		}
		s.changed()
	})
}

// Render returns the strokes to draw, in order, with the stroke in progress
// last.
func (s *Session) Render(ctx context.Context) ([]state.Stroke, error) {
	reply := make(chan []state.Stroke, 1)
	if !s.do(func() { reply <- s.render() }) {
		return nil, ErrStopped
	}
	select {
	case strokes := <-reply:
		return strokes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the local strokes the relay has not acknowledged yet.
func (s *Session) Pending(ctx context.Context) ([]state.Stroke, error) {
	reply := make(chan []state.Stroke, 1)
	if !s.do(func() { reply <- s.board.Pending() }) {
		return nil, ErrStopped
	}
	select {
	case strokes := <-reply:
		return strokes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
