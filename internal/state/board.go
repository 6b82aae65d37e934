package state

import "github.com/rs/zerolog/log"

// Board is one client's render-ready view of a room: committed strokes in the
// order they were received, plus the client's own strokes still waiting for
// the relay to assign them an ID.
//
// Board is owned by a single event loop and is not safe for concurrent use.
type Board struct {
	strokes []Stroke
	ids     map[uint64]struct{}
	pending map[string]int // ref -> index in strokes

	// clearedThrough is the highest id wiped by a room clear. Strokes at or
	// below it were committed before that clear and are never shown again.
	clearedThrough uint64
}

func NewBoard() *Board {
	return &Board{
		ids:     make(map[uint64]struct{}),
		pending: make(map[string]int),
	}
}

// LoadSnapshot installs a room snapshot in its given order, replacing all
// committed content. Local strokes still unacknowledged are kept after it
// unless the snapshot already holds their ref; the kept ones are returned so
// the caller can publish them again.
func (b *Board) LoadSnapshot(snapshot []Stroke) []Stroke {
	local := b.Pending()

	b.strokes = make([]Stroke, 0, len(snapshot)+len(local))
	b.ids = make(map[uint64]struct{}, len(snapshot))
	b.pending = make(map[string]int, len(local))
	// The snapshot already reflects every clear, and a restarted relay may
	// number strokes from 1 again.
	b.clearedThrough = 0

	known := make(map[string]struct{})
	for _, s := range snapshot {
		if !s.Committed() {
			log.Warn().Str("ref", s.Ref).Msg("[BOARD] snapshot stroke without id dropped")
			continue
		}
		if _, dup := b.ids[s.ID]; dup {
			continue
		}
		b.ids[s.ID] = struct{}{}
		b.strokes = append(b.strokes, s)
		if s.Ref != "" {
			known[s.Ref] = struct{}{}
		}
	}

	var republish []Stroke
	for _, s := range local {
		if _, ok := known[s.Ref]; ok {
			continue
		}
		b.pending[s.Ref] = len(b.strokes)
		b.strokes = append(b.strokes, s)
		republish = append(republish, s)
	}
	log.Debug().Int("strokes", len(b.strokes)).Int("republish", len(republish)).Msg("[BOARD] snapshot installed")
	return republish
}

// AddRemote appends a committed stroke received from the room. It returns
// false when the stroke is already present, which covers redelivery and the
// echo of this client's own strokes.
func (b *Board) AddRemote(s Stroke) bool {
	if !s.Committed() {
		log.Warn().Msg("[BOARD] remote stroke without id dropped")
		return false
	}
	if _, exists := b.ids[s.ID]; exists {
		log.Debug().Uint64("id", s.ID).Msg("[BOARD] stroke already present, ignoring")
		return false
	}
	if s.ID <= b.clearedThrough {
		log.Debug().Uint64("id", s.ID).Uint64("cleared_through", b.clearedThrough).Msg("[BOARD] stroke predates clear, ignoring")
		if s.Ref != "" {
			b.dropPending(s.Ref)
		}
		return false
	}
	if s.Ref != "" {
		if _, mine := b.pending[s.Ref]; mine {
			b.Acknowledge(s.Ref, s.ID)
			return false
		}
	}
	b.ids[s.ID] = struct{}{}
	b.strokes = append(b.strokes, s)
	return true
}

// CommitLocal appends a stroke this client just finished. It must be called
// in the same handler that finished the builder so the speculative preview is
// replaced without an intermediate frame.
func (b *Board) CommitLocal(s Stroke) {
	if s.Ref == "" {
		s.Ref = NewRef()
	}
	b.pending[s.Ref] = len(b.strokes)
	b.strokes = append(b.strokes, s)
}

// Acknowledge stamps the relay-assigned id onto the local stroke with ref.
func (b *Board) Acknowledge(ref string, id uint64) bool {
	idx, ok := b.pending[ref]
	if !ok || id == 0 {
		return false
	}
	if _, exists := b.ids[id]; exists || id <= b.clearedThrough {
		// Already delivered through another path, or wiped by a clear.
		b.dropPending(ref)
		return true
	}
	delete(b.pending, ref)
	b.strokes[idx].ID = id
	b.ids[id] = struct{}{}
	return true
}

// Pending returns the local strokes not yet acknowledged, in board order.
func (b *Board) Pending() []Stroke {
	out := make([]Stroke, 0, len(b.pending))
	for _, s := range b.strokes {
		if s.Committed() {
			continue
		}
		if _, ok := b.pending[s.Ref]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Clear empties the board.
func (b *Board) Clear() {
	b.strokes = nil
	b.ids = make(map[uint64]struct{})
	b.pending = make(map[string]int)
}

// ClearThrough applies a room clear that removed every stroke up to lastID.
// Strokes committed after it and local strokes still waiting for an id stay;
// strokes at or below lastID arriving later are ignored.
func (b *Board) ClearThrough(lastID uint64) {
	if lastID > b.clearedThrough {
		b.clearedThrough = lastID
	}
	kept := b.strokes[:0]
	for _, s := range b.strokes {
		if s.Committed() && s.ID <= b.clearedThrough {
			delete(b.ids, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	b.strokes = kept
	b.reindexPending()
}

// Strokes returns the render sequence. The slice is a copy; the strokes'
// points are shared and must be treated as read-only.
func (b *Board) Strokes() []Stroke {
	return append([]Stroke(nil), b.strokes...)
}

func (b *Board) Len() int { return len(b.strokes) }

func (b *Board) dropPending(ref string) {
	idx, ok := b.pending[ref]
	if !ok {
		return
	}
	delete(b.pending, ref)
	b.strokes = append(b.strokes[:idx], b.strokes[idx+1:]...)
	b.reindexPending()
}

func (b *Board) reindexPending() {
	for i, s := range b.strokes {
		if _, ok := b.pending[s.Ref]; ok && !s.Committed() {
			b.pending[s.Ref] = i
		}
	}
}
