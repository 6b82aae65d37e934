package relay

import (
	"context"
	"fmt"
	"regexp"

	"SharedBoard/internal/state"
	"SharedBoard/internal/store"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRoomID reports whether id can name a room.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// SnapshotService is the relay's view of the stroke store: the ordered
// committed strokes of each room.
type SnapshotService struct {
	store store.Store
}

func NewSnapshotService(s store.Store) *SnapshotService {
	return &SnapshotService{store: s}
}

// GetStrokes returns the room's strokes in commit order.
func (s *SnapshotService) GetStrokes(ctx context.Context, roomID string) ([]state.Stroke, error) {
	if !ValidRoomID(roomID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}
	return s.store.Strokes(ctx, roomID)
}

// Commit validates a finished stroke and appends it to the room, returning it
// with its relay-assigned id. Any id the client sent is discarded.
func (s *SnapshotService) Commit(ctx context.Context, roomID string, stroke state.Stroke) (state.Stroke, error) {
	if !ValidRoomID(roomID) {
		return state.Stroke{}, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}
	stroke.ID = 0
	stroke.RoomID = roomID
	if err := state.Validate(stroke); err != nil {
		return state.Stroke{}, err
	}
	return s.store.Append(ctx, roomID, stroke)
}

// Clear truncates the room. It returns the id of the last stroke removed,
// the watermark clients use to drop strokes that were already in flight.
func (s *SnapshotService) Clear(ctx context.Context, roomID string) (uint64, error) {
	if !ValidRoomID(roomID) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}
	return s.store.Clear(ctx, roomID)
}
