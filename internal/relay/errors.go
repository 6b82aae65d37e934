package relay

import "errors"

var (
	ErrInvalidRoom = errors.New("invalid room id")
	ErrRoomClosed  = errors.New("room closed")
	ErrNotInRoom   = errors.New("not joined to a room")
	ErrRateLimited = errors.New("rate limited")
	ErrRelayClosed = errors.New("relay closed")
)
