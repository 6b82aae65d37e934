package net

import (
	"encoding/json"
	"fmt"

	"SharedBoard/internal/state"
)

// MessageType names an event exchanged between a client and the relay.
type MessageType string

const (
	TypeJoin      MessageType = "join"      // client -> relay
	TypeLeave     MessageType = "leave"     // client -> relay
	TypePublish   MessageType = "publish"   // client -> relay
	TypeClear     MessageType = "clear"     // client -> relay
	TypeSnapshot  MessageType = "snapshot"  // relay -> joining client
	TypeCommitted MessageType = "committed" // relay -> publisher
	TypeStroke    MessageType = "stroke"    // relay -> other members
	TypeCleared   MessageType = "cleared"   // relay -> other members
	TypeError     MessageType = "error"     // relay -> client
)

// NetworkMessage is the envelope of every websocket frame. Strokes stay raw
// so that one malformed stroke can be dropped without losing the envelope.
type NetworkMessage struct {
	Type    MessageType       `json:"type"`
	RoomID  string            `json:"roomId,omitempty"`
	Stroke  json.RawMessage   `json:"stroke,omitempty"`
	Strokes []json.RawMessage `json:"strokes,omitempty"`
	Ref     string            `json:"ref,omitempty"`
	ID      uint64            `json:"id,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// NewStrokeMessage wraps a single stroke, for publish and stroke events.
func NewStrokeMessage(t MessageType, s state.Stroke) (NetworkMessage, error) {
	data, err := state.Encode(s)
	if err != nil {
		return NetworkMessage{}, err
	}
	return NetworkMessage{Type: t, RoomID: s.RoomID, Stroke: data, Ref: s.Ref}, nil
}

// NewSnapshotMessage wraps the ordered strokes of a room.
func NewSnapshotMessage(roomID string, strokes []state.Stroke) (NetworkMessage, error) {
	msg := NetworkMessage{Type: TypeSnapshot, RoomID: roomID, Strokes: make([]json.RawMessage, 0, len(strokes))}
	for _, s := range strokes {
		data, err := state.Encode(s)
		if err != nil {
			return NetworkMessage{}, fmt.Errorf("snapshot stroke %d: %w", s.ID, err)
		}
		msg.Strokes = append(msg.Strokes, data)
	}
	return msg, nil
}

// DecodeStroke decodes the single stroke of the envelope.
func (m NetworkMessage) DecodeStroke() (state.Stroke, error) {
	return state.Decode(m.Stroke)
}

// DecodeStrokes decodes the snapshot strokes in order. Malformed strokes are
// left out and reported in errs.
func (m NetworkMessage) DecodeStrokes() (strokes []state.Stroke, errs []error) {
	strokes = make([]state.Stroke, 0, len(m.Strokes))
	for _, raw := range m.Strokes {
		s, err := state.Decode(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		strokes = append(strokes, s)
	}
	return strokes, errs
}
