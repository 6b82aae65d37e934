package state

import (
	"bytes"
	"encoding/json"
)

// wireStroke is the JSON form of a Stroke. Points travel as the flat
// coordinate list [x0, y0, x1, y1, ...] the canvas clients use.
type wireStroke struct {
	ID          uint64          `json:"id,omitempty"`
	RoomID      string          `json:"roomId,omitempty"`
	Points      json.RawMessage `json:"points"`
	Color       string          `json:"color,omitempty"`
	StrokeWidth float64         `json:"strokeWidth"`
	Tool        Tool            `json:"tool"`
	Ref         string          `json:"ref,omitempty"`
}

// Validate checks the invariants every transmitted stroke must hold.
func Validate(s Stroke) error {
	if len(s.Points) == 0 {
		return malformed("stroke has no points", nil)
	}
	for _, p := range s.Points {
		if !p.finite() {
			return malformed("non-finite coordinate", nil)
		}
	}
	if !(s.StrokeWidth > 0) {
		return malformed("stroke width must be positive", nil)
	}
	if !s.Tool.Valid() {
		return malformed("unknown tool "+string(s.Tool), nil)
	}
	return nil
}

// Encode serializes a stroke for the wire.
func Encode(s Stroke) ([]byte, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	flat := make([]float64, 0, 2*len(s.Points))
	for _, p := range s.Points {
		flat = append(flat, p.X, p.Y)
	}
	points, err := json.Marshal(flat)
	if err != nil {
		return nil, malformed("encode points", err)
	}
	return json.Marshal(wireStroke{
		ID:          s.ID,
		RoomID:      s.RoomID,
		Points:      points,
		Color:       s.Color,
		StrokeWidth: s.StrokeWidth,
		Tool:        s.Tool,
		Ref:         s.Ref,
	})
}

// Decode parses a wire stroke. Points are accepted either as a JSON array or
// as a string holding that array, and are always normalized to []Point.
func Decode(data []byte) (Stroke, error) {
	var w wireStroke
	if err := json.Unmarshal(data, &w); err != nil {
		return Stroke{}, malformed("invalid json", err)
	}
	points, err := decodePoints(w.Points)
	if err != nil {
		return Stroke{}, err
	}
	s := Stroke{
		ID:          w.ID,
		RoomID:      w.RoomID,
		Points:      points,
		Color:       w.Color,
		StrokeWidth: w.StrokeWidth,
		Tool:        w.Tool,
		Ref:         w.Ref,
	}
	if err := Validate(s); err != nil {
		return Stroke{}, err
	}
	return s, nil
}

func decodePoints(raw json.RawMessage) ([]Point, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, malformed("points missing", nil)
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, malformed("points string", err)
		}
		raw = bytes.TrimSpace([]byte(encoded))
		if len(raw) == 0 || raw[0] != '[' {
			return nil, malformed("points string does not hold an array", nil)
		}
	}

	var flat []float64
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, malformed("points", err)
	}
	if len(flat)%2 != 0 {
		return nil, malformed("odd number of coordinates", nil)
	}
	points := make([]Point, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		points = append(points, Point{X: flat[i], Y: flat[i+1]})
	}
	return points, nil
}

func (s Stroke) MarshalJSON() ([]byte, error) {
	return Encode(s)
}

func (s *Stroke) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
