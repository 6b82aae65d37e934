package state

// Area is an axis-aligned rectangle on the canvas.
type Area struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Bounds returns the area covered by the strokes, padded by half of each
// stroke's width. ok is false when there is nothing to cover.
func Bounds(strokes []Stroke) (area Area, ok bool) {
	var minX, minY, maxX, maxY float64
	for _, s := range strokes {
		pad := s.StrokeWidth / 2
		for _, p := range s.Points {
			if !ok {
				minX, minY = p.X-pad, p.Y-pad
				maxX, maxY = p.X+pad, p.Y+pad
				ok = true
				continue
			}
			if p.X-pad < minX {
				minX = p.X - pad
			}
			if p.X+pad > maxX {
				maxX = p.X + pad
			}
			if p.Y-pad < minY {
				minY = p.Y - pad
			}
			if p.Y+pad > maxY {
				maxY = p.Y + pad
			}
		}
	}
	if !ok {
		return Area{}, false
	}
	return Area{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
