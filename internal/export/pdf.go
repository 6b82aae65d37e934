package export

import (
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"SharedBoard/internal/state"
)

const pageMargin = 10.0 // mm

// WritePDF draws the strokes on one A4 page, scaled to fit. Eraser strokes
// are painted in the paper color.
func WritePDF(w io.Writer, title string, strokes []state.Stroke) error {
	area, ok := state.Bounds(strokes)

	orientation := "P"
	if ok && area.Width > area.Height {
		orientation = "L"
	}
	p := gofpdf.New(orientation, "mm", "A4", "")
	p.SetTitle(title, true)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	if ok {
		pageW, pageH := p.GetPageSize()
		scale := math.Min(
			(pageW-2*pageMargin)/math.Max(area.Width, 1),
			(pageH-2*pageMargin)/math.Max(area.Height, 1),
		)
		tx := func(pt state.Point) (float64, float64) {
			return pageMargin + (pt.X-area.X)*scale, pageMargin + (pt.Y-area.Y)*scale
		}

		for _, st := range strokes {
			c := strokeColor(st.Color)
			if st.Tool == state.ToolEraser {
				c.R, c.G, c.B = 255, 255, 255
			}
			p.SetDrawColor(int(c.R), int(c.G), int(c.B))
			p.SetFillColor(int(c.R), int(c.G), int(c.B))
			p.SetLineWidth(st.StrokeWidth * scale)

			if len(st.Points) == 1 {
				x, y := tx(st.Points[0])
				p.Circle(x, y, st.StrokeWidth*scale/2, "F")
				continue
			}
			for i := 1; i < len(st.Points); i++ {
				x1, y1 := tx(st.Points[i-1])
				x2, y2 := tx(st.Points[i])
				p.Line(x1, y1, x2, y2)
			}
		}
	}
	return p.Output(w)
}
