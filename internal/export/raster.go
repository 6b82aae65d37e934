package export

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"SharedBoard/internal/state"
)

// Canvas composites strokes the way a browser canvas does: pen strokes are
// painted source-over, eraser strokes cut their shape out of what is already
// there (destination-out). Erased pixels become transparent.
type Canvas struct {
	img    *image.RGBA
	mask   *image.Alpha
	dasher *rasterx.Dasher
	origin state.Point
	scale  float64
}

// MaxRasterSide bounds the longest side of a rasterized board in pixels.
// Larger boards are scaled down to fit.
const MaxRasterSide = 4096

// NewCanvas creates a transparent canvas. Stroke coordinates are translated
// by -origin before drawing.
func NewCanvas(width, height int, origin state.Point) *Canvas {
	return NewScaledCanvas(width, height, origin, 1)
}

// NewScaledCanvas is NewCanvas with coordinates and widths multiplied by
// scale after the translation.
func NewScaledCanvas(width, height int, origin state.Point, scale float64) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	mask := image.NewAlpha(img.Bounds())
	scanner := rasterx.NewScannerGV(width, height, mask, mask.Bounds())
	return &Canvas{
		img:    img,
		mask:   mask,
		dasher: rasterx.NewDasher(width, height, scanner),
		origin: origin,
		scale:  scale,
	}
}

func (c *Canvas) Image() *image.RGBA { return c.img }

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func (c *Canvas) point(p state.Point) fixed.Point26_6 {
	return fixed.Point26_6{
		X: toFixed((p.X - c.origin.X) * c.scale),
		Y: toFixed((p.Y - c.origin.Y) * c.scale),
	}
}

// Draw composites one stroke onto the canvas.
func (c *Canvas) Draw(s state.Stroke) {
	if len(s.Points) == 0 || !(s.StrokeWidth > 0) {
		return
	}

	draw.Draw(c.mask, c.mask.Bounds(), image.Transparent, image.Point{}, draw.Src)
	c.dasher.Clear()
	// Scaled strokes never shrink below a pixel so they stay visible.
	width := math.Max(s.StrokeWidth*c.scale, math.Min(s.StrokeWidth, 1))
	c.dasher.SetStroke(toFixed(width), toFixed(4), rasterx.RoundCap, nil, rasterx.RoundGap, rasterx.Round, nil, 0)
	c.dasher.SetColor(color.Opaque)

	c.dasher.Start(c.point(s.Points[0]))
	if len(s.Points) == 1 {
		// A lone point still leaves a round dot.
		dot := s.Points[0]
		dot.X += 0.1 / c.scale
		c.dasher.Line(c.point(dot))
	}
	for _, p := range s.Points[1:] {
		c.dasher.Line(c.point(p))
	}
	c.dasher.Stop(false)
	c.dasher.Draw()

	switch s.Tool.Composite() {
	case state.CompositeDestinationOut:
		c.cutOut()
	default:
		col := strokeColor(s.Color)
		draw.DrawMask(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, c.mask, image.Point{}, draw.Over)
	}
}

// cutOut scales every destination pixel by one minus the mask coverage.
func (c *Canvas) cutOut() {
	b := c.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint32(c.mask.AlphaAt(x, y).A)
			if a == 0 {
				continue
			}
			i := c.img.PixOffset(x, y)
			keep := 255 - a
			for k := 0; k < 4; k++ {
				c.img.Pix[i+k] = uint8(uint32(c.img.Pix[i+k]) * keep / 255)
			}
		}
	}
}

// Rasterize draws strokes in order onto a canvas just large enough to hold
// them, plus margin on every side. A board wider or taller than
// MaxRasterSide is scaled down, keeping its aspect ratio.
func Rasterize(strokes []state.Stroke, margin int) *image.RGBA {
	blank := image.NewRGBA(image.Rect(0, 0, 2*margin+1, 2*margin+1))
	area, ok := state.Bounds(strokes)
	if !ok {
		return blank
	}

	scale := 1.0
	if longest := math.Max(area.Width, area.Height); longest > float64(MaxRasterSide-2*margin-1) {
		scale = float64(MaxRasterSide-2*margin-1) / longest
	}
	if !(scale > 0) || math.IsInf(area.Width, 0) || math.IsInf(area.Height, 0) {
		log.Warn().Float64("width", area.Width).Float64("height", area.Height).Msg("[EXPORT] Board extent too large to rasterize")
		return blank
	}

	width := int(area.Width*scale+0.5) + 2*margin + 1
	height := int(area.Height*scale+0.5) + 2*margin + 1
	// The margin is in output pixels, so it is converted back to board units.
	origin := state.Point{X: area.X - float64(margin)/scale, Y: area.Y - float64(margin)/scale}

	c := NewScaledCanvas(width, height, origin, scale)
	for _, s := range strokes {
		c.Draw(s)
	}
	return c.Image()
}

// Flatten composites img over an opaque background.
func Flatten(img *image.RGBA, background color.Color) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}
