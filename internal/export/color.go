package export

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParseColor reads a CSS hex color: #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("unsupported color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// strokeColor falls back to opaque black for colors it cannot read.
func strokeColor(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		log.Debug().Err(err).Msg("[EXPORT] falling back to black")
		return color.NRGBA{A: 0xff}
	}
	return c
}
