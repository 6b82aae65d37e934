package export

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"SharedBoard/internal/state"
)

const pngMargin = 16

// WritePNG rasterizes the strokes onto a white background.
func WritePNG(w io.Writer, strokes []state.Stroke) error {
	img := Flatten(Rasterize(strokes, pngMargin), color.White)
	return png.Encode(w, img)
}

// ExportFile writes the strokes to path, as PNG or PDF depending on the
// extension.
func ExportFile(path, title string, strokes []state.Stroke) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".pdf" {
		return fmt.Errorf("unsupported export format %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if ext == ".png" {
		err = WritePNG(f, strokes)
	} else {
		err = WritePDF(f, title, strokes)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("strokes", len(strokes)).Msg("[EXPORT] written")
	return nil
}
