// Package render draws pixel buffers for people: scaled PNG previews and
// half-block terminal output.
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/image/draw"

	"github.com/cptaffe/acme-crafts/craft"
)

// Image returns buf enlarged so each cell is a scale×scale square.  Cells
// stay hard-edged.
func Image(buf *craft.PixelBuffer, scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	src := buf.NRGBA()
	dst := image.NewNRGBA(image.Rect(0, 0, buf.Width*scale, buf.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// WritePNG encodes the scaled image of buf to w.
func WritePNG(w io.Writer, buf *craft.PixelBuffer, scale int) error {
	if buf.Width == 0 || buf.Height == 0 {
		return fmt.Errorf("encode png: empty %dx%d buffer", buf.Width, buf.Height)
	}
	if err := png.Encode(w, Image(buf, scale)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WritePNGFile writes the scaled image of buf to path via a temporary file,
// so readers never see a partial image.
func WritePNGFile(path string, buf *craft.PixelBuffer, scale int) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".craft-*.png")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()
	if err := f.Chmod(0o644); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err := WritePNG(f, buf, scale); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
