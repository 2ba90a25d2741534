package craft

import (
	"fmt"
	"image"
	"strings"
)

// Grid is a resolved template: rows of concrete colours, all the same
// length.
type Grid [][]Color

// BuildGrid resolves each row string through p.  A name missing from the
// palette fails with *UnknownPaletteNameError.
func BuildGrid(rows []string, p *Palette) (Grid, error) {
	g := make(Grid, len(rows))
	for r, row := range rows {
		names := strings.Split(row, RowSep)
		g[r] = make([]Color, len(names))
		for c, name := range names {
			color, ok := p.Lookup(name)
			if !ok {
				return nil, &UnknownPaletteNameError{Name: name, Row: r, Col: c}
			}
			g[r][c] = color
		}
	}
	return g, nil
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Cols returns the number of columns (0 for an empty grid).
func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Contains reports whether (col, row) addresses a cell.
func (g Grid) Contains(col, row int) bool {
	return row >= 0 && row < g.Rows() && col >= 0 && col < len(g[row])
}

// Clone returns a deep copy; rows never share backing arrays.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, r := range g {
		out[i] = append([]Color(nil), r...)
	}
	return out
}

// RowStrings maps every cell back to its palette name, producing the
// compact template form.
func (g Grid) RowStrings(p *Palette) ([]string, error) {
	out := make([]string, len(g))
	names := make([]string, 0, g.Cols())
	for r, row := range g {
		names = names[:0]
		for c, color := range row {
			n, ok := p.NameFor(color)
			if !ok {
				return nil, fmt.Errorf("row %d, column %d: colour %v has no palette name", r+1, c+1, color)
			}
			names = append(names, n)
		}
		out[r] = strings.Join(names, RowSep)
	}
	return out, nil
}

// Raster flattens the grid into row-major RGBA bytes.
func (g Grid) Raster() *PixelBuffer {
	b := NewPixelBuffer(g.Cols(), g.Rows())
	for r, row := range g {
		for c, color := range row {
			b.Set(c, r, color)
		}
	}
	return b
}

// PixelBuffer is row-major RGBA, four bytes per cell.
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int
}

// NewPixelBuffer returns a zeroed (fully transparent) buffer.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{Pix: make([]byte, width*height*4), Width: width, Height: height}
}

// Set writes c into cell (col, row).
func (b *PixelBuffer) Set(col, row int, c Color) {
	px := c.Bytes()
	copy(b.Pix[(row*b.Width+col)*4:], px[:])
}

// At returns the four bytes of cell (col, row).
func (b *PixelBuffer) At(col, row int) [4]byte {
	var px [4]byte
	copy(px[:], b.Pix[(row*b.Width+col)*4:])
	return px
}

// Clone returns a copy that does not share Pix.
func (b *PixelBuffer) Clone() *PixelBuffer {
	return &PixelBuffer{Pix: append([]byte(nil), b.Pix...), Width: b.Width, Height: b.Height}
}

// NRGBA returns the buffer as a 1:1 image.  Raster bytes are not
// premultiplied, which is the NRGBA layout.
func (b *PixelBuffer) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Pix)
	return img
}
