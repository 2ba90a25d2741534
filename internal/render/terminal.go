package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cptaffe/acme-crafts/craft"
)

// opaqueMin is the alpha at or above which a cell is drawn in the terminal;
// lighter cells show the terminal background.
const opaqueMin = 0x80

// Terminal renders pixel buffers as coloured half blocks, two pixel rows
// per text line.
type Terminal struct {
	r *lipgloss.Renderer
}

// NewTerminal returns a renderer writing with r, or with lipgloss's default
// renderer when r is nil.
func NewTerminal(r *lipgloss.Renderer) *Terminal {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Terminal{r: r}
}

func hex(px [4]byte) lipgloss.Color {
	return lipgloss.Color(craft.Color{R: px[0], G: px[1], B: px[2], A: 1}.Hex())
}

// Render draws buf.  An odd final row is drawn as a top half only.
func (t *Terminal) Render(buf *craft.PixelBuffer) string {
	var sb strings.Builder
	for y := 0; y < buf.Height; y += 2 {
		for x := 0; x < buf.Width; x++ {
			top := buf.At(x, y)
			var bottom [4]byte
			if y+1 < buf.Height {
				bottom = buf.At(x, y+1)
			}
			sb.WriteString(t.cell(top, bottom))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (t *Terminal) cell(top, bottom [4]byte) string {
	showTop, showBottom := top[3] >= opaqueMin, bottom[3] >= opaqueMin
	switch {
	case showTop && showBottom:
		return t.r.NewStyle().Foreground(hex(top)).Background(hex(bottom)).Render("▀")
	case showTop:
		return t.r.NewStyle().Foreground(hex(top)).Render("▀")
	case showBottom:
		return t.r.NewStyle().Foreground(hex(bottom)).Render("▄")
	}
	return " "
}

// Swatches lists the palette, one name per line beside a sample of its
// colour.
func (t *Terminal) Swatches(listing []craft.NamedColor) string {
	var sb strings.Builder
	for _, nc := range listing {
		sample := "  "
		if px := nc.Color.Bytes(); px[3] >= opaqueMin {
			sample = t.r.NewStyle().Foreground(hex(px)).Render("██")
		}
		sb.WriteString(sample)
		sb.WriteString(" ")
		sb.WriteString(nc.Name)
		sb.WriteString("  ")
		sb.WriteString(nc.Color.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
