// Package style holds the wire-format types of the acme-styles compositor,
// which acme-crafts uses to tint palette names in the design source.
//
// A style submission is a block of palette lines (":name fg=#rrggbb
// bg=#rrggbb") followed by run lines ("start length name") in rune
// offsets.
package style

import (
	"fmt"
	"strings"
)

// PaletteEntry is a named visual style.
type PaletteEntry struct {
	Name string
	FG   string // "#rrggbb", or ""
	BG   string // "#rrggbb", or ""
	Bold bool
}

// Swatch returns an entry that paints text on bg, choosing black or white
// text from the perceived luminance of bg.
func Swatch(name string, r, g, b uint8) PaletteEntry {
	return PaletteEntry{
		Name: name,
		FG:   contrastFG(r, g, b),
		BG:   fmt.Sprintf("#%02x%02x%02x", r, g, b),
	}
}

func contrastFG(r, g, b uint8) string {
	// ITU-R BT.601 luma.
	y := 299*int(r) + 587*int(g) + 114*int(b)
	if y >= 128*1000 {
		return "#000000"
	}
	return "#ffffff"
}

// Equal reports whether e and o look the same (Name is ignored).
func (e PaletteEntry) Equal(o PaletteEntry) bool {
	return e.FG == o.FG && e.BG == o.BG && e.Bold == o.Bold
}

func (e PaletteEntry) String() string {
	var sb strings.Builder
	sb.WriteString(":" + e.Name)
	if e.FG != "" {
		sb.WriteString(" fg=" + e.FG)
	}
	if e.BG != "" {
		sb.WriteString(" bg=" + e.BG)
	}
	if e.Bold {
		sb.WriteString(" bold")
	}
	return sb.String()
}

// Run is a styled span of the body.  Start and End are rune offsets; End
// is exclusive.
type Run struct {
	Name  string
	Start int
	End   int // exclusive
}

func (r Run) String() string {
	return fmt.Sprintf("%d %d %s", r.Start, r.End-r.Start, r.Name)
}

// Format serialises palette entries and runs into one submission.
func Format(palette []PaletteEntry, runs []Run) string {
	var sb strings.Builder
	for _, e := range palette {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	for _, r := range runs {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatAt is Format for a submission scoped to [q0, q1): only runs that
// overlap the range are kept, clipped to it, with offsets relative to q0.
func FormatAt(palette []PaletteEntry, runs []Run, q0, q1 int) string {
	clipped := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.End <= q0 || r.Start >= q1 {
			continue
		}
		r.Start = max(r.Start, q0) - q0
		r.End = min(r.End, q1) - q0
		clipped = append(clipped, r)
	}
	return Format(palette, clipped)
}
