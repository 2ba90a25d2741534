package craft

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// Color is a resolved palette colour.  R, G and B are 0–255; A is 0–1.
type Color struct {
	R, G, B uint8
	A       float64
}

// WithAlpha returns c with its alpha channel replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = clamp01(a)
	return c
}

// Bytes returns the colour as four raster bytes: RGB followed by alpha
// scaled to 0–255 and rounded to the nearest integer.
func (c Color) Bytes() [4]byte {
	return [4]byte{c.R, c.G, c.B, uint8(math.Round(clamp01(c.A) * 255))}
}

// Hex returns "#rrggbb"; alpha is dropped.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String formats the colour in CSS notation.
func (c Color) String() string {
	if c.A >= 1 {
		return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'g', -1, 64))
}

var errTupleArity = errors.New("colour tuple needs 3 or 4 channels")

// ParseColor resolves a palette colour spec.  Comma-separated numeric
// tuples "r, g, b[, a]" are read directly: r, g and b are integers 0–255,
// a is a float where values above 1 are taken as 0–255 and normalised.
// Anything else is parsed as a CSS colour string (hex, named, rgb(), hsl()).
func ParseColor(spec string) (Color, error) {
	s := strings.TrimSpace(spec)
	if isTuple(s) {
		return parseTuple(s)
	}
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return Color{}, err
	}
	return Color{R: unit255(c.R), G: unit255(c.G), B: unit255(c.B), A: clamp01(c.A)}, nil
}

// isTuple reports whether s is a bare list of numbers separated by commas.
func isTuple(s string) bool {
	if !strings.Contains(s, ",") {
		return false
	}
	for _, f := range strings.Split(s, ",") {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return false
		}
	}
	return true
}

func parseTuple(s string) (Color, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 && len(fields) != 4 {
		return Color{}, errTupleArity
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return Color{}, fmt.Errorf("channel %d: %w", i, err)
		}
		if n < 0 || n > 255 {
			return Color{}, fmt.Errorf("channel %d: %d out of range 0-255", i, n)
		}
		ch[i] = uint8(n)
	}
	c := Color{R: ch[0], G: ch[1], B: ch[2], A: 1}
	if len(fields) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil {
			return Color{}, fmt.Errorf("alpha: %w", err)
		}
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return Color{}, fmt.Errorf("alpha: %v is not a number", a)
		}
		if a < 0 {
			return Color{}, fmt.Errorf("alpha: %v is negative", a)
		}
		if a > 1 {
			a /= 255
		}
		c.A = clamp01(a)
	}
	return c, nil
}

func unit255(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
