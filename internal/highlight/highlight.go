// Package highlight turns palette names in design source text into
// acme-styles runs, so each name is shown on its own colour.
package highlight

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/cptaffe/acme-crafts/craft"
	"github.com/cptaffe/acme-crafts/style"
)

// StyleName is the compositor style used for the i'th palette entry.
// Palette names may contain characters the wire format cannot carry, so
// styles are named by position.
func StyleName(i int) string {
	return "craft." + strconv.Itoa(i)
}

// Palette returns one style per visible palette colour.  Translucent
// colours are blended over white; fully transparent ones get no style, so
// the compositor leaves their runs unstyled.
func Palette(listing []craft.NamedColor) []style.PaletteEntry {
	out := make([]style.PaletteEntry, 0, len(listing))
	for i, nc := range listing {
		c := nc.Color
		if c.A == 0 {
			continue
		}
		out = append(out, style.Swatch(StyleName(i), over(c.R, c.A), over(c.G, c.A), over(c.B, c.A)))
	}
	return out
}

func over(v uint8, a float64) uint8 {
	return uint8(float64(v)*a + 255*(1-a) + 0.5)
}

// span is a byte range [start, end) of body.
type span struct{ start, end int }

// Runs finds palette names in body: the keys of the palette object and
// every name in the template rows.  Offsets are in runes.  Body must be
// valid JSON; names not in listing are ignored.
func Runs(body []byte, listing []craft.NamedColor) ([]style.Run, error) {
	index := make(map[string]int, len(listing))
	for i, nc := range listing {
		if _, dup := index[nc.Name]; !dup {
			index[nc.Name] = i
		}
	}
	palette, template, err := regions(body)
	if err != nil {
		return nil, err
	}

	var spans []style.Run
	add := func(name string, start, end int) {
		if i, ok := index[name]; ok && end > start {
			spans = append(spans, style.Run{Name: StyleName(i), Start: start, End: end})
		}
	}
	for _, lit := range literals(body, palette) {
		if isKey(body, lit.end+1) {
			add(string(body[lit.start:lit.end]), lit.start, lit.end)
		}
	}
	for _, lit := range literals(body, template) {
		start := lit.start
		for {
			i := bytes.Index(body[start:lit.end], []byte(craft.RowSep))
			if i < 0 {
				add(string(body[start:lit.end]), start, lit.end)
				break
			}
			add(string(body[start:start+i]), start, start+i)
			start += i + len(craft.RowSep)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	toRunes(body, spans)
	return spans, nil
}

var errNoObject = errors.New("design source is not a JSON object")

// regions locates the byte ranges of the top-level palette and template
// values.
func regions(body []byte) (palette, template span, err error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return span{}, span{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return span{}, span{}, errNoObject
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return span{}, span{}, err
		}
		key, _ := tok.(string)
		start := int(dec.InputOffset())
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return span{}, span{}, err
		}
		s := span{start, int(dec.InputOffset())}
		switch key {
		case "palette":
			palette = s
		case "template":
			template = s
		}
	}
	return palette, template, nil
}

// literals returns the content ranges (quotes excluded) of the string
// literals inside r.  Literals with escapes are skipped; palette names
// never need them.
func literals(body []byte, r span) []span {
	var out []span
	for i := r.start; i < r.end; i++ {
		if body[i] != '"' {
			continue
		}
		start, escaped := i+1, false
		j := start
		for ; j < r.end && body[j] != '"'; j++ {
			if body[j] == '\\' {
				escaped = true
				j++
			}
		}
		if j >= r.end {
			break
		}
		if !escaped {
			out = append(out, span{start, j})
		}
		i = j
	}
	return out
}

// isKey reports whether the next non-space byte at or after i is ':'.
func isKey(body []byte, i int) bool {
	for ; i < len(body); i++ {
		switch body[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}

// toRunes rewrites byte offsets as rune offsets.  Runs must be sorted by
// Start and must not overlap.
func toRunes(body []byte, runs []style.Run) {
	pos, runes := 0, 0
	advance := func(to int) int {
		runes += utf8.RuneCount(body[pos:to])
		pos = to
		return runes
	}
	for i := range runs {
		runs[i].Start = advance(runs[i].Start)
		runs[i].End = advance(runs[i].End)
	}
}
