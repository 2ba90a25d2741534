package craft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// RowSep separates palette names within a template row.
const RowSep = ", "

// PaletteEntry is one raw palette entry as written in the design document.
type PaletteEntry struct {
	Name string
	Spec string
}

// Field is a top-level design property other than palette and template.
// Unknown properties are carried through so that writing a design back
// does not drop them.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Design is the raw design document: an ordered palette and a template of
// row strings.  Palette order is significant; it decides which name wins
// when two entries resolve to the same colour.
type Design struct {
	Palette  []PaletteEntry
	Template []string
	Extra    []Field
}

// Clone returns a deep copy of d.
func (d *Design) Clone() *Design {
	if d == nil {
		return nil
	}
	out := &Design{
		Palette:  slices.Clone(d.Palette),
		Template: slices.Clone(d.Template),
	}
	for _, f := range d.Extra {
		out.Extra = append(out.Extra, Field{Key: f.Key, Value: append(json.RawMessage(nil), f.Value...)})
	}
	return out
}

// Rows splits every template row into its palette names.
func (d *Design) Rows() [][]string {
	rows := make([][]string, len(d.Template))
	for i, r := range d.Template {
		rows[i] = strings.Split(r, RowSep)
	}
	return rows
}

// MarshalJSON writes palette, template and any extra properties, keeping
// palette order.
func (d *Design) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"palette":{`)
	for i, e := range d.Palette {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKV(&buf, e.Name, e.Spec); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`},"template":`)
	tmpl := d.Template
	if tmpl == nil {
		tmpl = []string{}
	}
	b, err := json.Marshal(tmpl)
	if err != nil {
		return nil, err
	}
	buf.Write(b)
	for _, f := range d.Extra {
		buf.WriteByte(',')
		if err := writeKV(&buf, f.Key, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Format returns the design as JSON indented by two spaces, the form the
// design is written back into its source document.
func (d *Design) Format() ([]byte, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeKV(buf *bytes.Buffer, key string, v any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// ParseDesign decodes and validates design text.  It returns a
// *FormatError for malformed JSON and a *ValidationError for a document of
// the wrong shape.  Colours are not resolved here.
func ParseDesign(text []byte) (*Design, error) {
	if !json.Valid(text) {
		var v any
		return nil, &FormatError{Err: json.Unmarshal(text, &v)}
	}
	fields, err := decodeObject(text)
	if errors.Is(err, errNotObject) {
		return nil, &ValidationError{Err: ErrMissingProperty}
	}
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	var d Design
	var rawPalette, rawTemplate json.RawMessage
	for _, f := range fields {
		switch f.Key {
		case "palette":
			rawPalette = f.Value
		case "template":
			rawTemplate = f.Value
		default:
			d.Extra = append(d.Extra, f)
		}
	}
	if isAbsent(rawPalette) || isAbsent(rawTemplate) {
		return nil, &ValidationError{Err: ErrMissingProperty}
	}
	if err := json.Unmarshal(rawTemplate, &d.Template); err != nil {
		return nil, &ValidationError{Err: ErrNotArray}
	}
	pal, err := decodeObject(rawPalette)
	if err != nil {
		return nil, &ValidationError{Err: ErrPaletteNotObject}
	}
	d.Palette = make([]PaletteEntry, 0, len(pal))
	for _, f := range pal {
		var spec string
		if err := json.Unmarshal(f.Value, &spec); err != nil {
			return nil, &PaletteColorError{Name: f.Key, Spec: string(f.Value), Err: err}
		}
		d.Palette = append(d.Palette, PaletteEntry{Name: f.Key, Spec: spec})
	}
	if err := ValidateDesign(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ValidateDesign checks the template shape: at least one row, and every row
// holding as many names as the first.
func ValidateDesign(d *Design) error {
	if d == nil || d.Palette == nil || d.Template == nil {
		return &ValidationError{Err: ErrMissingProperty}
	}
	if len(d.Template) == 0 {
		return &ValidationError{Err: ErrEmptyTemplate}
	}
	want := len(strings.Split(d.Template[0], RowSep))
	for i, r := range d.Template {
		if n := len(strings.Split(r, RowSep)); n != want {
			return &ValidationError{Err: fmt.Errorf("%w (row %d has %d, want %d)", ErrRowLengthMismatch, i+1, n, want)}
		}
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var errNotObject = errors.New("not a JSON object")

// decodeObject reads a JSON object into its fields in document order.  A
// repeated key keeps its first position and takes the last value.
func decodeObject(data []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var fields []Field
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		if i, dup := index[key]; dup {
			fields[i].Value = raw
			continue
		}
		index[key] = len(fields)
		fields = append(fields, Field{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return fields, nil
}
