package craft

// DefaultName is the palette name used to fill new cells when padding.
const DefaultName = "_"

// NamedColor is one resolved palette entry.
type NamedColor struct {
	Name  string
	Color Color
}

// Palette is an ordered set of named colours with a reverse index from a
// colour to the first name that resolves to it.
type Palette struct {
	names  []string
	colors map[string]Color
	byKey  map[Color]string
}

// BuildPalette resolves every entry.  It fails with a *PaletteColorError on
// the first spec that does not parse.
func BuildPalette(entries []PaletteEntry) (*Palette, error) {
	p := &Palette{
		colors: make(map[string]Color, len(entries)),
		byKey:  make(map[Color]string, len(entries)),
	}
	for _, e := range entries {
		c, err := ParseColor(e.Spec)
		if err != nil {
			return nil, &PaletteColorError{Name: e.Name, Spec: e.Spec, Err: err}
		}
		if _, dup := p.colors[e.Name]; !dup {
			p.names = append(p.names, e.Name)
		}
		p.colors[e.Name] = c
		if _, taken := p.byKey[c]; !taken {
			p.byKey[c] = e.Name
		}
	}
	return p, nil
}

// Lookup returns the colour for name.
func (p *Palette) Lookup(name string) (Color, bool) {
	c, ok := p.colors[name]
	return c, ok
}

// NameFor returns the first name, in palette order, whose colour equals c.
func (p *Palette) NameFor(c Color) (string, bool) {
	n, ok := p.byKey[c]
	return n, ok
}

// Default returns the "_" background colour if the palette defines one.
func (p *Palette) Default() (Color, bool) {
	return p.Lookup(DefaultName)
}

// Len returns the number of names.
func (p *Palette) Len() int { return len(p.names) }

// Names returns the palette names in order.
func (p *Palette) Names() []string {
	return append([]string(nil), p.names...)
}

// Listing returns the resolved palette in order.
func (p *Palette) Listing() []NamedColor {
	out := make([]NamedColor, len(p.names))
	for i, n := range p.names {
		out[i] = NamedColor{Name: n, Color: p.colors[n]}
	}
	return out
}
