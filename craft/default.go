package craft

// DefaultDesign returns the starter design written into an empty source
// document: an 8x8 creeper face.
func DefaultDesign() *Design {
	return &Design{
		Palette: []PaletteEntry{
			{Name: "_", Spec: "0, 0, 0, 0"},
			{Name: "g", Spec: "#5dbb3f"},
			{Name: "d", Spec: "#3e8a2b"},
			{Name: "k", Spec: "black"},
		},
		Template: []string{
			"g, g, d, g, g, d, g, g",
			"g, k, k, g, g, k, k, g",
			"d, k, k, g, d, k, k, g",
			"g, g, g, k, k, g, g, d",
			"g, d, k, k, k, k, g, g",
			"g, g, k, k, k, k, d, g",
			"g, g, k, g, g, k, g, g",
			"d, g, g, g, g, g, g, d",
		},
	}
}
