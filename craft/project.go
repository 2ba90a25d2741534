// Package craft is the in-memory model of a pixel-art design: a named
// colour palette and a template of comma-separated palette names, one
// string per row.
//
// A Project parses and validates design JSON, resolves the template into a
// colour grid, rasterises it, and applies edits (painting single cells,
// padding the grid).  Every edit rewrites the compact template and is
// announced to OnDesignChanged subscribers, which typically write the
// design back into its source document.
//
// A Project is not safe for concurrent use; the host serialises calls.
package craft

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultPixelSize is the side, in screen pixels, of one rendered cell.
const DefaultPixelSize = 20

type options struct {
	pixelSize int
	editable  bool
	log       *zap.Logger
}

// Option configures a Project.
type Option func(*options)

// WithPixelSize sets the rendered cell size used to map pointer
// coordinates to cells.  Non-positive sizes are ignored.
func WithPixelSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pixelSize = n
		}
	}
}

// WithEditable controls whether pointer gestures paint.  Projects are
// editable by default.
func WithEditable(editable bool) Option {
	return func(o *options) { o.editable = editable }
}

// WithLogger sets the logger for debug tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Project owns a loaded design and everything derived from it.
type Project struct {
	opts options

	design  *Design
	palette *Palette
	grid    Grid
	preview *PixelBuffer // editing preview; nil until first requested

	selected string
	pos      *GridPos
	editing  bool

	designChanged  listeners[*Design]
	gridPosChanged listeners[GridPos]
}

// New returns an empty project.
func New(opts ...Option) *Project {
	o := options{pixelSize: DefaultPixelSize, editable: true, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return &Project{opts: o}
}

// Load returns a project with text already loaded.
func Load(text []byte, opts ...Option) (*Project, error) {
	p := New(opts...)
	if err := p.SetDesign(text); err != nil {
		return nil, err
	}
	return p, nil
}

// PixelSize returns the rendered cell size.
func (p *Project) PixelSize() int { return p.opts.pixelSize }

// Editable reports whether pointer gestures paint.
func (p *Project) Editable() bool { return p.opts.editable }

// ---- loading ----

// SetDesign parses, validates and resolves design text, replacing the
// current design.  On any error the previously loaded design is left
// untouched.
func (p *Project) SetDesign(text []byte) error {
	d, err := ParseDesign(text)
	if err != nil {
		p.opts.log.Debug("design rejected", zap.Error(err))
		return err
	}
	return p.SetDesignValue(d)
}

// SetDesignValue validates and resolves d, replacing the current design.
// The project keeps its own copy of d.
func (p *Project) SetDesignValue(d *Design) error {
	if err := ValidateDesign(d); err != nil {
		return err
	}
	d = d.Clone()
	pal, err := BuildPalette(d.Palette)
	if err != nil {
		return err
	}
	grid, err := BuildGrid(d.Template, pal)
	if err != nil {
		return err
	}

	if p.design != nil {
		p.Destroy()
	}
	p.design = d
	p.palette = pal
	p.grid = grid
	if _, ok := pal.Lookup(p.selected); !ok && pal.Len() > 0 {
		p.selected = pal.Names()[0]
	}
	p.opts.log.Debug("design loaded",
		zap.Int("rows", grid.Rows()),
		zap.Int("cols", grid.Cols()),
		zap.Int("palette", pal.Len()))
	return nil
}

// Destroy drops the design and everything derived from it.  Subscriptions
// survive.  Calling Destroy more than once is harmless.
func (p *Project) Destroy() {
	p.design = nil
	p.palette = nil
	p.grid = nil
	p.preview = nil
	p.pos = nil
	p.editing = false
}

// ---- accessors ----

// IsValid reports whether a design is loaded.
func (p *Project) IsValid() bool { return p.grid != nil }

// Rows returns the template row count.
func (p *Project) Rows() int { return p.grid.Rows() }

// Cols returns the template column count.
func (p *Project) Cols() int { return p.grid.Cols() }

// Design returns a copy of the raw design, or nil.
func (p *Project) Design() *Design { return p.design.Clone() }

// Grid returns a copy of the resolved template.
func (p *Project) Grid() Grid { return p.grid.Clone() }

// Palette returns the resolved palette, or nil.  Palettes are immutable.
func (p *Project) Palette() *Palette { return p.palette }

// PaletteListing returns the resolved palette in order.
func (p *Project) PaletteListing() []NamedColor {
	if p.palette == nil {
		return nil
	}
	return p.palette.Listing()
}

// PixelBuffer rasterises the stored template.
func (p *Project) PixelBuffer() (*PixelBuffer, error) {
	if !p.IsValid() {
		return nil, ErrNotLoaded
	}
	return p.grid.Raster(), nil
}

// Preview returns the editing preview: the raster as last painted, where
// cells painted with a fully transparent colour show at half alpha so they
// remain visible.
func (p *Project) Preview() (*PixelBuffer, error) {
	if !p.IsValid() {
		return nil, ErrNotLoaded
	}
	if p.preview == nil {
		p.preview = p.grid.Raster()
	}
	return p.preview.Clone(), nil
}

// ---- selection ----

// SelectedColor returns the palette name used for painting.
func (p *Project) SelectedColor() string { return p.selected }

// SetSelectedColor selects the palette name used for painting.
func (p *Project) SetSelectedColor(name string) { p.selected = name }

// GridPosition returns the last reported pointer cell.
func (p *Project) GridPosition() (GridPos, bool) {
	if p.pos == nil {
		return GridPos{}, false
	}
	return *p.pos, true
}

// ---- events ----

// OnDesignChanged registers fn to receive a copy of the design after every
// edit.  The returned func unsubscribes.
func (p *Project) OnDesignChanged(fn func(*Design)) func() {
	return p.designChanged.add(fn)
}

// OnGridPositionChanged registers fn to receive the pointer cell whenever it
// changes.  The returned func unsubscribes.
func (p *Project) OnGridPositionChanged(fn func(GridPos)) func() {
	return p.gridPosChanged.add(fn)
}

func (p *Project) emitDesignChanged() {
	if p.design == nil {
		return
	}
	p.designChanged.emit(p.design.Clone())
}

// ---- editing ----

// PaintPixelAt sets cell (col, row) to the named palette colour, rewrites
// the template and emits a design change.
func (p *Project) PaintPixelAt(col, row int, name string) error {
	if err := p.paint(col, row, name); err != nil {
		return err
	}
	p.emitDesignChanged()
	return nil
}

func (p *Project) paint(col, row int, name string) error {
	if !p.IsValid() {
		return ErrNotLoaded
	}
	if !p.grid.Contains(col, row) {
		return fmt.Errorf("%w: column %d, row %d", ErrOutOfBounds, col, row)
	}
	color, ok := p.palette.Lookup(name)
	if !ok {
		return &UnknownPaletteNameError{Name: name, Row: row, Col: col}
	}

	grid := p.grid.Clone()
	grid[row][col] = color
	rows, err := grid.RowStrings(p.palette)
	if err != nil {
		return err
	}

	if p.preview == nil {
		p.preview = p.grid.Raster()
	}
	visible := color
	if visible.A == 0 {
		visible = visible.WithAlpha(0.5)
	}
	p.preview.Set(col, row, visible)
	p.grid = grid
	p.design.Template = rows
	p.opts.log.Debug("painted", zap.Int("col", col), zap.Int("row", row), zap.String("color", name))
	return nil
}

// Padding is the number of rows or columns to add on each side.
type Padding struct {
	Top    int
	Left   int
	Right  int
	Bottom int
}

// Pad grows the grid, filling new cells with the "_" colour when the
// palette has one and the selected colour otherwise, then emits a design
// change.
func (p *Project) Pad(pad Padding) error {
	if !p.IsValid() {
		return ErrNotLoaded
	}
	if pad.Top < 0 || pad.Left < 0 || pad.Right < 0 || pad.Bottom < 0 {
		return fmt.Errorf("%w: %+v", ErrNegativePad, pad)
	}
	fill, ok := p.palette.Default()
	if !ok {
		fill, ok = p.palette.Lookup(p.selected)
	}
	if !ok {
		return ErrNoFillColor
	}

	cols := p.grid.Cols() + pad.Left + pad.Right
	fillRow := func() []Color {
		r := make([]Color, cols)
		for i := range r {
			r[i] = fill
		}
		return r
	}
	grid := make(Grid, 0, p.grid.Rows()+pad.Top+pad.Bottom)
	for i := 0; i < pad.Top; i++ {
		grid = append(grid, fillRow())
	}
	for _, old := range p.grid {
		r := fillRow()
		copy(r[pad.Left:], old)
		grid = append(grid, r)
	}
	for i := 0; i < pad.Bottom; i++ {
		grid = append(grid, fillRow())
	}

	rows, err := grid.RowStrings(p.palette)
	if err != nil {
		return err
	}
	p.grid = grid
	p.preview = nil
	p.design.Template = rows
	p.opts.log.Debug("padded",
		zap.Int("top", pad.Top), zap.Int("left", pad.Left),
		zap.Int("right", pad.Right), zap.Int("bottom", pad.Bottom))
	p.emitDesignChanged()
	return nil
}

// ---- pointer gestures ----

// cellAt maps pointer coordinates in rendered pixels to a cell.
func (p *Project) cellAt(x, y int) GridPos {
	return GridPos{Col: floorDiv(x, p.opts.pixelSize), Row: floorDiv(y, p.opts.pixelSize)}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// PointerDown starts a paint stroke.
func (p *Project) PointerDown() {
	if !p.opts.editable {
		return
	}
	p.editing = true
	p.pos = nil
}

// PointerMove reports the pointer at (x, y) rendered pixels.  Entering a new
// cell emits a grid position change and, during a stroke, paints the cell
// with the selected colour.  Cells outside the grid are reported but never
// painted.
func (p *Project) PointerMove(x, y int) error {
	if !p.opts.editable {
		return nil
	}
	pos := p.cellAt(x, y)
	if p.pos != nil && *p.pos == pos {
		return nil
	}
	p.pos = &pos
	p.gridPosChanged.emit(pos)
	if p.editing && p.grid.Contains(pos.Col, pos.Row) {
		return p.paint(pos.Col, pos.Row, p.selected)
	}
	return nil
}

// PointerUp ends a stroke and emits the design.
func (p *Project) PointerUp() {
	if !p.opts.editable {
		return
	}
	p.editing = false
	p.emitDesignChanged()
}

// PointerLeave ends a stroke in progress and emits the design.
func (p *Project) PointerLeave() {
	if !p.opts.editable || !p.editing {
		return
	}
	p.editing = false
	p.emitDesignChanged()
}

// Click paints the cell under (x, y) once and emits the design.
func (p *Project) Click(x, y int) error {
	if !p.opts.editable {
		return nil
	}
	pos := p.cellAt(x, y)
	if err := p.paint(pos.Col, pos.Row, p.selected); err != nil {
		return err
	}
	p.emitDesignChanged()
	return nil
}
