package craft

import (
	"errors"
	"fmt"
)

// Validation failures.  They are always reported wrapped in a
// *ValidationError; test with errors.Is.
var (
	ErrMissingProperty   = errors.New("design requires both template and palette properties")
	ErrNotArray          = errors.New("template property must be an array of strings")
	ErrRowLengthMismatch = errors.New("template rows must all be the same length")
	ErrPaletteNotObject  = errors.New("palette property must be an object of colour strings")
	ErrEmptyTemplate     = errors.New("template must contain at least one row")
)

// Editing failures.
var (
	ErrNotLoaded   = errors.New("no design loaded")
	ErrOutOfBounds = errors.New("cell is outside the grid")
	ErrNoFillColor = errors.New("no default (_) or selected colour to pad with")
	ErrNegativePad = errors.New("padding counts must not be negative")
)

const invalidSuffix = "design is invalid, check formatting"

// FormatError reports design text that is not valid JSON.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return "design text is not valid JSON"
	}
	return fmt.Sprintf("design text is not valid JSON: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError is a structurally invalid design.  Err is one of the
// Err* validation sentinels, possibly wrapped with row detail.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, invalidSuffix)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PaletteColorError reports a palette entry whose colour spec cannot be
// parsed.
type PaletteColorError struct {
	Name string
	Spec string
	Err  error
}

func (e *PaletteColorError) Error() string {
	return fmt.Sprintf("palette colour %q = %q is invalid: %v", e.Name, e.Spec, e.Err)
}

func (e *PaletteColorError) Unwrap() error { return e.Err }

// UnknownPaletteNameError reports a name that has no palette entry.  Row and
// Col locate the template cell that referenced it; both are -1 when the name
// did not come from a cell.
type UnknownPaletteNameError struct {
	Name string
	Row  int
	Col  int
}

func (e *UnknownPaletteNameError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("unknown palette name %q", e.Name)
	}
	return fmt.Sprintf("unknown palette name %q at row %d, column %d", e.Name, e.Row+1, e.Col+1)
}
