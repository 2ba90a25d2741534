package session

import (
	"9fans.net/go/acme"

	"github.com/cptaffe/acme-crafts/style"
)

// Window is the part of an acme window a session drives.  *acme.Win
// provides all of it apart from Close.
type Window interface {
	ReadAll(file string) ([]byte, error)
	Addr(format string, args ...interface{}) error
	Write(file string, b []byte) (int, error)
	Ctl(format string, args ...interface{}) error
	Err(msg string)
	ReadEvent() (*acme.Event, error)
	WriteEvent(e *acme.Event) error
	Close() error
}

// highlighter receives the style runs for a window.  *layer.Layer is the
// real one.
type highlighter interface {
	Apply(palette []style.PaletteEntry, runs []style.Run) error
	Splice(palette []style.PaletteEntry, runs []style.Run, q0, q1 int) error
	Delete() error
}

type acmeWin struct {
	*acme.Win
}

func openAcme(id int) (Window, error) {
	w, err := acme.Open(id, nil)
	if err != nil {
		return nil, err
	}
	return acmeWin{w}, nil
}

// Close releases the window's files; acme keeps the window itself.
func (w acmeWin) Close() error {
	w.CloseFiles()
	return nil
}
