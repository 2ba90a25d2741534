// Package layer is a client for the acme-styles compositor, a 9P service
// that keeps named layers of style runs per acme window and composes them
// into the window's style file.
//
// acme-crafts owns one layer per design window and uses it to tint each
// palette name in the JSON source with its colour:
//
//	c := layer.NewClient("acme-styles")
//	l, err := c.Open(winID, "crafts")
//	if err != nil { ... }      // compositor not running: skip highlighting
//	defer l.Delete()
//	l.Apply(palette, runs)
package layer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"

	"github.com/cptaffe/acme-crafts/style"
)

// Client holds one 9P connection to the compositor, shared by all layers
// opened through it.  The connection is made on first use and again after
// any error.
type Client struct {
	service string

	mu   sync.Mutex
	fsys *client.Fsys
}

// NewClient returns a client for the named service, normally
// "acme-styles".  No connection is made until a layer is opened.
func NewClient(service string) *Client {
	return &Client{service: service}
}

func (c *Client) conn() (*client.Fsys, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsys != nil {
		return c.fsys, nil
	}
	fs, err := client.MountService(c.service)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", c.service, err)
	}
	c.fsys = fs
	return fs, nil
}

// reset drops the cached connection so the next call reconnects.
func (c *Client) reset() {
	c.mu.Lock()
	c.fsys = nil
	c.mu.Unlock()
}

// Layer is one named layer on one window.
type Layer struct {
	c     *Client
	WinID int
	ID    int
	name  string // for re-allocation after a compositor restart
}

// Open returns the named layer on winID, creating it if needed.
func (c *Client) Open(winID int, name string) (*Layer, error) {
	fs, err := c.conn()
	if err != nil {
		return nil, err
	}
	id, err := findOrCreate(fs, winID, name)
	if err != nil {
		c.reset()
		return nil, err
	}
	return &Layer{c: c, WinID: winID, ID: id, name: name}, nil
}

// Apply replaces the layer's palette and runs.  An empty submission clears
// the layer.  A nil Layer is a no-op so callers need not check whether the
// compositor was reachable.
func (l *Layer) Apply(palette []style.PaletteEntry, runs []style.Run) error {
	if l == nil {
		return nil
	}
	if len(runs) == 0 {
		return l.Clear()
	}
	return l.write(style.Format(palette, runs))
}

// Splice replaces the layer's runs within [q0, q1) with the parts of runs
// that fall inside it, leaving the rest of the layer alone.  Palette entries
// are merged by name.
func (l *Layer) Splice(palette []style.PaletteEntry, runs []style.Run, q0, q1 int) error {
	if l == nil {
		return nil
	}
	if err := l.setAddr(q0, q1); err != nil {
		return err
	}
	return l.write(style.FormatAt(palette, runs, q0, q1))
}

// setAddr scopes the next style write to [q0, q1).  The compositor consumes
// the address when the style file is next opened.
func (l *Layer) setAddr(q0, q1 int) error {
	fs, err := l.c.conn()
	if err != nil {
		return err
	}
	fid, err := fs.Open(l.path("addr"), plan9.OWRITE)
	if err != nil {
		l.c.reset()
		return err
	}
	defer fid.Close()
	if _, err := fmt.Fprintf(fid, "%d %d", q0, q1); err != nil {
		l.c.reset()
		return fmt.Errorf("write addr: %w", err)
	}
	return nil
}

// write opens the style file OWRITE, which makes the compositor replace
// the layer's contents; the flush happens when the fid is clunked.  If the
// layer has vanished (compositor restarted) it is re-created once.
func (l *Layer) write(text string) error {
	fs, err := l.c.conn()
	if err != nil {
		return err
	}
	fid, err := fs.Open(l.path("style"), plan9.OWRITE)
	if err != nil {
		l.c.reset()
		if fs, err = l.c.conn(); err != nil {
			return err
		}
		id, err := findOrCreate(fs, l.WinID, l.name)
		if err != nil {
			l.c.reset()
			return fmt.Errorf("re-create layer %s: %w", l.name, err)
		}
		l.ID = id
		if fid, err = fs.Open(l.path("style"), plan9.OWRITE); err != nil {
			l.c.reset()
			return err
		}
	}
	defer fid.Close()
	if _, err := fid.Write([]byte(text)); err != nil {
		l.c.reset()
		return fmt.Errorf("write style: %w", err)
	}
	return nil
}

// Clear removes every run from the layer.
func (l *Layer) Clear() error {
	if l == nil {
		return nil
	}
	return l.ctl("clear\n")
}

// Delete removes the layer so highlights do not outlive the session.
func (l *Layer) Delete() error {
	if l == nil {
		return nil
	}
	return l.ctl("delete\n")
}

func (l *Layer) ctl(cmd string) error {
	fs, err := l.c.conn()
	if err != nil {
		return err
	}
	fid, err := fs.Open(l.path("ctl"), plan9.OWRITE)
	if err != nil {
		l.c.reset()
		return err
	}
	defer fid.Close()
	if _, err := fid.Write([]byte(cmd)); err != nil {
		l.c.reset()
		return fmt.Errorf("ctl %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

func (l *Layer) path(file string) string {
	return fmt.Sprintf("%d/layers/%d/%s", l.WinID, l.ID, file)
}

// ---- layer allocation ----

// parseIndex finds name in the text of a layers/index file.
func parseIndex(index, name string) (int, bool) {
	for _, line := range strings.Split(index, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == name {
			if id, err := strconv.Atoi(fields[0]); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func readFile(fs *client.Fsys, path string) (string, error) {
	fid, err := fs.Open(path, plan9.OREAD)
	if err != nil {
		return "", err
	}
	defer fid.Close()
	data, err := io.ReadAll(fid)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func findOrCreate(fs *client.Fsys, winID int, name string) (int, error) {
	if index, err := readFile(fs, fmt.Sprintf("%d/layers/index", winID)); err == nil {
		if id, ok := parseIndex(index, name); ok {
			return id, nil
		}
	}

	data, err := readFile(fs, fmt.Sprintf("%d/layers/new", winID))
	if err != nil {
		return 0, fmt.Errorf("allocate layer: %w", err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(data))
	if err != nil {
		return 0, fmt.Errorf("parse layer id %q: %w", data, err)
	}

	fid, err := fs.Open(fmt.Sprintf("%d/layers/%d/name", winID, id), plan9.OWRITE)
	if err != nil {
		return 0, fmt.Errorf("open layer name: %w", err)
	}
	defer fid.Close()
	if _, err := fid.Write([]byte(name)); err != nil {
		return 0, fmt.Errorf("name layer: %w", err)
	}
	return id, nil
}
