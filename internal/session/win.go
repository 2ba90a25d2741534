package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"9fans.net/go/acme"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-crafts/craft"
	"github.com/cptaffe/acme-crafts/internal/highlight"
	"github.com/cptaffe/acme-crafts/internal/render"
	"github.com/cptaffe/acme-crafts/logger"
	"github.com/cptaffe/acme-crafts/style"
)

// callTimeout is the maximum time call() will wait for the window goroutine
// to process a closure.
const callTimeout = 5 * time.Second

var errReadOnly = errors.New("design is not editable")

// WinState is the actor for one design window.
//
// The fields ID, Name, ctx, cancel, cmdCh, and srv are set once at
// construction and may be read from any goroutine without a lock.
//
// All remaining fields are owned exclusively by the run() goroutine and
// must not be accessed from any other goroutine.
type WinState struct {
	ID     int
	Name   string
	ctx    context.Context
	cancel context.CancelFunc
	cmdCh  chan func(*WinState)
	srv    *Server

	// Owned by run(); do not access from other goroutines.
	win         Window
	hl          highlighter
	proj        *craft.Project
	body        []byte // body text the project was last loaded from or wrote
	stale       bool   // body edited since body was recorded
	reloadTimer *time.Timer
	applied     bool // prevPalette and prevRuns are what the compositor holds
	prevPalette []style.PaletteEntry
	prevRuns    []style.Run // kept in step with body edits
}

func newWinState(ctx context.Context, cancel context.CancelFunc, s *Server, id int, name string, w Window, hl highlighter) *WinState {
	ws := &WinState{
		ID:     id,
		Name:   name,
		ctx:    ctx,
		cancel: cancel,
		cmdCh:  make(chan func(*WinState), 64),
		srv:    s,
		win:    w,
		hl:     hl,
		proj: craft.New(
			craft.WithPixelSize(s.cfg.PixelSize),
			craft.WithEditable(s.cfg.Editable),
			craft.WithLogger(logger.L(ctx)),
		),
	}
	ws.proj.OnDesignChanged(ws.designChanged)
	return ws
}

// submit enqueues fn to run in the window's goroutine.  Returns immediately;
// fn runs asynchronously.  Drops the fn silently if ctx is already cancelled.
func (ws *WinState) submit(fn func(*WinState)) {
	select {
	case ws.cmdCh <- fn:
	case <-ws.ctx.Done():
	}
}

// call enqueues fn and blocks until it has run, ctx is cancelled, or
// callTimeout elapses.  Returns true if fn ran to completion.
func (ws *WinState) call(fn func(*WinState)) bool {
	done := make(chan struct{})
	ws.submit(func(ws *WinState) {
		fn(ws)
		close(done)
	})
	select {
	case <-done:
		return true
	case <-ws.ctx.Done():
		return false
	case <-time.After(callTimeout):
		logger.L(ws.ctx).Warn("call timed out; window goroutine unresponsive")
		return false
	}
}

// run is the window goroutine.  It owns all mutable WinState fields and is
// the only goroutine that touches them.
func (ws *WinState) run() {
	defer ws.srv.wg.Done()
	log := logger.L(ws.ctx)

	ws.reloadTimer = time.NewTimer(ws.srv.cfg.Debounce)
	ws.reloadTimer.Stop()

	ws.reload()
	events := ws.readEvents()

	for {
		select {
		case fn := <-ws.cmdCh:
			fn(ws)

		case e, ok := <-events:
			if !ok {
				// Event file closed; the window is going away and the
				// global acme log will delete it shortly.
				events = nil
				continue
			}
			ws.handleEvent(e)

		case <-ws.reloadTimer.C:
			ws.reload()

		case <-ws.ctx.Done():
			ws.reloadTimer.Stop()
			if err := ws.close(); err != nil {
				log.Warn("close window", zap.Error(err))
			}
			log.Debug("detached")
			return
		}
	}
}

// readEvents starts the goroutine that reads the window's event file.  It
// exits when the file is closed.
func (ws *WinState) readEvents() <-chan *acme.Event {
	ch := make(chan *acme.Event)
	go func() {
		defer close(ch)
		for {
			e, err := ws.win.ReadEvent()
			if err != nil {
				return
			}
			select {
			case ch <- e:
			case <-ws.ctx.Done():
				return
			}
		}
	}()
	return ch
}

// close removes the window's highlights and releases its files.
func (ws *WinState) close() error {
	ws.proj.Destroy()
	var err error
	if ws.hl != nil {
		err = multierr.Append(err, ws.hl.Delete())
	}
	return multierr.Append(err, ws.win.Close())
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// ---- internal goroutine-owned helpers ----

func (ws *WinState) handleEvent(e *acme.Event) {
	switch e.C2 {
	case 'I':
		ws.prevRuns = highlight.Inserted(ws.prevRuns, e.Q0, e.Q1-e.Q0)
		ws.stale = true
		resetTimer(ws.reloadTimer, ws.srv.cfg.Debounce)
	case 'D':
		ws.prevRuns = highlight.Deleted(ws.prevRuns, e.Q0, e.Q1)
		ws.stale = true
		resetTimer(ws.reloadTimer, ws.srv.cfg.Debounce)
	case 'x', 'X':
		line := strings.TrimSpace(string(e.Text) + " " + string(e.Arg))
		cmd, ok, err := parseCommand(line)
		if !ok {
			ws.passBack(e)
			return
		}
		if err == nil {
			err = ws.exec(cmd)
		}
		if err != nil {
			ws.report(err)
		}
	case 'l', 'L':
		ws.passBack(e)
	}
}

// passBack returns an event to acme for default handling.
func (ws *WinState) passBack(e *acme.Event) {
	if err := ws.win.WriteEvent(e); err != nil {
		logger.L(ws.ctx).Debug("write event", zap.Error(err))
	}
}

// report shows err in the window's +Errors and logs it.
func (ws *WinState) report(err error) {
	logger.L(ws.ctx).Warn("design error", zap.Error(err))
	ws.win.Err(fmt.Sprintf("%s: %v", ws.Name, err))
}

// reload loads the body into the project.  An empty body receives the
// default design.  A body that fails to load is reported and the previous
// design stays loaded.
func (ws *WinState) reload() {
	ws.stale = false
	body, err := ws.win.ReadAll("body")
	if err != nil {
		logger.L(ws.ctx).Error("read body", zap.Error(err))
		return
	}
	if ws.body != nil && bytes.Equal(body, ws.body) {
		// Our own write, or an edit that was undone.  The compositor moved
		// or dropped runs for the edits, so resubmit what changed.
		ws.refreshHighlights()
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if err := ws.proj.SetDesignValue(craft.DefaultDesign()); err != nil {
			ws.report(err)
			return
		}
		ws.designChanged(ws.proj.Design())
		return
	}
	if err := ws.proj.SetDesign(body); err != nil {
		ws.report(err)
		return
	}
	ws.body = body
	ws.refreshHighlights()
}

// designChanged writes d back into the body and refreshes everything
// derived from it.
func (ws *WinState) designChanged(d *craft.Design) {
	log := logger.L(ws.ctx)
	text, err := d.Format()
	if err != nil {
		log.Error("format design", zap.Error(err))
		return
	}
	if err := ws.writeBody(text); err != nil {
		log.Error("write body", zap.Error(err))
		return
	}
	ws.body = text
	ws.refreshHighlights()
	if ws.srv.cfg.PreviewDir != "" {
		if err := ws.writePreview(); err != nil {
			log.Warn("write preview", zap.Error(err))
		}
	}
}

// writeBody replaces the whole body with text and puts dot back at the
// start.  The window stays dirty until the user runs Put.
func (ws *WinState) writeBody(text []byte) error {
	if err := ws.win.Addr(","); err != nil {
		return fmt.Errorf("addr: %w", err)
	}
	if _, err := ws.win.Write("data", text); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := ws.win.Addr("#0"); err != nil {
		return fmt.Errorf("addr: %w", err)
	}
	return ws.win.Ctl("dot=addr")
}

func (ws *WinState) refreshHighlights() {
	if ws.hl == nil || !ws.proj.IsValid() {
		return
	}
	listing := ws.proj.PaletteListing()
	pal := highlight.Palette(listing)
	runs, err := highlight.Runs(ws.body, listing)
	if err != nil {
		logger.L(ws.ctx).Debug("highlight runs", zap.Error(err))
		return
	}
	if ws.applied && highlight.PalettesEqual(ws.prevPalette, pal) {
		q0, q1, changed := highlight.Changed(ws.prevRuns, runs)
		if !changed {
			return
		}
		err = ws.hl.Splice(pal, runs, q0, q1)
	} else {
		err = ws.hl.Apply(pal, runs)
	}
	if err != nil {
		logger.L(ws.ctx).Warn("apply highlights", zap.Error(err))
		ws.applied = false
		return
	}
	ws.prevPalette, ws.prevRuns = pal, runs
	ws.applied = true
}

// previewPath is where the PNG preview of the design goes: PreviewDir when
// set, otherwise beside the design file.
func (ws *WinState) previewPath() string {
	base := strings.TrimSuffix(ws.Name, filepath.Ext(ws.Name))
	if dir := ws.srv.cfg.PreviewDir; dir != "" {
		return filepath.Join(dir, filepath.Base(base)+".png")
	}
	return base + ".png"
}

func (ws *WinState) writePreview() error {
	buf, err := ws.proj.PixelBuffer()
	if err != nil {
		return err
	}
	path := ws.previewPath()
	if err := render.WritePNGFile(path, buf, ws.proj.PixelSize()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logger.L(ws.ctx).Debug("wrote preview", zap.String("path", path))
	return nil
}

func (ws *WinState) paletteText() string {
	var sb strings.Builder
	for _, nc := range ws.proj.PaletteListing() {
		mark := " "
		if nc.Name == ws.proj.SelectedColor() {
			mark = "*"
		}
		fmt.Fprintf(&sb, "%s %s\t%v\n", mark, nc.Name, nc.Color)
	}
	return sb.String()
}

// exec runs a parsed window command.  Pending body edits are loaded first
// so commands never act on a stale design.
func (ws *WinState) exec(cmd command) error {
	if ws.stale {
		ws.reloadTimer.Stop()
		ws.reload()
	}
	if !ws.proj.IsValid() {
		return craft.ErrNotLoaded
	}
	switch cmd.Name {
	case cmdColor:
		if _, ok := ws.proj.Palette().Lookup(cmd.Color); !ok {
			return &craft.UnknownPaletteNameError{Name: cmd.Color, Row: -1, Col: -1}
		}
		ws.proj.SetSelectedColor(cmd.Color)
		return nil

	case cmdPaint:
		if !ws.proj.Editable() {
			return errReadOnly
		}
		name := cmd.Color
		if name == "" {
			name = ws.proj.SelectedColor()
		}
		return ws.proj.PaintPixelAt(cmd.Col, cmd.Row, name)

	case cmdPad:
		if !ws.proj.Editable() {
			return errReadOnly
		}
		return ws.proj.Pad(cmd.Pad)

	case cmdRender:
		return ws.writePreview()

	case cmdPalette:
		ws.win.Err(ws.paletteText())
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.Name)
}

// ---- public API (safe to call from any goroutine) ----

// Exec parses and runs a window command line as if it had been executed
// in the window.
func (ws *WinState) Exec(line string) error {
	var err error
	if !ws.call(func(ws *WinState) {
		cmd, ok, perr := parseCommand(line)
		switch {
		case !ok:
			err = fmt.Errorf("unknown command %q", line)
		case perr != nil:
			err = perr
		default:
			err = ws.exec(cmd)
		}
	}) {
		return fmt.Errorf("exec %q: call timeout", line)
	}
	return err
}

// Design returns a copy of the loaded design, or nil when none is loaded.
func (ws *WinState) Design() *craft.Design {
	var d *craft.Design
	ws.call(func(ws *WinState) {
		if ws.proj.IsValid() {
			d = ws.proj.Design()
		}
	})
	return d
}

// Selected returns the selected palette name.
func (ws *WinState) Selected() string {
	var name string
	ws.call(func(ws *WinState) { name = ws.proj.SelectedColor() })
	return name
}
