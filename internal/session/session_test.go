package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"9fans.net/go/acme"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cptaffe/acme-crafts/craft"
	"github.com/cptaffe/acme-crafts/internal/config"
	"github.com/cptaffe/acme-crafts/logger"
	"github.com/cptaffe/acme-crafts/style"
)

const twoByTwo = `{"palette": {"_": "0, 0, 0, 0", "k": "black", "w": "white"}, "template": ["_, k", "w, _"]}`

// fakeWin is an in-memory acme window.
type fakeWin struct {
	mu     sync.Mutex
	body   []byte
	errs   []string
	passed []string
	ctl    []string
	closed bool

	events    chan *acme.Event
	closeOnce sync.Once
}

func newFakeWin(body string) *fakeWin {
	return &fakeWin{body: []byte(body), events: make(chan *acme.Event)}
}

func (w *fakeWin) ReadAll(file string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.body...), nil
}

func (w *fakeWin) Addr(format string, args ...interface{}) error { return nil }

func (w *fakeWin) Write(file string, b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.body = append([]byte(nil), b...)
	return len(b), nil
}

func (w *fakeWin) Ctl(format string, args ...interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctl = append(w.ctl, format)
	return nil
}

func (w *fakeWin) Err(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs = append(w.errs, msg)
}

func (w *fakeWin) ReadEvent() (*acme.Event, error) {
	e, ok := <-w.events
	if !ok {
		return nil, io.EOF
	}
	return e, nil
}

func (w *fakeWin) WriteEvent(e *acme.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.passed = append(w.passed, string(e.Text))
	return nil
}

func (w *fakeWin) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.events)
	})
	return nil
}

func (w *fakeWin) setBody(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.body = []byte(s)
}

func (w *fakeWin) bodyText() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.body)
}

func (w *fakeWin) errCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.errs)
}

func (w *fakeWin) lastErr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.errs) == 0 {
		return ""
	}
	return w.errs[len(w.errs)-1]
}

func (w *fakeWin) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// fakeHighlighter records the last submission.
type fakeHighlighter struct {
	mu      sync.Mutex
	applies int
	splices int
	q0, q1  int
	palette []style.PaletteEntry
	runs    []style.Run
	deleted bool
}

func (h *fakeHighlighter) Splice(palette []style.PaletteEntry, runs []style.Run, q0, q1 int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.splices++
	h.q0, h.q1 = q0, q1
	h.palette, h.runs = palette, runs
	return nil
}

func (h *fakeHighlighter) Apply(palette []style.PaletteEntry, runs []style.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applies++
	h.palette, h.runs = palette, runs
	return nil
}

func (h *fakeHighlighter) Delete() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = true
	return errors.New("compositor gone")
}

func testConfig() config.Config {
	c := config.Defaults()
	c.Service = ""
	c.Debounce = 10 * time.Millisecond
	return c
}

func newTestServer(t *testing.T, cfg config.Config, w Window) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.NewContext(ctx, zaptest.NewLogger(t))
	s := NewServer(ctx, cfg)
	s.open = func(int) (Window, error) { return w, nil }
	t.Cleanup(func() {
		cancel()
		s.Wait()
	})
	return s
}

// attach starts a window goroutine with a highlighter, bypassing the
// compositor connection AddWin would make.
func attach(t *testing.T, s *Server, w Window, hl highlighter) *WinState {
	t.Helper()
	ctx, cancel := context.WithCancel(s.ctx)
	ws := newWinState(ctx, cancel, s, 1, "/tmp/x.craft.json", w, hl)
	s.mu.Lock()
	s.wins[1] = ws
	s.mu.Unlock()
	s.wg.Add(1)
	go ws.run()
	return ws
}

func TestAddWin(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)

	require.Nil(t, s.AddWin(1, "/tmp/notes.txt"))
	ws := s.AddWin(1, "/tmp/creeper.craft.json")
	require.NotNil(t, ws)
	require.Nil(t, s.AddWin(1, "/tmp/creeper.craft.json"), "already attached")
	require.Same(t, ws, s.GetWin(1))
	require.Equal(t, []int{1}, s.WinIDs())
	require.Equal(t, []string{"_, k", "w, _"}, ws.Design().Template)

	s.DelWin(1)
	require.Nil(t, s.GetWin(1))
	require.Empty(t, s.WinIDs())
	require.Eventually(t, w.isClosed, time.Second, 5*time.Millisecond)
}

func TestAddWin_OpenFails(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	s.open = func(int) (Window, error) { return nil, errors.New("no such window") }
	require.Nil(t, s.AddWin(3, "/tmp/a.craft.json"))
	require.Empty(t, s.WinIDs())
}

func TestEmptyBodyGetsDefaultDesign(t *testing.T) {
	w := newFakeWin("\n")
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/new.craft.json")
	require.NotNil(t, ws)

	want, err := craft.DefaultDesign().Format()
	require.NoError(t, err)
	require.Equal(t, craft.DefaultDesign().Template, ws.Design().Template)
	require.Equal(t, string(want), w.bodyText())
}

func TestExec_PaintWritesBody(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")

	require.NoError(t, ws.Exec("Color w"))
	require.Equal(t, "w", ws.Selected())
	require.NoError(t, ws.Exec("Paint 0 0"))
	require.NoError(t, ws.Exec("Paint 1 1 k"))

	require.Equal(t, []string{"w, k", "w, k"}, ws.Design().Template)
	d, err := craft.ParseDesign([]byte(w.bodyText()))
	require.NoError(t, err)
	require.Equal(t, []string{"w, k", "w, k"}, d.Template)
	require.True(t, strings.HasPrefix(w.bodyText(), "{\n  \"palette\""))
}

func TestExec_Pad(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")

	require.NoError(t, ws.Exec("Pad left 2"))
	require.Equal(t, []string{"_, _, _, k", "_, _, w, _"}, ws.Design().Template)
	require.NoError(t, ws.Exec("Pad bottom"))
	require.Len(t, ws.Design().Template, 3)
}

func TestExec_Errors(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")

	var unknown *craft.UnknownPaletteNameError
	require.ErrorAs(t, ws.Exec("Color nope"), &unknown)
	require.ErrorIs(t, ws.Exec("Paint 5 0"), craft.ErrOutOfBounds)
	require.ErrorIs(t, ws.Exec("Pad sideways"), errUsage)
	require.Error(t, ws.Exec("Put"))
	require.Equal(t, []string{"_, k", "w, _"}, ws.Design().Template)
}

func TestExec_ReadOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Editable = false
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, cfg, w)
	ws := s.AddWin(1, "/tmp/a.craft.json")

	require.NoError(t, ws.Exec("Color k"))
	require.ErrorIs(t, ws.Exec("Paint 0 0"), errReadOnly)
	require.ErrorIs(t, ws.Exec("Pad top"), errReadOnly)
}

func TestBodyEditReloads(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")
	require.Eventually(t, func() bool { return ws.Design() != nil }, time.Second, 5*time.Millisecond)

	w.setBody(`{"palette": {"k": "black"}, "template": ["k"]}`)
	w.events <- &acme.Event{C1: 'K', C2: 'I', Q0: 10, Q1: 11}
	require.Eventually(t, func() bool {
		d := ws.Design()
		return d != nil && len(d.Template) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBodyEditInvalid_KeepsDesign(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")
	require.Eventually(t, func() bool { return ws.Design() != nil }, time.Second, 5*time.Millisecond)

	w.setBody(`{"palette": {"k": "black"}, "template": ["k", "k, k"]}`)
	w.events <- &acme.Event{C1: 'K', C2: 'D'}
	require.Eventually(t, func() bool { return w.errCount() > 0 }, time.Second, 5*time.Millisecond)
	require.Contains(t, w.lastErr(), "check formatting")
	require.Equal(t, []string{"_, k", "w, _"}, ws.Design().Template)
}

func TestExecEvent(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")

	w.events <- &acme.Event{C1: 'M', C2: 'x', Text: []byte("Paint"), Arg: []byte("1 0 _")}
	w.events <- &acme.Event{C1: 'M', C2: 'x', Text: []byte("Put")}
	w.events <- &acme.Event{C1: 'M', C2: 'x', Text: []byte("Color"), Arg: []byte("nope")}
	require.Eventually(t, func() bool { return w.errCount() > 0 }, time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"_, _", "w, _"}, ws.Design().Template)
	w.mu.Lock()
	require.Equal(t, []string{"Put"}, w.passed)
	w.mu.Unlock()
	require.Contains(t, w.lastErr(), `"nope"`)
}

func TestExec_Palette(t *testing.T) {
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, testConfig(), w)
	ws := s.AddWin(1, "/tmp/a.craft.json")

	require.NoError(t, ws.Exec("Palette"))
	require.Equal(t, "* _\trgba(0, 0, 0, 0)\n  k\trgb(0, 0, 0)\n  w\trgb(255, 255, 255)\n", w.lastErr())
}

func TestPreview(t *testing.T) {
	cfg := testConfig()
	cfg.PreviewDir = t.TempDir()
	cfg.PixelSize = 4
	w := newFakeWin(twoByTwo)
	s := newTestServer(t, cfg, w)
	ws := s.AddWin(1, "/home/glenda/art/a.craft.json")

	path := filepath.Join(cfg.PreviewDir, "a.craft.png")
	require.NoError(t, ws.Exec("Render"))
	_, err := os.Stat(path)
	require.NoError(t, err)

	// Every change rewrites the preview when a directory is configured.
	require.NoError(t, os.Remove(path))
	require.NoError(t, ws.Exec("Paint 0 0 k"))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestHighlights(t *testing.T) {
	d, err := craft.ParseDesign([]byte(twoByTwo))
	require.NoError(t, err)
	formatted, err := d.Format()
	require.NoError(t, err)
	w := newFakeWin(string(formatted))
	hl := &fakeHighlighter{}
	s := newTestServer(t, testConfig(), w)
	ws := attach(t, s, w, hl)

	require.Equal(t, []string{"_, k", "w, _"}, ws.Design().Template)
	hl.mu.Lock()
	require.Equal(t, 1, hl.applies)
	// "_" is transparent and gets no style; k and w do.
	require.Len(t, hl.palette, 2)
	require.Len(t, hl.runs, 7)
	hl.mu.Unlock()

	// Selecting a colour changes nothing visible.
	require.NoError(t, ws.Exec("Color k"))
	hl.mu.Lock()
	require.Equal(t, 1, hl.applies)
	hl.mu.Unlock()

	// Painting one cell resubmits only around that cell.
	require.NoError(t, ws.Exec("Paint 0 0"))
	hl.mu.Lock()
	require.Equal(t, 1, hl.applies)
	require.Equal(t, 1, hl.splices)
	require.Equal(t, 1, hl.q1-hl.q0)
	hl.mu.Unlock()

	// The body write wipes the tracked runs; the reload that follows puts
	// them back.
	body := []rune(w.bodyText())
	w.events <- &acme.Event{C1: 'F', C2: 'D', Q0: 0, Q1: len(body)}
	w.events <- &acme.Event{C1: 'F', C2: 'I', Q0: 0, Q1: len(body)}
	require.Eventually(t, func() bool {
		hl.mu.Lock()
		defer hl.mu.Unlock()
		return hl.splices == 2
	}, time.Second, 5*time.Millisecond)
	hl.mu.Lock()
	require.Len(t, hl.runs, 7)
	require.Equal(t, hl.runs[0].Start, hl.q0)
	require.Equal(t, hl.runs[6].End, hl.q1)
	hl.mu.Unlock()

	s.DelWin(1)
	require.Eventually(t, func() bool {
		hl.mu.Lock()
		defer hl.mu.Unlock()
		return hl.deleted
	}, time.Second, 5*time.Millisecond)
}

func TestPreviewPath(t *testing.T) {
	s := &Server{cfg: config.Config{}}
	ws := &WinState{Name: "/art/creeper.craft.json", srv: s}
	require.Equal(t, "/art/creeper.craft.png", ws.previewPath())
	s.cfg.PreviewDir = "/tmp/out"
	require.Equal(t, "/tmp/out/creeper.craft.png", ws.previewPath())
}
