// Package session attaches craft projects to acme windows.  Each design
// window gets a goroutine that owns its project, reloads the design as the
// body is edited, runs the window's editing commands and writes every
// change back into the body, the style compositor and a PNG preview.
package session

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cptaffe/acme-crafts/internal/config"
	"github.com/cptaffe/acme-crafts/layer"
	"github.com/cptaffe/acme-crafts/logger"
)

// Server is the registry of attached windows.
//
// cfg, match, layers and open are read-only after NewServer returns and may
// be accessed from any goroutine without holding mu.
//
// mu protects only the wins map; it is never held while doing any I/O.
type Server struct {
	cfg    config.Config
	match  *regexp.Regexp
	layers *layer.Client // nil disables highlighting
	open   func(id int) (Window, error)

	mu   sync.Mutex
	wins map[int]*WinState
	ctx  context.Context // root context; cancelled on shutdown
	wg   sync.WaitGroup  // tracks live window goroutines
}

// NewServer constructs a Server from a validated config and the root
// context.  Highlighting is enabled when cfg.Service is set.
func NewServer(ctx context.Context, cfg config.Config) *Server {
	s := &Server{
		cfg:   cfg,
		match: cfg.Matcher(),
		open:  openAcme,
		wins:  make(map[int]*WinState),
		ctx:   ctx,
	}
	if cfg.Service != "" {
		s.layers = layer.NewClient(cfg.Service)
	}
	return s
}

// Ctx returns the root context of the server.
func (s *Server) Ctx() context.Context {
	return s.ctx
}

// Wait blocks until all window goroutines have exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Matches reports whether a window with the given file name holds a design.
func (s *Server) Matches(name string) bool {
	return s.match.MatchString(name)
}

// AddWin attaches to window id, whose file is name, and starts its
// goroutine.  Returns nil if name is not a design file, the window is
// already attached, or it could not be opened.
//
// s.mu is never held while opening the window: the lock is released, the
// (potentially slow) open is performed, then the lock is re-acquired to
// insert.  If another goroutine raced to add the same ID, the loser discards
// what it opened.
func (s *Server) AddWin(id int, name string) *WinState {
	if !s.Matches(name) {
		return nil
	}
	s.mu.Lock()
	if _, ok := s.wins[id]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	ctx = logger.NewContext(ctx, logger.L(s.ctx).With(zap.Int("window", id), zap.String("name", name)))
	log := logger.L(ctx)

	w, err := s.open(id)
	if err != nil {
		log.Error("open acme window", zap.Error(err))
		cancel()
		return nil
	}
	var hl highlighter
	if s.layers != nil {
		l, err := s.layers.Open(id, s.cfg.Layer)
		if err != nil {
			// Highlighting is best effort; the design still works without it.
			log.Info("highlighting disabled", zap.Error(err))
		} else {
			hl = l
		}
	}

	ws := newWinState(ctx, cancel, s, id, name, w, hl)

	s.mu.Lock()
	if _, ok := s.wins[id]; ok {
		// Lost the race; another goroutine added this window first.
		s.mu.Unlock()
		cancel()
		w.Close() //nolint:errcheck
		return nil
	}
	s.wins[id] = ws
	s.mu.Unlock()

	log.Debug("attached")
	s.wg.Add(1)
	go ws.run()
	return ws
}

// DelWin removes the window from the registry and cancels its goroutine.
// The run() goroutine closes the window when it sees ctx.Done().
func (s *Server) DelWin(id int) {
	s.mu.Lock()
	ws := s.wins[id]
	delete(s.wins, id)
	s.mu.Unlock()
	if ws != nil {
		ws.cancel()
	}
}

// GetWin returns the WinState for the given window ID, or nil if not found.
func (s *Server) GetWin(id int) *WinState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wins[id]
}

// WinIDs returns all registered window IDs in ascending order.
func (s *Server) WinIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.wins))
	for id := range s.wins {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
