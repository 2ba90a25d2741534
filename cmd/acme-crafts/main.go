// Command acme-crafts edits pixel-art designs in acme.
//
// With no arguments it watches acme and attaches to every window whose file
// name matches the configured pattern.  -render and -term draw a design
// file once and exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"9fans.net/go/acme"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-crafts/craft"
	"github.com/cptaffe/acme-crafts/internal/config"
	"github.com/cptaffe/acme-crafts/internal/render"
	"github.com/cptaffe/acme-crafts/internal/session"
	"github.com/cptaffe/acme-crafts/logger"
)

func main() {
	configPath := flag.String("config", "", "config file (default: $HOME/.config/acme-crafts/config.toml)")
	renderPath := flag.String("render", "", "render this design to a PNG and exit")
	outPath := flag.String("o", "", "output path for -render (default: design name with .png)")
	termPath := flag.String("term", "", "draw this design in the terminal and exit")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	var err error
	var l *zap.Logger
	if *verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		l.Fatal("load config", zap.Error(err))
	}

	switch {
	case *renderPath != "":
		out := *outPath
		if out == "" {
			out = pngPath(*renderPath)
		}
		if err := renderFile(cfg, *renderPath, out); err != nil {
			l.Fatal("render", zap.String("design", *renderPath), zap.Error(err))
		}
		l.Info("rendered", zap.String("design", *renderPath), zap.String("png", out))
		return
	case *termPath != "":
		text, err := termFile(cfg, *termPath)
		if err != nil {
			l.Fatal("render", zap.String("design", *termPath), zap.Error(err))
		}
		fmt.Print(text)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	ctx = logger.NewContext(ctx, l)

	s := session.NewServer(ctx, cfg)
	l.Info("watching acme",
		zap.String("match", cfg.Match),
		zap.Bool("editable", cfg.Editable),
		zap.String("service", cfg.Service))
	watchLog(s)

	l.Info("shutting down; waiting for window goroutines")
	done := make(chan struct{})
	go func() { s.Wait(); close(done) }()
	select {
	case <-done:
		l.Info("shutdown complete")
	case <-time.After(5 * time.Second):
		l.Warn("shutdown timed out; exiting anyway")
	}
}

func loadFile(cfg config.Config, path string) (*craft.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return craft.Load(data, craft.WithPixelSize(cfg.PixelSize), craft.WithLogger(zap.L()))
}

// renderFile writes the PNG of the design at path to out.
func renderFile(cfg config.Config, path, out string) error {
	p, err := loadFile(cfg, path)
	if err != nil {
		return err
	}
	buf, err := p.PixelBuffer()
	if err != nil {
		return err
	}
	return render.WritePNGFile(out, buf, p.PixelSize())
}

// termFile returns the design at path drawn for the terminal, followed by
// its palette.
func termFile(cfg config.Config, path string) (string, error) {
	p, err := loadFile(cfg, path)
	if err != nil {
		return "", err
	}
	buf, err := p.PixelBuffer()
	if err != nil {
		return "", err
	}
	t := render.NewTerminal(nil)
	return t.Render(buf) + "\n" + t.Swatches(p.PaletteListing()), nil
}

// Attempts and spacing for reaching acme at startup.  acme-crafts is often
// started from the same profile script as acme, before acme has posted its
// service.
const (
	connectAttempts = 10
	connectDelay    = 200 * time.Millisecond
)

// watchLog attaches to design windows that are already open, then follows
// the acme log until the context is cancelled.  A design opened later is
// attached when its file is loaded ("get"), since a "new" window often has
// no name yet.
func watchLog(s *session.Server) {
	ctx := s.Ctx()
	l := logger.L(ctx)

	wins, err := retry(ctx, connectAttempts, connectDelay, acme.Windows)
	if err != nil {
		if ctx.Err() == nil {
			l.Fatal("list acme windows", zap.Error(err))
		}
		return
	}
	for _, w := range wins {
		s.AddWin(w.ID, w.Name)
	}

	lr, err := retry(ctx, connectAttempts, connectDelay, acme.Log)
	if err != nil {
		if ctx.Err() == nil {
			l.Fatal("open acme log", zap.Error(err))
		}
		return
	}
	defer lr.Close()

	// Read blocks with no way to interrupt it, so it runs on its own
	// goroutine; on shutdown it is abandoned with the process.
	type logResult struct {
		ev  acme.LogEvent
		err error
	}
	results := make(chan logResult, 1)
	go func() {
		for {
			ev, err := lr.Read()
			select {
			case results <- logResult{ev, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-results:
			if res.err != nil {
				if ctx.Err() == nil {
					l.Fatal("acme log closed; is acme still running?", zap.Error(res.err))
				}
				return
			}
			follow(s, res.ev)
		}
	}
}

// follow applies one acme log event to the server.
func follow(s *session.Server, ev acme.LogEvent) {
	switch ev.Op {
	case "new", "get":
		s.AddWin(ev.ID, ev.Name)
	case "del":
		s.DelWin(ev.ID)
	}
}

// retry calls fn up to attempts times, sleeping delay between failures.  It
// gives up early, with the context's error, once ctx is done.
func retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	err := errors.New("no attempts made")
	for n := 0; n < attempts; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, err
}

// pngPath replaces the extension of a design path with .png.
func pngPath(design string) string {
	return strings.TrimSuffix(design, filepath.Ext(design)) + ".png"
}
