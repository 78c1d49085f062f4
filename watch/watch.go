// Package watch runs the homework folder lifecycle: documents dropped
// into the watched folder are parked in processing/, run through the
// pipeline, exported, recorded, and finally moved into results/.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds the folder layout and pickup behavior.
type Config struct {
	// HomeworkDir is the watched inbox folder.
	HomeworkDir string

	// ProcessingDir is where documents sit during a run. Defaults to
	// <HomeworkDir>/processing.
	ProcessingDir string

	// ResultsDir is where result files and finished documents land.
	// Defaults to <HomeworkDir>/results.
	ResultsDir string

	// Formats lists the extensions picked up, dot included.
	// Defaults to [".pdf"].
	Formats []string

	// SettleWait bounds how long a freshly dropped file is given to
	// finish writing before processing starts. Defaults to 2s.
	SettleWait time.Duration

	// Workbook also writes the XLSX answers workbook for successful
	// runs.
	Workbook bool
}

func (c Config) withDefaults() Config {
	if c.ProcessingDir == "" {
		c.ProcessingDir = filepath.Join(c.HomeworkDir, "processing")
	}
	if c.ResultsDir == "" {
		c.ResultsDir = filepath.Join(c.HomeworkDir, "results")
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{".pdf"}
	}
	if c.SettleWait == 0 {
		c.SettleWait = 2 * time.Second
	}
	return c
}

// Setup creates the homework folder tree.
func Setup(cfg Config) error {
	cfg = cfg.withDefaults()
	for _, dir := range []string{cfg.HomeworkDir, cfg.ProcessingDir, cfg.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// Watcher feeds folder events into a Handler.
type Watcher struct {
	handler *Handler
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New creates a watcher around the handler.
func New(handler *Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{handler: handler, watcher: fsw}, nil
}

// Run watches the homework folder until ctx is cancelled. Supported
// documents already sitting in the folder are picked up first; moving
// a file into the folder surfaces as a create event, so one pickup
// path covers both drops and drags.
func (w *Watcher) Run(ctx context.Context) error {
	cfg := w.handler.cfg
	if err := Setup(cfg); err != nil {
		return err
	}
	if err := w.watcher.Add(cfg.HomeworkDir); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.HomeworkDir, err)
	}
	defer w.watcher.Close()
	defer w.wg.Wait()

	w.sweep(ctx)

	slog.Info("watch: monitoring folder", "dir", cfg.HomeworkDir, "formats", cfg.Formats)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) || !w.handler.supported(event.Name) {
				continue
			}
			slog.Info("watch: new document", "file", filepath.Base(event.Name))
			w.dispatch(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch: watcher error", "error", err)
		}
	}
}

// sweep picks up supported documents already waiting in the folder.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.handler.cfg.HomeworkDir)
	if err != nil {
		slog.Warn("watch: startup sweep failed", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !w.handler.supported(entry.Name()) {
			continue
		}
		slog.Info("watch: found waiting document", "file", entry.Name())
		w.dispatch(ctx, filepath.Join(w.handler.cfg.HomeworkDir, entry.Name()))
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.handler.HandleFile(ctx, path); err != nil {
			slog.Error("watch: document failed", "file", filepath.Base(path), "error", err)
		}
	}()
}
