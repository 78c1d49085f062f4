package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/renqiu/gohomework"
	"github.com/renqiu/gohomework/export"
	"github.com/renqiu/gohomework/extract"
	"github.com/renqiu/gohomework/store"
)

// Pipeline processes one document into a result.
type Pipeline interface {
	Process(ctx context.Context, path string) (*gohomework.Result, error)
}

// Handler owns the per-document lifecycle. The in-flight set keeps a
// path from being processed twice inside one process; the store claim
// extends that guarantee across restarts and instances. A nil store
// disables run records.
type Handler struct {
	pipeline Pipeline
	store    *store.Store
	cfg      Config

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewHandler creates a handler. Zero config fields get defaults.
func NewHandler(pipeline Pipeline, st *store.Store, cfg Config) *Handler {
	return &Handler{
		pipeline: pipeline,
		store:    st,
		cfg:      cfg.withDefaults(),
		inFlight: make(map[string]bool),
	}
}

// HandleFile runs the full lifecycle for one document: wait for the
// file to settle, claim it, park it in processing/, run the pipeline,
// export the result, record the run, and move the document into
// results/. Duplicate calls for a path already in flight are dropped.
func (h *Handler) HandleFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("watch: file vanished before pickup", "path", path)
			return nil
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}

	if !h.claimLocal(path) {
		slog.Debug("watch: already in flight", "file", filepath.Base(path))
		return nil
	}
	defer h.releaseLocal(path)

	if err := h.waitSettled(ctx, path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("watch: file vanished while settling", "path", path)
			return nil
		}
		return err
	}

	base := filepath.Base(path)

	var docID int64
	if h.store != nil {
		hash, err := store.HashFile(path)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", base, err)
		}
		docID, err = h.store.ClaimDocument(ctx, store.Document{
			Path:        path,
			Filename:    base,
			Format:      extract.Format(path),
			ContentHash: hash,
		})
		if errors.Is(err, store.ErrBusy) {
			slog.Warn("watch: document already claimed by another run", "file", base)
			return nil
		}
		if err != nil {
			return fmt.Errorf("claiming %s: %w", base, err)
		}
	}

	processingPath := filepath.Join(h.cfg.ProcessingDir, base)
	if path != processingPath {
		if err := os.Rename(path, processingPath); err != nil {
			h.markFailed(ctx, docID, "move")
			return fmt.Errorf("parking %s: %w", base, err)
		}
	}

	res, err := h.pipeline.Process(ctx, processingPath)
	if err != nil {
		// The document stays in processing/ for manual inspection.
		h.markFailed(ctx, docID, "process")
		return fmt.Errorf("processing %s: %w", base, err)
	}

	if _, err := export.WriteJSON(h.cfg.ResultsDir, processingPath, res); err != nil {
		slog.Warn("watch: writing result json failed", "file", base, "error", err)
	}
	if h.cfg.Workbook && res.Success {
		if _, err := export.WriteXLSX(h.cfg.ResultsDir, processingPath, res); err != nil {
			slog.Warn("watch: writing workbook failed", "file", base, "error", err)
		}
	}

	h.record(ctx, docID, res)

	dest := destPath(h.cfg.ResultsDir, base)
	if err := os.Rename(processingPath, dest); err != nil {
		return fmt.Errorf("finishing %s: %w", base, err)
	}

	slog.Info("watch: document finished",
		"file", base, "dest", filepath.Base(dest), "success", res.Success)
	return nil
}

func (h *Handler) claimLocal(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight[path] {
		return false
	}
	h.inFlight[path] = true
	return true
}

func (h *Handler) releaseLocal(path string) {
	h.mu.Lock()
	delete(h.inFlight, path)
	h.mu.Unlock()
}

// supported reports whether the path carries one of the configured
// extensions.
func (h *Handler) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range h.cfg.Formats {
		if ext == strings.ToLower(f) {
			return true
		}
	}
	return false
}

// waitSettled polls the file size until two consecutive reads agree,
// so half-copied documents are not picked up. The wait is bounded by
// SettleWait; a file still growing past the bound gets processed
// anyway.
func (h *Handler) waitSettled(ctx context.Context, path string) error {
	interval := h.cfg.SettleWait / 10
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	deadline := time.Now().Add(h.cfg.SettleWait)
	last := int64(-1)
	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == last {
			return nil
		}
		last = info.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}

func (h *Handler) markFailed(ctx context.Context, docID int64, step string) {
	if h.store == nil || docID == 0 {
		return
	}
	if err := h.store.MarkFailed(ctx, docID, step); err != nil {
		slog.Warn("watch: recording failure failed", "doc_id", docID, "error", err)
	}
}

// record persists the run outcome and, for successful runs, the full
// answer set.
func (h *Handler) record(ctx context.Context, docID int64, res *gohomework.Result) {
	if h.store == nil || docID == 0 {
		return
	}
	if !res.Success {
		h.markFailed(ctx, docID, gohomework.StepName(res.Step))
		return
	}
	if err := h.store.ReplaceResults(ctx, docID, storeResults(res)); err != nil {
		slog.Warn("watch: storing results failed", "doc_id", docID, "error", err)
	}
	if err := h.store.MarkDone(ctx, docID, res.TotalElements, res.TotalProblems); err != nil {
		slog.Warn("watch: marking done failed", "doc_id", docID, "error", err)
	}
}

func storeResults(res *gohomework.Result) []store.ProblemResult {
	out := make([]store.ProblemResult, 0, len(res.Results))
	for _, pr := range res.Results {
		sr := store.ProblemResult{
			Problem: store.Problem{
				Label:           pr.ProblemID,
				Stem:            pr.ProblemText,
				NumSubquestions: pr.NumSubquestions,
			},
			Answers: make([]store.Answer, 0, len(pr.Subanswers)),
		}
		for _, rec := range pr.Subanswers {
			sr.Answers = append(sr.Answers, store.Answer{
				SubID:   rec.SubID,
				SubText: rec.SubText,
				Answer:  rec.Answer,
				Reason:  rec.Reason,
			})
		}
		out = append(out, sr)
	}
	return out
}

// destPath returns the results-folder destination for a finished
// document, appending a timestamp when the name is already taken.
func destPath(dir, base string) string {
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
		return dest
	}
	ext := filepath.Ext(base)
	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), stamp, ext))
}
