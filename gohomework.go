// Package gohomework processes homework documents end to end: page
// elements are extracted, grouped into problems by a multimodal model,
// matched back against the page evidence, and answered one problem at
// a time. Every stage is total: failures surface as the error shape
// of Result, never as a panic or an unhandled fault.
package gohomework

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/renqiu/gohomework/answer"
	"github.com/renqiu/gohomework/extract"
	"github.com/renqiu/gohomework/llm"
	"github.com/renqiu/gohomework/match"
	"github.com/renqiu/gohomework/oracle"
	"github.com/renqiu/gohomework/structure"
)

// Pipeline stages, in run order. A Result's Step names the first stage
// that produced nothing.
const (
	StepExtraction = iota + 1
	StepStructure
	StepMatching
	StepAggregation
)

// StepName returns the stage name for a step number.
func StepName(step int) string {
	switch step {
	case StepExtraction:
		return "extraction"
	case StepStructure:
		return "structure"
	case StepMatching:
		return "matching"
	case StepAggregation:
		return "aggregation"
	}
	return fmt.Sprintf("step%d", step)
}

// Result is the outcome of one document run: the success shape with
// the aggregated answers, or the error shape naming the stage that
// stopped the pipeline.
type Result struct {
	Success       bool                   `json:"success,omitempty"`
	TotalElements int                    `json:"total_elements,omitempty"`
	TotalProblems int                    `json:"total_problems,omitempty"`
	Results       []answer.ProblemResult `json:"results,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Step          int                    `json:"step,omitempty"`
}

// Err maps a failure result onto the package error taxonomy. Success
// results return nil.
func (r *Result) Err() error {
	switch r.Step {
	case StepExtraction:
		return ErrNoElements
	case StepStructure:
		return ErrNoProblems
	case StepMatching:
		return ErrNoMatches
	}
	return nil
}

// Processor runs the four-stage pipeline over single documents. It is
// safe for concurrent use; each Process call works on its own data.
type Processor struct {
	cfg        Config
	extractors *extract.Registry
	oracle     *oracle.Client
	solver     *answer.Solver
}

// New builds a processor from the configuration, creating the oracle
// provider named by cfg.Oracle.
func New(cfg Config) (*Processor, error) {
	if cfg.ImageQuality < 0 || cfg.ImageQuality > 100 {
		return nil, fmt.Errorf("%w: image quality %d", ErrInvalidConfig, cfg.ImageQuality)
	}
	if cfg.OracleAttempts < 0 {
		return nil, fmt.Errorf("%w: oracle attempts %d", ErrInvalidConfig, cfg.OracleAttempts)
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Oracle.Provider,
		Model:    cfg.Oracle.Model,
		BaseURL:  cfg.Oracle.BaseURL,
		APIKey:   cfg.Oracle.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating oracle provider: %w", err)
	}
	return NewWithProvider(cfg, provider), nil
}

// NewWithProvider builds a processor on an existing provider, skipping
// provider construction. Callers that fake the model side plug in
// here.
func NewWithProvider(cfg Config, provider llm.Provider) *Processor {
	oc := oracle.New(provider, oracle.Config{
		Model:       cfg.Oracle.Model,
		Temperature: cfg.Temperature,
		Attempts:    cfg.OracleAttempts,
		RetryDelay:  time.Duration(cfg.OracleRetryDelay) * time.Second,
	})

	var rasterizer extract.Rasterizer
	if cfg.Rasterizer != "none" {
		rasterizer = &extract.PopplerRasterizer{Binary: cfg.Rasterizer}
	}
	registry := extract.NewRegistry(extract.ImageOptions{
		MaxDim:  cfg.ImageMaxDim,
		Quality: cfg.ImageQuality,
	}, rasterizer)

	return &Processor{
		cfg:        cfg,
		extractors: registry,
		oracle:     oc,
		solver:     answer.New(oc, answer.Config{Concurrency: cfg.Concurrency}),
	}
}

// Process runs the document at path through the full pipeline. Stage
// failures come back inside the Result; the error return fires only
// when the document cannot be processed at all.
func (p *Processor) Process(ctx context.Context, path string) (*Result, error) {
	format := extract.Format(path)
	extractor, err := p.extractors.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	filename := filepath.Base(path)
	slog.Info("process: starting", "file", filename, "format", format)
	start := time.Now()

	elements, err := extractor.Extract(ctx, path)
	if err != nil {
		slog.Warn("process: extraction failed", "file", filename, "error", err)
		elements = nil
	}
	if len(elements) == 0 {
		return &Result{Error: "元素提取失败", Step: StepExtraction}, nil
	}

	problems := structure.Infer(ctx, p.oracle, elements)
	if len(problems) == 0 {
		return &Result{Error: "题目识别失败", Step: StepStructure}, nil
	}

	matched := match.Match(problems, elements)
	if len(matched) == 0 {
		return &Result{Error: "题目匹配失败", Step: StepMatching}, nil
	}

	results := p.solver.Solve(ctx, matched)

	slog.Info("process: complete",
		"file", filename,
		"elements", len(elements),
		"problems", len(matched),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return &Result{
		Success:       true,
		TotalElements: len(elements),
		TotalProblems: len(matched),
		Results:       results,
	}, nil
}
