package gohomework

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/renqiu/gohomework/element"
	"github.com/renqiu/gohomework/llm"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeProvider scripts the two oracle calls apart by their system
// prompts: structure inference asks for 结构分析, answering asks for
// 题目解答.
type fakeProvider struct {
	mu        sync.Mutex
	structure string
	answer    string
	fail      bool
	calls     int
}

func (p *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("text-only chat not used")
}

func (p *fakeProvider) ChatWithImages(ctx context.Context, req llm.VisionChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.fail {
		return nil, errors.New("model offline")
	}
	system := req.Messages[0].Content[0].Text
	if strings.Contains(system, "结构分析") {
		return &llm.ChatResponse{Content: p.structure}, nil
	}
	return &llm.ChatResponse{Content: p.answer}, nil
}

type fakeExtractor struct {
	elements []*element.Element
	err      error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) ([]*element.Element, error) {
	return f.elements, f.err
}

func (f *fakeExtractor) SupportedFormats() []string { return []string{"fake"} }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OracleAttempts = 1
	cfg.Rasterizer = "none"
	return cfg
}

func newTestProcessor(provider llm.Provider, ex *fakeExtractor) *Processor {
	p := NewWithProvider(testConfig(), provider)
	p.extractors.Register("fake", ex)
	return p
}

func twoPageElements() []*element.Element {
	return []*element.Element{
		element.New(element.Text, 1, "1. 解下列方程 (a) x+1=2 (b) 2x=6", element.BBox{X1: 595, Y1: 842}),
		element.New(element.Text, 2, "继续第二页", element.BBox{X1: 595, Y1: 842}),
		element.New(element.Image, 2, "aW1hZ2U=", element.BBox{X1: 100, Y1: 80}),
	}
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

func TestProcessEndToEnd(t *testing.T) {
	provider := &fakeProvider{
		structure: `{"problems":[{"id":"1","text":"解下列方程","subquestions":[` +
			`{"id":"1(a)","text":"x+1=2"},{"id":"1(b)","text":"2x=6"}]}]}`,
		answer: `{"problem_id":"1","answers":[{"sub_id":"1(a)","answer":"x=1","reason":"移项"}]}`,
	}
	p := newTestProcessor(provider, &fakeExtractor{elements: twoPageElements()})

	res, err := p.Process(context.Background(), "hw.fake")
	if err != nil {
		t.Fatalf("processing: %v", err)
	}

	if !res.Success {
		t.Fatalf("expected success, got error %q at step %d", res.Error, res.Step)
	}
	if res.TotalElements != 3 {
		t.Errorf("total elements: got %d, want 3", res.TotalElements)
	}
	if res.TotalProblems != 1 {
		t.Errorf("total problems: got %d, want 1", res.TotalProblems)
	}
	if len(res.Results) != 1 {
		t.Fatalf("results: got %d, want 1", len(res.Results))
	}

	pr := res.Results[0]
	if pr.ProblemID != "1" || pr.NumSubquestions != 2 {
		t.Errorf("problem: got id %q with %d subquestions", pr.ProblemID, pr.NumSubquestions)
	}
	if len(pr.Subanswers) != 2 {
		t.Fatalf("subanswers: got %d, want 2", len(pr.Subanswers))
	}
	if pr.Subanswers[0].Answer != "x=1" || pr.Subanswers[0].Reason != "移项" {
		t.Errorf("first answer: got %q / %q", pr.Subanswers[0].Answer, pr.Subanswers[0].Reason)
	}
	second := pr.Subanswers[1]
	if second.Answer != "" || second.Reason != "" {
		t.Errorf("unanswered slot: got %q / %q, want empty", second.Answer, second.Reason)
	}
	if second.SubID != "1(b)" || second.SubText != "2x=6" {
		t.Errorf("unanswered slot identity: got %q / %q", second.SubID, second.SubText)
	}

	if provider.calls != 2 {
		t.Errorf("oracle calls: got %d, want 2 (structure + one problem)", provider.calls)
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	p := newTestProcessor(&fakeProvider{}, &fakeExtractor{})

	_, err := p.Process(context.Background(), "notes.docx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestProcessEmptyExtraction(t *testing.T) {
	p := newTestProcessor(&fakeProvider{}, &fakeExtractor{elements: nil})

	res, err := p.Process(context.Background(), "hw.fake")
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Step != StepExtraction {
		t.Errorf("step: got %d, want %d", res.Step, StepExtraction)
	}
	if res.Error == "" {
		t.Error("expected a non-empty error message")
	}
	if !errors.Is(res.Err(), ErrNoElements) {
		t.Errorf("Err(): got %v, want ErrNoElements", res.Err())
	}
}

func TestProcessExtractorError(t *testing.T) {
	p := newTestProcessor(&fakeProvider{}, &fakeExtractor{err: errors.New("file corrupt")})

	res, err := p.Process(context.Background(), "hw.fake")
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if res.Step != StepExtraction {
		t.Errorf("step: got %d, want %d", res.Step, StepExtraction)
	}
}

func TestProcessNoProblems(t *testing.T) {
	provider := &fakeProvider{structure: `{"problems":[]}`}
	p := newTestProcessor(provider, &fakeExtractor{elements: twoPageElements()})

	res, err := p.Process(context.Background(), "hw.fake")
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if res.Step != StepStructure {
		t.Errorf("step: got %d, want %d", res.Step, StepStructure)
	}
	if !errors.Is(res.Err(), ErrNoProblems) {
		t.Errorf("Err(): got %v, want ErrNoProblems", res.Err())
	}
}

func TestProcessOracleDownStillSucceeds(t *testing.T) {
	// With the model unreachable the structure stage falls back to
	// regex recognition and answering degrades to empty records, so a
	// document with recognizable numbering still yields a full result.
	provider := &fakeProvider{fail: true}
	elements := []*element.Element{
		element.New(element.Text, 1, "1. 求和\n2. 化简", element.BBox{X1: 595, Y1: 842}),
	}
	p := newTestProcessor(provider, &fakeExtractor{elements: elements})

	res, err := p.Process(context.Background(), "hw.fake")
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected degraded success, got error %q at step %d", res.Error, res.Step)
	}
	if res.TotalProblems != 2 {
		t.Fatalf("problems recognized from numbering: got %d, want 2", res.TotalProblems)
	}
	for _, pr := range res.Results {
		if len(pr.Subanswers) != pr.NumSubquestions {
			t.Errorf("problem %s: %d subanswers for %d subquestions",
				pr.ProblemID, len(pr.Subanswers), pr.NumSubquestions)
		}
		for _, rec := range pr.Subanswers {
			if rec.Answer != "" {
				t.Errorf("problem %s: degraded answer should be empty, got %q", pr.ProblemID, rec.Answer)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Result shape
// ---------------------------------------------------------------------------

func TestResultFailureJSONShape(t *testing.T) {
	res := &Result{Error: "元素提取失败", Step: StepExtraction}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	want := `{"error":"元素提取失败","step":1}`
	if string(data) != want {
		t.Errorf("failure shape: got %s, want %s", data, want)
	}
}

func TestResultSuccessJSONShape(t *testing.T) {
	res := &Result{Success: true, TotalElements: 3, TotalProblems: 1}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"success":true`, `"total_elements":3`, `"total_problems":1`} {
		if !strings.Contains(s, key) {
			t.Errorf("success shape missing %s: %s", key, s)
		}
	}
	for _, key := range []string{`"error"`, `"step"`} {
		if strings.Contains(s, key) {
			t.Errorf("success shape carries %s: %s", key, s)
		}
	}
}

func TestStepName(t *testing.T) {
	tests := []struct {
		step int
		want string
	}{
		{StepExtraction, "extraction"},
		{StepStructure, "structure"},
		{StepMatching, "matching"},
		{StepAggregation, "aggregation"},
		{9, "step9"},
	}
	for _, tt := range tests {
		if got := StepName(tt.step); got != tt.want {
			t.Errorf("StepName(%d): got %q, want %q", tt.step, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Oracle.Provider != "qwen" || cfg.Oracle.Model != "qwen-vl-max" {
		t.Errorf("oracle defaults: got %s/%s", cfg.Oracle.Provider, cfg.Oracle.Model)
	}
	if cfg.Temperature != 0.3 {
		t.Errorf("temperature: got %f", cfg.Temperature)
	}
	if cfg.OracleAttempts != 3 || cfg.OracleRetryDelay != 2 {
		t.Errorf("retry defaults: got %d attempts, %ds delay", cfg.OracleAttempts, cfg.OracleRetryDelay)
	}
	if cfg.ImageMaxDim != 512 || cfg.ImageQuality != 80 {
		t.Errorf("image defaults: got %d/%d", cfg.ImageMaxDim, cfg.ImageQuality)
	}
	if len(cfg.Formats) != 1 || cfg.Formats[0] != ".pdf" {
		t.Errorf("formats: got %v", cfg.Formats)
	}
}

func TestConfigPaths(t *testing.T) {
	cfg := Config{HomeworkDir: "hw"}

	if got := cfg.ResultsPath(); got != filepath.Join("hw", "results") {
		t.Errorf("results path: got %q", got)
	}
	if got := cfg.ProcessingPath(); got != filepath.Join("hw", "processing") {
		t.Errorf("processing path: got %q", got)
	}
	if got := cfg.DatabasePath(); got != filepath.Join("hw", "gohomework.db") {
		t.Errorf("database path: got %q", got)
	}

	cfg.ResultsDir = "/out"
	cfg.DBPath = "/data/hw.db"
	if got := cfg.ResultsPath(); got != "/out" {
		t.Errorf("results override: got %q", got)
	}
	if got := cfg.DatabasePath(); got != "/data/hw.db" {
		t.Errorf("database override: got %q", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ImageQuality = 150

	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Oracle.Provider = "nonsense"

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
