// Package answer turns matched problems into answer records. Each
// problem costs exactly one oracle call: the request carries the stem,
// every subquestion prompt and the problem's images, and the reply is
// aligned back onto the subquestions so that every subquestion ends up
// with exactly one record, parseable oracle output or not.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/renqiu/gohomework/llm"
	"github.com/renqiu/gohomework/match"
	"github.com/renqiu/gohomework/oracle"
)

// answerPrompt instructs the model to solve every subquestion in one
// pass and wrap the result in a strict JSON envelope.
const answerPrompt = "你是专业题目解答助手。" +
	"请结合题干按小问逐个给出答案，并在每个小问后给出详细步骤与思路。" +
	"重要：最后严格返回 JSON，格式如下：" +
	`{"problem_id":"1","problem_text":"题干文本（如果有）","answers":[{"sub_id":"1(a)","answer":"...","reason":"..."}]}` +
	"不要返回多余说明，若模型需要列出推导过程，请放到 reason 字段。"

// Record is one subquestion's answer as it appears in exported
// results. SubText and SubImages come from the subquestion itself, not
// from the model reply.
type Record struct {
	ProblemID string   `json:"problem_id"`
	SubID     string   `json:"sub_id"`
	SubText   string   `json:"sub_text"`
	SubImages []string `json:"sub_images"`
	Answer    string   `json:"answer"`
	Reason    string   `json:"reason"`
}

// ProblemResult is the aggregated outcome for one problem. Subanswers
// holds exactly one Record per subquestion, in subquestion order.
type ProblemResult struct {
	ProblemID       string   `json:"problem_id"`
	ProblemText     string   `json:"problem_text"`
	NumSubquestions int      `json:"num_subquestions"`
	Subanswers      []Record `json:"subanswers"`
}

// Config holds answer-stage settings.
type Config struct {
	// Concurrency bounds how many problems are answered in parallel.
	// Zero or one means sequential.
	Concurrency int
}

// Solver answers matched problems through the oracle.
type Solver struct {
	oracle *oracle.Client
	cfg    Config
}

// New creates a Solver. A non-positive concurrency becomes 1.
func New(oc *oracle.Client, cfg Config) *Solver {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Solver{oracle: oc, cfg: cfg}
}

// Solve answers every problem, one oracle call each. Results come back
// in problem order regardless of concurrency, and the slice always has
// one entry per input problem.
func (s *Solver) Solve(ctx context.Context, problems []match.Problem) []ProblemResult {
	results := make([]ProblemResult, len(problems))

	if s.cfg.Concurrency == 1 {
		for i := range problems {
			results[i] = s.solveProblem(ctx, &problems[i])
		}
		return results
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.cfg.Concurrency)
	)
	for i := range problems {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = degraded(&problems[i], "")
				return
			}

			results[i] = s.solveProblem(ctx, &problems[i])
		}(i)
	}
	wg.Wait()

	return results
}

func (s *Solver) solveProblem(ctx context.Context, prob *match.Problem) ProblemResult {
	slog.Info("answer: solving problem",
		"problem", prob.ID,
		"subquestions", len(prob.Subquestions),
	)

	reply, err := s.oracle.Ask(ctx, answerPrompt, answerContent(prob))
	if err != nil {
		slog.Warn("answer: oracle failed, recording empty answers",
			"problem", prob.ID, "error", err)
		return degraded(prob, "")
	}

	parsed, err := parseReply(reply)
	if err != nil {
		slog.Warn("answer: reply is not structured JSON, keeping raw text",
			"problem", prob.ID, "error", err)
		return degraded(prob, reply)
	}

	problemText := prob.Text
	if strings.TrimSpace(parsed.ProblemText) != "" {
		problemText = parsed.ProblemText
	}

	subs := prob.Subquestions
	records := make([]Record, len(subs))
	filled := make([]bool, len(subs))

	for idx, ans := range parsed.Answers {
		slot := slotFor(subs, string(ans.SubID), idx)
		if slot < 0 {
			slog.Warn("answer: dropping answer with no matching subquestion",
				"problem", prob.ID, "sub_id", string(ans.SubID), "index", idx)
			continue
		}
		if filled[slot] {
			slog.Warn("answer: duplicate answer for subquestion, keeping first",
				"problem", prob.ID, "sub_id", subs[slot].ID)
			continue
		}
		records[slot] = makeRecord(prob.ID, &subs[slot], ans.Answer, ans.Reason)
		filled[slot] = true
	}

	for i := range subs {
		if !filled[i] {
			records[i] = makeRecord(prob.ID, &subs[i], "", "")
		}
	}

	slog.Info("answer: problem answered",
		"problem", prob.ID, "answers", len(parsed.Answers), "subquestions", len(subs))

	return ProblemResult{
		ProblemID:       prob.ID,
		ProblemText:     problemText,
		NumSubquestions: len(subs),
		Subanswers:      records,
	}
}

// answerContent lays out the oracle request: the stem first (when the
// problem has one), one text turn per subquestion, then every image
// attached to the problem.
func answerContent(prob *match.Problem) []llm.ContentPart {
	var parts []llm.ContentPart
	if strings.TrimSpace(prob.Text) != "" {
		parts = append(parts, llm.TextPart(fmt.Sprintf("题干（大题 %s）：\n%s", prob.ID, prob.Text)))
	}
	for i := range prob.Subquestions {
		sub := &prob.Subquestions[i]
		parts = append(parts, llm.TextPart(fmt.Sprintf("小问 %s：\n%s", sub.ID, sub.Text)))
	}
	for _, el := range prob.Elements {
		if el.IsImage() {
			parts = append(parts, llm.ImagePart(el.Content))
		}
	}
	return parts
}

// slotFor resolves which subquestion an answer belongs to: exact id
// match first, then the answer's own position in the reply.
func slotFor(subs []match.Subquestion, subID string, idx int) int {
	if subID != "" {
		for i := range subs {
			if subs[i].ID == subID {
				return i
			}
		}
	}
	if idx < len(subs) {
		return idx
	}
	return -1
}

// degraded fills every slot with the same answer text: the raw reply
// when the model returned something unparseable, an empty string when
// the oracle failed outright. The extracted stem is kept either way.
func degraded(prob *match.Problem, raw string) ProblemResult {
	records := make([]Record, len(prob.Subquestions))
	for i := range prob.Subquestions {
		records[i] = makeRecord(prob.ID, &prob.Subquestions[i], raw, "")
	}
	return ProblemResult{
		ProblemID:       prob.ID,
		ProblemText:     prob.Text,
		NumSubquestions: len(prob.Subquestions),
		Subanswers:      records,
	}
}

func makeRecord(problemID string, sub *match.Subquestion, answer, reason string) Record {
	return Record{
		ProblemID: problemID,
		SubID:     sub.ID,
		SubText:   sub.Text,
		SubImages: sub.Images,
		Answer:    answer,
		Reason:    reason,
	}
}
