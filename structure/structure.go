// Package structure turns the ordered elements of a document into a
// hierarchy of problems and subquestions. The normal path is a single
// oracle call; two degraded paths cover models that return the legacy
// flat shape and models that return nothing usable at all.
package structure

import (
	"context"
	"log/slog"

	"github.com/renqiu/gohomework/element"
	"github.com/renqiu/gohomework/oracle"
)

// Subquestion is one answerable item inside a problem. RelatedElements
// holds indices into the ordered element list. Pages is nil when the
// model omitted the field entirely; matching treats nil as "page 1"
// and an explicit empty list as "no pages".
type Subquestion struct {
	ID              string
	Text            string
	RelatedElements []int
	Pages           []int
}

// Problem is one whole numbered exercise: a stem (possibly empty) plus
// its subquestions.
type Problem struct {
	ID              string
	Text            string
	RelatedElements []int
	Pages           []int
	Subquestions    []Subquestion
}

// Fragment is one flat recognized question before prefix grouping,
// produced by the regex fallback or decoded from the legacy
// "questions" reply shape.
type Fragment struct {
	ID              string
	Text            string
	RelatedElements []int
	Pages           []int
}

const inferPrompt = "你是专业的试卷结构分析专家。" +
	"请以“整道题（problem）”为单位识别，保留每道题的题干（text）、子题（subquestions）和每个项对应的 page 与 related_elements（可用元素索引）。" +
	"严格返回 JSON，格式如下：" +
	`{"problems":[{"id":"1","text":"题干（可为空）","related_elements":[0,1],"pages":[1],"subquestions":[{"id":"1(a)","text":"小问文本","related_elements":[2],"pages":[1]}]}]}` +
	"只返回 JSON，不要多余说明。"

// Infer asks the oracle to group the document into problems. Elements
// are sorted into reading order first so the indices the model hands
// back line up with the slice the rest of the pipeline sees. Any
// oracle or parse failure falls back to regex recognition; Infer
// itself never fails. An empty result means the document yielded no
// recognizable problems.
func Infer(ctx context.Context, oc *oracle.Client, elements []*element.Element) []Problem {
	element.SortReadingOrder(elements)
	slog.Info("structure: requesting problem grouping", "elements", len(elements))

	reply, err := oc.Ask(ctx, inferPrompt, oracle.Content(elements))
	if err != nil {
		slog.Warn("structure: oracle unavailable, falling back to regex", "error", err)
		return GroupByPrefix(Fallback(elements))
	}

	decoded, err := decodeReply(reply)
	if err != nil {
		slog.Warn("structure: reply not parseable, falling back to regex", "error", err)
		return GroupByPrefix(Fallback(elements))
	}

	if len(decoded.problems) > 0 {
		slog.Info("structure: model grouped problems", "problems", len(decoded.problems))
		return decoded.problems
	}
	if decoded.questions != nil {
		slog.Info("structure: legacy flat questions, grouping by prefix",
			"questions", len(decoded.questions))
		return GroupByPrefix(decoded.questions)
	}

	// Valid JSON with neither shape: the model saw no problems. Not a
	// parse failure, so no fallback; the pipeline reports the empty
	// structure stage.
	return nil
}
