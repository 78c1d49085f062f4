package structure

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/renqiu/gohomework/oracle"
)

// Wire shapes for the inference reply. Kept separate from the domain
// types because models are sloppy about scalar types: ids arrive
// quoted or bare, page numbers arrive as ints, floats, or numeric
// strings. The wire layer absorbs that variance so the domain types
// stay plain.

type wireReply struct {
	Problems  []wireProblem  `json:"problems"`
	Questions []wireFragment `json:"questions"`
}

type wireProblem struct {
	ID              oracle.FlexString `json:"id"`
	Text            string            `json:"text"`
	RelatedElements []int             `json:"related_elements"`
	Pages           pageList          `json:"pages"`
	Subquestions    []wireFragment    `json:"subquestions"`
}

type wireFragment struct {
	ID              oracle.FlexString `json:"id"`
	Text            string            `json:"text"`
	RelatedElements []int             `json:"related_elements"`
	Pages           pageList          `json:"pages"`
}

type decodedReply struct {
	problems  []Problem
	questions []Fragment
}

func decodeReply(reply string) (*decodedReply, error) {
	raw, err := oracle.ExtractObject(reply)
	if err != nil {
		return nil, err
	}
	var wire wireReply
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	out := &decodedReply{}
	if len(wire.Problems) > 0 {
		out.problems = make([]Problem, len(wire.Problems))
		for i, p := range wire.Problems {
			subs := make([]Subquestion, len(p.Subquestions))
			for j, s := range p.Subquestions {
				subs[j] = Subquestion{
					ID:              string(s.ID),
					Text:            s.Text,
					RelatedElements: s.RelatedElements,
					Pages:           []int(s.Pages),
				}
			}
			out.problems[i] = Problem{
				ID:              string(p.ID),
				Text:            p.Text,
				RelatedElements: p.RelatedElements,
				Pages:           []int(p.Pages),
				Subquestions:    subs,
			}
		}
	}
	if wire.Questions != nil {
		out.questions = make([]Fragment, len(wire.Questions))
		for i, q := range wire.Questions {
			out.questions[i] = Fragment{
				ID:              string(q.ID),
				Text:            q.Text,
				RelatedElements: q.RelatedElements,
				Pages:           []int(q.Pages),
			}
		}
	}
	return out, nil
}

// pageList decodes a pages array leniently: bare numbers, floats, and
// numeric strings all count; tokens that are not numeric at all are
// dropped (they could never match an element's page anyway). null and
// a missing key both leave the list nil, which matching reads as
// "unspecified".
type pageList []int

func (p *pageList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(pageList, 0, len(raw))
	for _, item := range raw {
		var f float64
		if err := json.Unmarshal(item, &f); err == nil {
			out = append(out, int(f))
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if v, convErr := strconv.Atoi(strings.TrimSpace(s)); convErr == nil {
				out = append(out, v)
			}
		}
	}
	*p = out
	return nil
}
