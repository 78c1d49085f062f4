// Package match resolves the inferred problem hierarchy against the
// actual page elements, turning index references into element
// references and inferring elements for subquestions the model left
// unreferenced.
package match

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/renqiu/gohomework/element"
	"github.com/renqiu/gohomework/structure"
)

// Subquestion pairs an inferred subquestion with its resolved
// elements. Images holds the payloads of the image-kind elements, in
// element order; it is never nil.
type Subquestion struct {
	ID       string
	Text     string
	Pages    []int
	Elements []*element.Element
	Images   []string
}

// Problem is a fully matched problem ready for answering. Elements is
// the problem's own resolved elements plus every element resolved
// across its subquestions, first-seen order, no duplicates.
type Problem struct {
	ID           string
	Text         string
	Pages        []int
	Elements     []*element.Element
	Subquestions []Subquestion
}

// Match resolves every problem and subquestion of the hierarchy
// against the ordered element slice. Out-of-range indices are dropped
// silently; a subquestion with no resolvable indices gets elements by
// page-window inference instead. A problem that ends up with no
// subquestions is dropped: every matched problem carries at least one.
func Match(problems []structure.Problem, elements []*element.Element) []Problem {
	matched := make([]Problem, 0, len(problems))
	for i, prob := range problems {
		id := prob.ID
		if id == "" {
			id = fmt.Sprintf("p%d", i)
		}

		probElements := resolveIndices(prob.RelatedElements, elements)

		subs := make([]Subquestion, 0, len(prob.Subquestions))
		for _, sub := range prob.Subquestions {
			related := resolveIndices(sub.RelatedElements, elements)
			if len(related) == 0 {
				related = inferElements(sub.Text, sub.Pages, elements)
			}
			images := []string{}
			for _, el := range related {
				if el.IsImage() {
					images = append(images, el.Content)
				}
			}
			subs = append(subs, Subquestion{
				ID:       sub.ID,
				Text:     sub.Text,
				Pages:    sub.Pages,
				Elements: related,
				Images:   images,
			})
			slog.Debug("match: subquestion resolved",
				"problem", id, "subquestion", sub.ID,
				"elements", len(related), "images", len(images))
		}

		if len(subs) == 0 {
			slog.Warn("match: dropping problem without subquestions", "problem", id)
			continue
		}

		combined := make([]*element.Element, len(probElements))
		copy(combined, probElements)
		for _, sq := range subs {
			for _, el := range sq.Elements {
				if !containsElement(combined, el) {
					combined = append(combined, el)
				}
			}
		}

		matched = append(matched, Problem{
			ID:           id,
			Text:         prob.Text,
			Pages:        prob.Pages,
			Elements:     combined,
			Subquestions: subs,
		})
		slog.Info("match: problem resolved",
			"problem", id, "subquestions", len(subs), "elements", len(combined))
	}
	return matched
}

// resolveIndices maps indices to elements, dropping any that fall
// outside the slice.
func resolveIndices(indices []int, elements []*element.Element) []*element.Element {
	var resolved []*element.Element
	for _, idx := range indices {
		if idx >= 0 && idx < len(elements) {
			resolved = append(resolved, elements[idx])
		}
	}
	return resolved
}

// inferElements guesses a subquestion's elements when the model gave
// no usable indices. Candidates are the elements within one page of
// any declared page (nil pages means page 1). Images always qualify; a
// text element qualifies only when the subquestion text is non-blank
// and appears verbatim in its content. An empty pick falls back to the
// first three candidates.
func inferElements(text string, pages []int, elements []*element.Element) []*element.Element {
	if pages == nil {
		pages = []int{1}
	}
	window := make(map[int]bool, len(pages)*3)
	for _, p := range pages {
		window[p-1] = true
		window[p] = true
		window[p+1] = true
	}

	var candidates []*element.Element
	for _, el := range elements {
		if window[el.Page] {
			candidates = append(candidates, el)
		}
	}

	var related []*element.Element
	for _, el := range candidates {
		switch {
		case el.IsImage():
			related = append(related, el)
		case el.Kind == element.Text && strings.TrimSpace(text) != "" && strings.Contains(el.Content, text):
			related = append(related, el)
		}
	}
	if len(related) > 0 {
		return related
	}
	if len(candidates) > 3 {
		return candidates[:3]
	}
	return candidates
}

func containsElement(list []*element.Element, el *element.Element) bool {
	for _, e := range list {
		if e == el {
			return true
		}
	}
	return false
}
