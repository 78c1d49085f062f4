package structure

import (
	"log/slog"
	"regexp"
)

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// extractPrefix returns the leading digit run of an id ("1a" -> "1"),
// or the id unchanged when it has none.
func extractPrefix(id string) string {
	if m := leadingDigits.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}

// GroupByPrefix merges flat fragments into problems by the leading
// digit run of their ids, in one left-to-right pass. Only consecutive
// fragments merge: a prefix that reappears after a different one
// starts a new problem rather than rejoining the earlier group.
func GroupByPrefix(fragments []Fragment) []Problem {
	var problems []Problem
	cur := -1
	for _, f := range fragments {
		pid := extractPrefix(f.ID)
		if cur < 0 || problems[cur].ID != pid {
			problems = append(problems, Problem{
				ID:              pid,
				Text:            "",
				RelatedElements: []int{},
				Pages:           []int{},
			})
			cur = len(problems) - 1
		}
		pages := f.Pages
		if pages == nil {
			pages = []int{}
		}
		related := f.RelatedElements
		if related == nil {
			related = []int{}
		}
		problems[cur].Subquestions = append(problems[cur].Subquestions, Subquestion{
			ID:              f.ID,
			Text:            f.Text,
			RelatedElements: related,
			Pages:           pages,
		})
	}
	slog.Info("structure: grouped fragments into problems", "problems", len(problems))
	return problems
}
