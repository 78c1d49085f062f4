package structure

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/renqiu/gohomework/element"
)

// questionPatterns are tried per line in priority order; the first
// match wins. They recognize "1." / "1、" / "1。" / "1)" numbering,
// the 第N题 and 题N headings, and alphanumeric ids like "2b)".
var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)\s*[.、。)]`),
	regexp.MustCompile(`^第\s*(\d+)\s*题`),
	regexp.MustCompile(`^题\s*(\d+)`),
	regexp.MustCompile(`^([0-9]+[a-zA-Z]?)\s*[.、\)]`),
}

// Fallback recognizes question fragments with regexes when the oracle
// path yields nothing usable. It scans the text elements line by line
// in reading order; a line that matches no pattern is skipped. Each
// fragment carries the page of the element its line came from.
func Fallback(elements []*element.Element) []Fragment {
	var fragments []Fragment
	for _, el := range elements {
		if el.Kind != element.Text {
			continue
		}
		for _, line := range strings.Split(el.Content, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			for _, pat := range questionPatterns {
				m := pat.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				fragments = append(fragments, Fragment{
					ID:              m[1],
					Text:            line,
					RelatedElements: []int{},
					Pages:           []int{el.Page},
				})
				break
			}
		}
	}
	slog.Info("structure: regex fallback recognized fragments", "fragments", len(fragments))
	return fragments
}
