package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a model reply whose JSON payload could not be
// located or decoded. Snippet holds the candidate substring that
// failed, for logging and diagnosis.
type ParseError struct {
	Snippet string
}

func (e *ParseError) Error() string {
	snippet := e.Snippet
	if len(snippet) > 160 {
		snippet = snippet[:160] + "..."
	}
	return fmt.Sprintf("oracle: unparseable reply: %q", snippet)
}

// FlexString decodes a JSON string or a bare number into a string.
// Models are inconsistent about quoting ids; both forms mean the same
// thing to the pipeline.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// ExtractObject pulls a JSON object out of a free-form model reply.
// A ```json fenced block wins if present; otherwise the span from the
// first "{" to the last "}" is taken. Replies that interleave prose
// between two objects therefore fail as a whole rather than yielding a
// half-read object. The returned bytes are valid JSON.
func ExtractObject(reply string) (json.RawMessage, error) {
	candidate := ""
	if i := strings.Index(reply, "```json"); i >= 0 {
		rest := reply[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		candidate = strings.TrimSpace(rest)
	} else {
		start := strings.Index(reply, "{")
		end := strings.LastIndex(reply, "}")
		if start < 0 || end < start {
			return nil, &ParseError{Snippet: strings.TrimSpace(reply)}
		}
		candidate = strings.TrimSpace(reply[start : end+1])
	}

	if !json.Valid([]byte(candidate)) {
		return nil, &ParseError{Snippet: candidate}
	}
	return json.RawMessage(candidate), nil
}
