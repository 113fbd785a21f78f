package agent

import (
	"strings"
)

const clarificationMarker = "[CLARIFICATION]"

// Response is a decoded query-generation answer: either a Clarification or
// a QueryText.
type Response interface {
	isResponse()
}

type Clarification struct {
	Question string
}

type QueryText struct {
	SQL string
}

func (Clarification) isResponse() {}
func (QueryText) isResponse()     {}

// DecodeResponse classifies raw model output once so later steps never
// re-parse it.
func DecodeResponse(content string) Response {
	trimmed := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(trimmed, clarificationMarker); ok {
		question, _, _ := strings.Cut(rest, clarificationMarker)
		return Clarification{Question: strings.TrimSpace(question)}
	}
	return QueryText{SQL: cleanQuery(content)}
}

// cleanQuery strips markdown code fences from generated SQL.
func cleanQuery(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
