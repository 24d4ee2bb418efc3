// Package detect implements the lightweight code-detection heuristic the UI
// uses to decide how to render a step's data field. It is a best-effort
// classifier for short snippets, not a parser: misclassifying unusual input
// is acceptable, crashing on it is not.
package detect

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Languages the heuristic can report.
const (
	LangPlain = "plain"
	LangJSON  = "json"
	LangXML   = "xml"
	LangSQL   = "sql"
	LangCode  = "code"
)

// Result is the classification of one snippet.
type Result struct {
	IsCode   bool   `json:"isCode"`
	Language string `json:"language"`
}

var (
	xmlTag = regexp.MustCompile(`(?s)^\s*<[!?]?[a-zA-Z][^>]*>.*>\s*$`)

	sqlLead = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|CREATE|DROP|ALTER|TRUNCATE)\b`)

	// codeTokens are structural fragments rare in prose.
	codeTokens = []string{
		"{", "}", ";", "=>", "==", "!=", "&&", "||",
		"function ", "func ", "def ", "return ", "var ", "const ", "let ",
	}
)

// Detect classifies text. Valid JSON objects/arrays win first, then XML-ish
// tag structure, then a leading SQL keyword, then a token-density guess;
// everything else is plain text.
func Detect(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{IsCode: false, Language: LangPlain}
	}

	if looksLikeJSON(trimmed) {
		return Result{IsCode: true, Language: LangJSON}
	}
	if xmlTag.MatchString(trimmed) {
		return Result{IsCode: true, Language: LangXML}
	}
	if sqlLead.MatchString(trimmed) {
		return Result{IsCode: true, Language: LangSQL}
	}
	if tokenDensity(trimmed) >= 3 {
		return Result{IsCode: true, Language: LangCode}
	}
	return Result{IsCode: false, Language: LangPlain}
}

// looksLikeJSON reports whether the snippet is a valid JSON object or array.
// Bare JSON scalars ("42", "true") read as prose to a human, so they are
// deliberately not treated as code.
func looksLikeJSON(s string) bool {
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return false
	}
	return json.Valid([]byte(s))
}

// tokenDensity counts distinct structural tokens present in the snippet.
func tokenDensity(s string) int {
	n := 0
	for _, tok := range codeTokens {
		if strings.Contains(s, tok) {
			n++
		}
	}
	return n
}
