package llm

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when model output contains no parseable JSON value
var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractJSON pulls the first JSON object or array out of model output,
// tolerating surrounding prose and markdown code fences. Model output is
// untrusted and of variable quality; callers must treat the result as a
// suggestion, not a contract
func ExtractJSON(text string) (gjson.Result, error) {
	trimmed := strings.TrimSpace(text)

	if fenced, ok := stripFence(trimmed); ok {
		trimmed = fenced
	}

	if gjson.Valid(trimmed) {
		return gjson.Parse(trimmed), nil
	}

	best := -1
	var bestCandidate string
	for _, open := range []byte{'{', '['} {
		if candidate, start, ok := balancedSlice(trimmed, open); ok {
			if best < 0 || start < best {
				best = start
				bestCandidate = candidate
			}
		}
	}
	if best < 0 {
		return gjson.Result{}, ErrNoJSON
	}
	return gjson.Parse(bestCandidate), nil
}

func stripFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	rest := text[3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// balancedSlice finds the first balanced JSON value starting with open,
// respecting string literals and escapes
func balancedSlice(text string, open byte) (string, int, bool) {
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", 0, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closer:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if gjson.Valid(candidate) {
					return candidate, start, true
				}
				return "", 0, false
			}
		}
	}
	return "", 0, false
}
