package api

import (
	"regexp"
	"strings"
)

type (
	// SessionID is a unique identifier for a build session
	SessionID string

	// NodeID identifies a capability ("node type") in the external registry
	NodeID string

	// QuestionID identifies a pending clarification question
	QuestionID string
)

// InvalidIDChars matches characters not permitted in session IDs. Valid
// characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}
