package utils

import "strings"

// NewNullString is a helper for string pointers, returning nil if string is empty.
// Useful for fields that are optional and should be NULL in DB if not provided.
func NewNullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// DerefString returns the pointed-to string or "".
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// AppendNote appends a line to optional free-text notes.
func AppendNote(notes *string, line string) *string {
	line = strings.TrimSpace(line)
	if line == "" {
		return notes
	}
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return &line
	}
	joined := *notes + "\n" + line
	return &joined
}
