package utils

import (
	"strconv"
)

// StrToInt64 converts a string to an int64.
// Returns 0 and an error if the conversion fails.
func StrToInt64(s string) (int64, error) {
	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

// ParseIDParam parses a positive path id.
func ParseIDParam(s string) (int64, bool) {
	id, err := StrToInt64(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
