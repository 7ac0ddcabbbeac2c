package common

import "strconv"

// AtoiDefault parses value as an int, falling back to def on empty or
// malformed input. Report handlers use it for optional query parameters like
// `days`.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
