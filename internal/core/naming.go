package core

import (
	"regexp"
)

var datePrefixRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

// DateFromFilename extracts the leading YYYY-MM-DD prefix of a history
// filename. Files without a date prefix yield the raw filename.
func DateFromFilename(filename string) string {
	if m := datePrefixRegex.FindString(filename); m != "" {
		return m
	}
	return filename
}

// PeriodPlaylistName derives the per-period playlist name for a history
// file, e.g. "2024-06-01 History Set".
func PeriodPlaylistName(filename string) string {
	return DateFromFilename(filename) + " History Set"
}
