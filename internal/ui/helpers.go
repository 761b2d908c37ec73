package ui

import (
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// ShortID abbreviates a digest or fetch ID to its first 8 characters for
// the summary table. Counts runes, not bytes, so it never splits a
// multi-byte character.
func ShortID(id string) string {
	const maxLen = 8
	if utf8.RuneCountInString(id) <= maxLen {
		return id
	}
	return string([]rune(id)[:maxLen])
}

// Bytes renders a byte count for the summary, or a dash when unknown.
func Bytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}
