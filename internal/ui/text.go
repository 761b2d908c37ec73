package ui

// TruncateWithEllipsis fits s into a summary table column of maxRunes,
// appending an ellipsis when the value had to be cut.
func TruncateWithEllipsis(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "…"
}
