package search

import (
	"strings"
	"unicode"
)

const truncationMarker = "..."

// truncateContent shortens content to at most maxChars runes including the
// marker, cutting at the last whitespace boundary inside the budget so no
// word is split. maxChars <= 0 disables truncation. Output that already
// fits is returned unchanged, so re-truncation is a no-op.
func truncateContent(content string, maxChars int) string {
	if maxChars <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}

	budget := maxChars - len(truncationMarker)
	if budget <= 0 {
		return string(runes[:maxChars])
	}

	cut := runes[:budget]
	boundary := -1
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			boundary = i
			break
		}
	}
	if boundary > 0 {
		cut = cut[:boundary]
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + truncationMarker
}
