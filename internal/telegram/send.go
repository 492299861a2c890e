package telegram

import (
	"strings"
	"unicode/utf8"
)

// splitText cuts text into pieces of at most maxLen bytes, preferring a
// newline in the second half of a piece and never splitting a rune.
func splitText(text string, maxLen int) []string {
	var parts []string
	for len(text) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if idx := strings.LastIndexByte(text[:cut], '\n'); idx > cut/2 {
			cut = idx + 1
		}
		if cut == 0 {
			cut = maxLen
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
