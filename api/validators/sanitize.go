package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims free text and caps it at maxLen characters. Invalid
// UTF-8 is dropped so the result is always safe to store.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(strings.ToValidUTF8(input, ""))
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	cut, n := 0, 0
	for n < maxLen {
		_, size := utf8.DecodeRuneInString(trimmed[cut:])
		cut += size
		n++
	}
	return strings.TrimSpace(trimmed[:cut])
}
