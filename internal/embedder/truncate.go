package embedder

import "unicode/utf8"

// Truncate returns the first maxChars characters (runes) of text. It never
// splits a multi-byte character, and the same input and limit always yield
// the same output. A non-positive maxChars disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		// byte length bounds rune count
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}

// RuneCount returns the character count used by Truncate
func RuneCount(text string) int {
	return utf8.RuneCountInString(text)
}
