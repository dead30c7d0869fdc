package extractor

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxPromptChars caps file-derived text forwarded to the generation service.
const MaxPromptChars = 12000

var excessBlankLines = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

// CleanForPrompt prepares extracted file text to be sent as a user message:
// non-printable characters are stripped, runs of blank lines collapse to one
// and the result is truncated to MaxPromptChars characters.
func CleanForPrompt(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text)

	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if runes := []rune(text); len(runes) > MaxPromptChars {
		text = string(runes[:MaxPromptChars])
	}

	return text
}
