package term

import (
	"regexp"
	"strings"
)

var (
	ansiRe  = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	oscRe   = regexp.MustCompile(`\x1b\][^\x07]*\x07`)
	otherRe = regexp.MustCompile(`\x1b[P\]X^_][^\x1b]*(?:\x1b\\)?`)
)

// Strip removes ANSI escape sequences and control characters from captured
// (non-PTY) output. Cursor movement is not interpreted; piped output rarely
// depends on it.
func Strip(text string) string {
	text = ansiRe.ReplaceAllString(text, "")
	text = oscRe.ReplaceAllString(text, "")
	text = otherRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\x07", "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= ' ' || r == '\t' || r == '\n' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
