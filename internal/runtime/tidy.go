package runtime

import (
	"regexp"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	spaceComma = regexp.MustCompile(` +,`)
	emptySlots = regexp.MustCompile(`,(\s*,)+`)
)

// Tidy cleans up a resolved prompt: runs of blanks collapse to one space,
// empty comma slots left by unresolved directives are dropped and every line
// is trimmed, including stray leading or trailing commas.
func Tidy(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = spaceRun.ReplaceAllString(line, " ")
		line = spaceComma.ReplaceAllString(line, ",")
		line = emptySlots.ReplaceAllString(line, ",")
		line = strings.Trim(line, " ,")
		lines[i] = line
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
