package agent

import (
	_ "embed"
	"strings"
	"time"
)

//go:embed instructions.md
var DefaultSystemPrompt string

// systemInstruction appends the current date to the configured block.
func systemInstruction(base string, now time.Time) string {
	var b strings.Builder
	if base = strings.TrimSpace(base); base != "" {
		b.WriteString(base)
		b.WriteString("\n")
	}
	b.WriteString("- Today's date is ")
	b.WriteString(now.Format("January 2, 2006"))
	b.WriteString(".")
	return b.String()
}
