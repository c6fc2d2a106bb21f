package persona

import (
	"fmt"
	"strings"
)

// Markdown renders a compact report of the personas for a dataset.
func Markdown(name string, rows int, personas []Persona) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", rows))
	b.WriteString(fmt.Sprintf("Personas: %d\n\n", len(personas)))

	b.WriteString("[PERSONAS]\n")
	for _, p := range personas {
		b.WriteString(fmt.Sprintf("- %s (n=%d, %d%%)\n", p.Name, p.Size, p.Pct))
		entries := p.Entries
		if entries == nil && p.Description != "" {
			entries, _ = ParseDescription(p.Description)
		}
		if len(entries) == 0 {
			b.WriteString("  - (no statistics)\n")
			continue
		}
		for _, e := range entries {
			b.WriteString(fmt.Sprintf("  - %s\n", safeVal(e.String())))
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
