package workspace

import "strings"

// NormalizedEqual compares two file contents ignoring trailing newlines.
// This is the no-op test: an AI edit that only churns the final newline
// is not a change.
func NormalizedEqual(a, b string) bool {
	return strings.TrimRight(a, "\n") == strings.TrimRight(b, "\n")
}

// InjectHeader inserts a one-line header comment into content. A leading
// 'use client' / "use client" directive must stay the first statement, so
// the header goes after it; otherwise it goes at the very top.
func InjectHeader(content, header string) string {
	// A file that already carries the header keeps exactly one copy, so
	// re-running the pipeline over its own output stays a no-op.
	if strings.Contains(content, header+"\n") || strings.HasSuffix(content, header) {
		return content
	}
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 {
		first := strings.TrimSpace(strings.TrimSuffix(lines[0], "\n"))
		if isClientDirective(first) {
			var b strings.Builder
			b.WriteString(lines[0])
			if !strings.HasSuffix(lines[0], "\n") {
				b.WriteString("\n")
			}
			b.WriteString("\n")
			b.WriteString(header)
			b.WriteString("\n")
			for _, line := range lines[1:] {
				b.WriteString(line)
			}
			return b.String()
		}
	}
	return header + "\n" + content
}

func isClientDirective(line string) bool {
	switch line {
	case "'use client'", `"use client"`, "'use client';", `"use client";`:
		return true
	}
	return false
}
