// Package diff computes line-level change statistics between an original
// and a personalized file using the sergi/go-diff engine. The engine only
// needs counts and a short summary for logs and commit messages; equality
// decisions stay with the workspace package's normalized comparison.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats summarizes one file's change.
type Stats struct {
	Path         string
	LinesAdded   int
	LinesRemoved int
}

// Changed reports whether any line changed.
func (s Stats) Changed() bool {
	return s.LinesAdded > 0 || s.LinesRemoved > 0
}

// String renders the familiar +a/-r form.
func (s Stats) String() string {
	return fmt.Sprintf("%s +%d/-%d", s.Path, s.LinesAdded, s.LinesRemoved)
}

// Engine computes diffs with settings tuned for code.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine creates a diff engine.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{dmp: dmp}
}

// DefaultEngine is a singleton engine for general use.
var DefaultEngine = NewEngine()

// Compute returns line-level change stats between old and new content.
// Line mode keeps the counts meaningful for source files.
func (e *Engine) Compute(path, oldContent, newContent string) Stats {
	stats := Stats{Path: path}
	if oldContent == newContent {
		return stats
	}

	oldLines, newLines, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(oldLines, newLines, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.LinesAdded += n
		case diffmatchpatch.DiffDelete:
			stats.LinesRemoved += n
		}
	}
	return stats
}

// Summary renders stats for a set of files, skipping unchanged ones.
func Summary(all []Stats) string {
	var parts []string
	for _, s := range all {
		if s.Changed() {
			parts = append(parts, s.String())
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
