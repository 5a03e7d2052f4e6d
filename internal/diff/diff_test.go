package diff

import (
	"strings"
	"testing"
)

func TestComputeIdentical(t *testing.T) {
	s := DefaultEngine.Compute("page.tsx", "a\nb\n", "a\nb\n")
	if s.Changed() {
		t.Errorf("expected no change, got %v", s)
	}
}

func TestComputeAddedLine(t *testing.T) {
	oldC := "line1\nline2\n"
	newC := "line1\nline2\nline3\n"
	s := DefaultEngine.Compute("page.tsx", oldC, newC)
	if s.LinesAdded != 1 || s.LinesRemoved != 0 {
		t.Errorf("expected +1/-0, got +%d/-%d", s.LinesAdded, s.LinesRemoved)
	}
}

func TestComputeReplacedLine(t *testing.T) {
	oldC := "const a = 1\nconst b = 2\n"
	newC := "const a = 1\nconst b = 3\n"
	s := DefaultEngine.Compute("page.tsx", oldC, newC)
	if s.LinesAdded != 1 || s.LinesRemoved != 1 {
		t.Errorf("expected +1/-1, got +%d/-%d", s.LinesAdded, s.LinesRemoved)
	}
}

func TestComputeHeaderInsertion(t *testing.T) {
	oldC := "'use client'\n\nexport default function Page() {}\n"
	newC := "'use client'\n\n// Personalized (cohort guess): price_sensitive\n\nexport default function Page() {}\n"
	s := DefaultEngine.Compute("page.tsx", oldC, newC)
	if s.LinesRemoved != 0 {
		t.Errorf("header insertion should remove nothing, got -%d", s.LinesRemoved)
	}
	if s.LinesAdded == 0 {
		t.Error("header insertion should add at least one line")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Path: "src/app/page.tsx", LinesAdded: 3, LinesRemoved: 1}
	if got := s.String(); got != "src/app/page.tsx +3/-1" {
		t.Errorf("unexpected string: %q", got)
	}
}

func TestSummary(t *testing.T) {
	all := []Stats{
		{Path: "a.tsx", LinesAdded: 2, LinesRemoved: 0},
		{Path: "b.tsx"},
		{Path: "c.tsx", LinesAdded: 0, LinesRemoved: 1},
	}
	got := Summary(all)
	if !strings.Contains(got, "a.tsx +2/-0") || !strings.Contains(got, "c.tsx +0/-1") {
		t.Errorf("summary missing entries: %q", got)
	}
	if strings.Contains(got, "b.tsx") {
		t.Errorf("summary should skip unchanged files: %q", got)
	}
}

func TestSummaryEmpty(t *testing.T) {
	if got := Summary(nil); got != "no changes" {
		t.Errorf("expected sentinel, got %q", got)
	}
}
