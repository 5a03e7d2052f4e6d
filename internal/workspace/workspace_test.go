package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanExcludesProtectedFiles(t *testing.T) {
	appDir := t.TempDir()
	writeFile(t, filepath.Join(appDir, "page.tsx"), "home")
	writeFile(t, filepath.Join(appDir, "Layout.tsx"), "layout")
	writeFile(t, filepath.Join(appDir, "ClientBody.tsx"), "body")
	writeFile(t, filepath.Join(appDir, "pricing", "page.tsx"), "pricing")
	writeFile(t, filepath.Join(appDir, "styles.css"), "css")

	records, err := Scan(appDir, []string{"layout.tsx", "clientbody.tsx"})
	require.NoError(t, err)

	var paths []string
	for _, r := range records {
		paths = append(paths, r.Path)
	}
	assert.Len(t, records, 2)
	assert.Contains(t, paths, filepath.Join(appDir, "page.tsx"))
	assert.Contains(t, paths, filepath.Join(appDir, "pricing", "page.tsx"))
}

func TestScanSnapshotsOriginal(t *testing.T) {
	appDir := t.TempDir()
	writeFile(t, filepath.Join(appDir, "page.tsx"), "original content")

	records, err := Scan(appDir, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "original content", records[0].Original)
	assert.Equal(t, "original content", records[0].Current)
}

func TestNormalizedEqual(t *testing.T) {
	assert.True(t, NormalizedEqual("a\nb", "a\nb"))
	assert.True(t, NormalizedEqual("a\nb\n", "a\nb"))
	assert.True(t, NormalizedEqual("a\nb\n\n", "a\nb\n"))
	assert.False(t, NormalizedEqual("a\nb", "a\nc"))
	assert.False(t, NormalizedEqual("\na", "a"))
}

func TestInjectHeaderAtTop(t *testing.T) {
	got := InjectHeader("export default function Page() {}\n", "// Personalized (cohort guess): x")
	assert.Equal(t, "// Personalized (cohort guess): x\nexport default function Page() {}\n", got)
}

func TestInjectHeaderAfterClientDirective(t *testing.T) {
	for _, directive := range []string{"'use client'", `"use client"`, "'use client';"} {
		content := directive + "\n\nexport default function Page() {}\n"
		got := InjectHeader(content, "// hdr")
		lines := strings.Split(got, "\n")
		assert.Equal(t, directive, lines[0])
		assert.Equal(t, "", lines[1])
		assert.Equal(t, "// hdr", lines[2], "directive %s", directive)
	}
}

func TestInjectHeaderAlreadyPresent(t *testing.T) {
	header := "// Personalized (cohort guess): price_sensitive"
	content := InjectHeader("'use client'\n\nexport default function Page() {}\n", header)
	if got := InjectHeader(content, header); got != content {
		t.Errorf("second injection should be a no-op, got:\n%s", got)
	}
}

func TestStageWriteAtomicNoLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.tsx")

	require.NoError(t, StageWrite(path, "v1"))
	require.NoError(t, StageWrite(path, "v2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may remain")
}

func TestGuardEngageSubstitutesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "the real page")

	g := NewGuard(page)
	require.NoError(t, g.Engage())
	defer g.Restore()

	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Personalizing your experience")
	assert.Equal(t, "the real page", g.Snapshot())
}

func TestGuardRestoreBringsBackOriginal(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "the real page")

	g := NewGuard(page)
	require.NoError(t, g.Engage())

	// Simulate the run writing a personalized version before failing.
	writeFile(t, page, "half personalized")

	require.NoError(t, g.Restore())
	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Equal(t, "the real page", string(data))

	// Idempotent
	require.NoError(t, g.Restore())
}

func TestGuardReleaseKeepsRewrittenContent(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "original")

	g := NewGuard(page)
	require.NoError(t, g.Engage())

	writeFile(t, page, "personalized")
	require.NoError(t, g.Release(true))

	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Equal(t, "personalized", string(data))
}

func TestGuardReleaseReinstatesWhenNotRewritten(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "original")

	g := NewGuard(page)
	require.NoError(t, g.Engage())
	require.NoError(t, g.Release(false))

	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestGuardMissingEntryPageIsNoop(t *testing.T) {
	g := NewGuard(filepath.Join(t.TempDir(), "absent.tsx"))
	require.NoError(t, g.Engage())
	require.NoError(t, g.Restore())
	assert.False(t, g.Conflicted())
}

func TestGuardDetectsExternalWrite(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "original")

	g := NewGuard(page)
	require.NoError(t, g.Engage())
	defer g.Restore()

	// An outside write while the guard is engaged.
	require.NoError(t, os.WriteFile(page, []byte("intruder"), 0644))

	// fsnotify delivery is async
	deadline := time.Now().Add(2 * time.Second)
	for !g.Conflicted() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, g.Conflicted())
}

func TestGuardPublishDoesNotConflict(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "original")

	g := NewGuard(page)
	require.NoError(t, g.Engage())

	require.NoError(t, g.Publish("personalized by this run"))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, g.Conflicted())

	require.NoError(t, g.Release(true))
	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Equal(t, "personalized by this run", string(data))
}

func TestGuardDoubleEngageFails(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.tsx")
	writeFile(t, page, "original")

	g := NewGuard(page)
	require.NoError(t, g.Engage())
	defer g.Restore()

	assert.Error(t, g.Engage())
}
