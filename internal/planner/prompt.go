package planner

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tailor/internal/types"
)

// systemPrompt pins the hard constraints for personalization planning.
const systemPrompt = `You are a senior frontend engineer performing safe, localized personalizations, including layout changes.
Hard constraints:
- Only modify the provided app file. Do not suggest edits to the component library.
- Do not remove or modify any analytics code, providers, hooks, or imports.
- Preserve imports and functionality.
- Prefer reordering, conditional rendering, and prop tweaks.
- Avoid introducing breaking changes, syntax errors, or unused imports.
- All modifications must maintain full compatibility with the current app structure and coding style.
You are given raw analytics event logs (unparsed). Infer user interests, priorities, and pain points directly from them.
Base personalization decisions solely on these logs and the provided code, without external assumptions.
If the logs are ambiguous or incomplete, default to conservative, non-breaking changes.
Respond with JSON only.`

// BuildUserPrompt assembles the per-file planning prompt: reference
// context, the file under edit, the behavior log, and the response schema.
func BuildUserPrompt(req types.PlanRequest) string {
	var b strings.Builder

	if req.ReferenceContext != "" {
		b.WriteString(req.ReferenceContext)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "=== CURRENT APP FILE TO MODIFY: %s ===\n", req.Path)
	b.WriteString(req.Content)
	b.WriteString("\n\n")

	b.WriteString("=== RAW ANALYTICS EVENT LOGS (UNPARSED) ===\n")
	b.WriteString(behaviorText(req.Behavior))
	b.WriteString("\n\n")

	b.WriteString(`Respond JSON only with:
{
  "changes": [
    {"type": "reorder|hide|emphasize|conditional|props", "target": "ComponentName or section", "action": "what to do", "reason": "why"}
  ],
  "summary": "strategy",
  "cohort": "string",
  "signals": ["strings"]
}`)

	return b.String()
}

// behaviorText renders the behavior summary for the prompt. Raw logs win
// when present; otherwise the parsed summary is serialized.
func behaviorText(b types.BehaviorSummary) string {
	if b.RawText != "" {
		return b.RawText
	}
	if b.IsEmpty() {
		return "(no behavior data available)"
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "(no behavior data available)"
	}
	return string(data)
}

// BuildReferenceContext walks the component library and concatenates its
// sources under a do-not-modify banner. The planner sees these for
// awareness only; the system prompt forbids editing them.
func BuildReferenceContext(root, componentsDir string) (string, error) {
	var b strings.Builder
	b.WriteString("COMPONENT LIBRARY REFERENCE (DO NOT MODIFY THESE):\n")
	fmt.Fprintf(&b, "- Never change code under %s/*\n", componentsDir)
	b.WriteString("- Analytics wiring must not be edited\n\n")

	dir := filepath.Join(root, componentsDir)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tsx") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			// Unreadable components are skipped, not fatal.
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		fmt.Fprintf(&b, "=== %s ===\n", filepath.ToSlash(rel))
		b.Write(content)
		b.WriteString("\n\n")
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return b.String(), nil
		}
		return "", fmt.Errorf("failed to read components dir: %w", err)
	}
	return b.String(), nil
}
