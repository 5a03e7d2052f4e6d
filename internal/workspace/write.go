package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"tailor/internal/types"
)

// StageWrite writes content to path atomically: the bytes land in a
// temp file in the same directory, then rename publishes them. A crash
// mid-write never leaves a half-written page behind.
func StageWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(path), uuid.NewString()[:8]))

	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return &types.WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &types.WriteError{Path: path, Err: err}
	}
	return nil
}
