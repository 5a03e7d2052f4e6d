// Package workspace owns the target source tree: enumerating eligible
// page files, guarding the entry page behind a placeholder while edits
// are computed, and writing results atomically.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// Scan enumerates eligible FileRecords: every .tsx file under appDir
// whose exact lowercase filename is not protected. Original and Current
// both start as the on-disk content.
func Scan(appDir string, protected []string) ([]types.FileRecord, error) {
	denied := make(map[string]bool, len(protected))
	for _, name := range protected {
		denied[strings.ToLower(name)] = true
	}

	var records []types.FileRecord
	err := filepath.WalkDir(appDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tsx") {
			return nil
		}
		if denied[strings.ToLower(d.Name())] {
			logging.WorkspaceDebug("skipping protected file %s", path)
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			// Unreadable files are skipped, matching the scan-what-you-can
			// policy for eligibility.
			logging.WorkspaceWarn("skipping unreadable file %s: %v", path, err)
			return nil
		}
		records = append(records, types.FileRecord{
			Path:     path,
			Original: string(content),
			Current:  string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", appDir, err)
	}

	logging.Workspace("scanned %s: %d eligible files", appDir, len(records))
	return records, nil
}
