package workspace

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"tailor/internal/logging"
)

// placeholderPage is shown while edits are computed so concurrent readers
// never see a half-edited page.
const placeholderPage = `'use client'

export default function LoadingPersonalization() {
  return (
    <div className="flex items-center justify-center min-h-screen">
      <div className="text-center">
        <div className="animate-spin rounded-full h-12 w-12 border-b-2 border-gray-900 mx-auto"></div>
        <p className="mt-4 text-lg">Personalizing your experience...</p>
      </div>
    </div>
  );
}
`

// Guard snapshots the entry page, substitutes the placeholder view, and
// guarantees the snapshot can be restored on failure. The entry page is
// a single shared mutable resource: one guard at a time.
type Guard struct {
	path string

	mu       sync.Mutex
	snapshot string
	engaged  bool

	// conflicted is atomic: the watcher goroutine sets it while the
	// disarm path holds mu and waits for that goroutine to exit.
	conflicted atomic.Bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewGuard creates a guard for the entry page file.
func NewGuard(path string) *Guard {
	return &Guard{path: path}
}

// Engage captures the original content and writes the placeholder. The
// snapshot is taken before any byte changes, so Restore always has the
// true original. A watcher is armed so writes from outside the run are
// detected and flagged.
func (g *Guard) Engage() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.engaged {
		return fmt.Errorf("guard already engaged for %s", g.path)
	}

	content, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			// No entry page means nothing to guard.
			logging.WorkspaceDebug("no entry page at %s, guard is a no-op", g.path)
			return nil
		}
		return fmt.Errorf("failed to snapshot %s: %w", g.path, err)
	}

	g.snapshot = string(content)
	if err := StageWrite(g.path, placeholderPage); err != nil {
		g.snapshot = ""
		return err
	}
	g.engaged = true
	g.conflicted.Store(false)
	g.armWatcher()

	logging.Workspace("guard engaged on %s (%d bytes snapshotted)", g.path, len(content))
	return nil
}

// armWatcher starts an fsnotify watcher on the entry page. External
// writes during the run do not abort anything, but they mark the run
// conflicted so callers can distrust the tree.
func (g *Guard) armWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WorkspaceWarn("conflict watcher unavailable: %v", err)
		return
	}
	if err := watcher.Add(g.path); err != nil {
		logging.WorkspaceWarn("conflict watcher could not watch %s: %v", g.path, err)
		watcher.Close()
		return
	}

	g.watcher = watcher
	g.done = make(chan struct{})
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
					g.conflicted.Store(true)
					logging.WorkspaceWarn("external write to %s while guard engaged", g.path)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-g.done:
				return
			}
		}
	}()
}

func (g *Guard) disarmWatcherLocked() {
	if g.watcher == nil {
		return
	}
	close(g.done)
	g.watcher.Close()
	g.wg.Wait()
	g.watcher = nil
	g.done = nil
}

// Conflicted reports whether something outside the run wrote the entry
// page while the guard was engaged.
func (g *Guard) Conflicted() bool {
	return g.conflicted.Load()
}

// Publish writes the run's own personalized content to the entry page.
// The conflict watcher is disarmed first so the run's write is not
// mistaken for an external one. The snapshot stays intact: Restore
// still brings back the true original.
func (g *Guard) Publish(content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.engaged {
		g.disarmWatcherLocked()
	}
	return StageWrite(g.path, content)
}

// Restore puts the true original snapshot back. Used on the failure
// path; idempotent.
func (g *Guard) Restore() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.engaged {
		return nil
	}
	g.disarmWatcherLocked()
	if err := StageWrite(g.path, g.snapshot); err != nil {
		return fmt.Errorf("failed to restore %s: %w", g.path, err)
	}
	g.engaged = false
	g.snapshot = ""
	logging.Workspace("guard restored original %s", g.path)
	return nil
}

// Release discards the snapshot, leaving whatever content the run wrote.
// Used on the success path when the personalized content is already on
// disk; idempotent. If the run never rewrote the entry page, the
// snapshot is put back so the placeholder does not leak.
func (g *Guard) Release(entryPageRewritten bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.engaged {
		return nil
	}
	g.disarmWatcherLocked()
	if !entryPageRewritten {
		if err := StageWrite(g.path, g.snapshot); err != nil {
			return fmt.Errorf("failed to reinstate %s: %w", g.path, err)
		}
	}
	g.engaged = false
	g.snapshot = ""
	logging.WorkspaceDebug("guard released on %s (rewritten=%v)", g.path, entryPageRewritten)
	return nil
}

// Snapshot returns the engaged snapshot content, empty when not engaged.
func (g *Guard) Snapshot() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot
}
