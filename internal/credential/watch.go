package credential

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch watches the store's token directory for changes made outside
// this process (another wrd-server instance clearing a token, an admin
// script revoking access) and invokes onRotate with the affected
// session ID whenever a token file is removed or rewritten, so a live
// Controller can drop a now-stale in-memory handle instead of trying to
// reuse a token the backend no longer has. Watch blocks until ctx is
// cancelled; callers run it in its own goroutine.
//
// Grounded on the retry-ticker fsnotify loop in the teacher's
// ClaudeJSONLWatcher (api/pkg/desktop/claude_jsonl_watcher.go): the
// watch target may not exist yet at startup, so a failed initial Add is
// retried on a timer rather than treated as fatal.
func (s *Store) Watch(ctx context.Context, onRotate func(sessionID string)) error {
	if s.tokenDir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	add := func() { _ = watcher.Add(s.tokenDir) }
	add()

	retry := time.NewTicker(5 * time.Second)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry.C:
			add()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".bin") {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			sessionID := strings.TrimSuffix(filepath.Base(event.Name), ".bin")
			if onRotate != nil {
				onRotate(sessionID)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("token directory watch error", "error", err)
		}
	}
}
