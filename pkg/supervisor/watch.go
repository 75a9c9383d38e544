package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

// Watch restarts the service when the document changes on disk. It blocks
// until ctx is done. Without WithReload it returns immediately.
func (s *Supervisor) Watch(ctx context.Context) error {
	if !s.reload {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory: atomic writes replace the file by rename
	dir := filepath.Dir(s.document)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.logger.Info("watching document for changes", "dir", dir, "debounce", s.reloadDebounce)

	target := filepath.Clean(s.document)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}

			s.logger.Debug("document changed", "op", event.Op)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(s.reloadDebounce, func() {
				s.reloadIfChanged(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// reloadIfChanged restarts unless the document matches the last start attempt.
func (s *Supervisor) reloadIfChanged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := os.ReadFile(s.document)
	if err != nil {
		s.logger.Warn("reload skipped, document unreadable", "error", err)
		return
	}

	s.mu.RLock()
	attempted := s.attemptedHash
	s.mu.RUnlock()
	if workspace.Digest(doc) == attempted {
		s.logger.Debug("reload skipped, document unchanged")
		return
	}

	s.logger.Info("document changed, reloading")
	if err := s.restart(ctx, s.reloadTimeout); err != nil {
		s.logger.Error("reload failed", "error", err)
	}
}
