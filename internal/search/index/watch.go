package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rualca/librarian-agent/internal/logger"
)

// DefaultDebounce is how long Watch waits for a burst of edits to settle.
const DefaultDebounce = 2 * time.Second

// Watch calls onChange once edits to *.md files in dirs have been quiet for
// debounce. Missing dirs are skipped. Watch returns when ctx is done or the
// watcher fails; errors from onChange are logged and watching continues.
func Watch(ctx context.Context, dirs []string, debounce time.Duration, onChange func(context.Context) error, log *slog.Logger) error {
	log = logger.OrNop(log)
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating vault watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			log.Warn("cannot watch folder", "dir", d, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no folders to watch")
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("vault change", "file", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(debounce)
			pending = true
		case <-timer.C:
			pending = false
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error("index update after change failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("vault watcher error: %w", err)
		}
	}
}
