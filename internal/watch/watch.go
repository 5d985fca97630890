// Package watch reruns scoring when session or config files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/verte-zerg/emgscore/internal/logger"
)

// DefaultDebounce lets editors finish writing before a rescore.
const DefaultDebounce = 250 * time.Millisecond

// Run calls fn once, then again each time one of paths changes and the
// changes settle for debounce. Parent directories are watched so atomic
// saves through rename are seen. The first path is required; later paths
// whose directory does not exist are skipped. Errors from fn are logged, not
// returned. Run returns when ctx is done.
func Run(ctx context.Context, paths []string, debounce time.Duration, log *logger.Logger, fn func(context.Context) error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			log.Debug("close watcher", "error", cerr)
		}
	}()

	targets := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for i, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		dir := filepath.Dir(abs)
		if i > 0 {
			if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
				log.Debug("skipping missing directory", "path", abs)
				continue
			}
		}
		targets[abs] = struct{}{}
		dirs[dir] = struct{}{}
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing to watch")
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	trigger := func() {
		if err := fn(ctx); err != nil {
			log.Error("rescore failed", "error", err)
		}
	}
	trigger()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, watched := targets[filepath.Clean(ev.Name)]; !watched {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				log.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
				pending = time.After(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		case <-pending:
			pending = nil
			trigger()
		}
	}
}

// Memo remembers the last input hash so unchanged content is not rescored.
type Memo struct {
	mu   sync.Mutex
	last string
}

// Changed reports whether key differs from the previous call and records it.
func (m *Memo) Changed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.last {
		return false
	}
	m.last = key
	return true
}
