package reload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is quiet period after last change before rules are reloaded.
const DefaultDebounce = 300 * time.Millisecond

// Watcher observes directories holding rule sources and triggers reload
// once changes settle down.
type Watcher struct {
	log      *zap.Logger
	reloader *Reloader
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher creates watcher for reloader's rule sources.
func NewWatcher(log *zap.Logger, reloader *Reloader, debounce time.Duration) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create file watcher: %w", err)
	}
	return &Watcher{
		log:      log.Named("watcher"),
		reloader: reloader,
		debounce: debounce,
		fsw:      fsw,
	}, nil
}

// Run watches rule sources until context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for _, pattern := range w.reloader.Patterns() {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(filepath.Clean(pattern)))
		if err := w.addRecursive(filepath.FromSlash(base)); err != nil {
			return err
		}
	}
	w.log.Debug("Watching rule sources", zap.Strings("dirs", w.fsw.WatchList()), zap.Duration("debounce", w.debounce))

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	var (
		pending    bool
		lastChange time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				pending = true
				lastChange = time.Now()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("File watcher error", zap.Error(err))

		case <-ticker.C:
			if !pending || time.Since(lastChange) < w.debounce {
				continue
			}
			pending = false
			// errors are logged by reloader, previous generation keeps serving
			_ = w.reloader.Reload()
		}
	}
}

// handleEvent reports whether event concerns rule sources.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("Unable to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return true
		}
	}
	for _, pattern := range w.reloader.Patterns() {
		if ok, _ := doublestar.PathMatch(filepath.Clean(pattern), event.Name); ok {
			w.log.Debug("Rule source changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			return true
		}
	}
	return false
}

// addRecursive watches dir and all its subdirectories. Missing directory is
// not an error, its closest existing parent is watched instead.
func (w *Watcher) addRecursive(dir string) error {
	if dir == "" {
		dir = "."
	}
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no existing directory for '%s'", dir)
		}
		dir = parent
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("unable to watch '%s': %w", path, err)
		}
		return nil
	})
}
