package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a footage root and triggers a refresh callback when
// new segments appear. Events are debounced because the vehicle writes
// six files per minute in a burst.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func()
}

// NewWatcher creates a watcher for the footage root. onChange is invoked
// at most once per debounce window, from the watcher goroutine.
func NewWatcher(root string, onChange func(), logger *slog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		debounce: 5 * time.Second,
		logger:   logger.With("component", "watcher"),
		onChange: onChange,
	}
}

// Run blocks until ctx is done, dispatching debounced refresh callbacks.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// fsnotify does not recurse; register the root and all current
	// subdirectories, plus any directory created while running.
	if err := addRecursive(fw, w.root); err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// New event folders must be watched too.
					_ = addRecursive(fw, ev.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-fire:
			timer = nil
			w.logger.Debug("footage changed, refreshing")
			w.onChange()
		}
	}
}

// addRecursive registers dir and every subdirectory with the watcher.
// Non-directory paths are ignored.
func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return fw.Add(path)
	})
}
