// Package watch re-runs a callback when preset files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options tunes a Watcher.
type Options struct {
	// Debounce coalesces bursts of writes (editors often write twice).
	Debounce time.Duration
	// PollInterval is used when fsnotify is unavailable.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Watcher monitors a set of files using fsnotify with a polling fallback.
// The parent directories are watched so that editors which replace the file
// by rename are still seen.
type Watcher struct {
	files  map[string]time.Time // path → last seen mtime
	fsw    *fsnotify.Watcher
	opts   Options
	logger *slog.Logger
}

// New prepares a watcher for paths. Watching starts with Run.
func New(paths []string, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("nothing to watch")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	w := &Watcher{files: map[string]time.Time{}, opts: opts, logger: opts.Logger}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	dirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = modTime(abs)
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Info("fsnotify unavailable, falling back to polling", "err", err)
		return w, nil
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Info("cannot watch directory, falling back to polling", "path", dir, "err", err)
			fsw.Close()
			return w, nil
		}
	}
	w.fsw = fsw
	return w, nil
}

// Polling reports whether the watcher uses polling instead of fsnotify.
func (w *Watcher) Polling() bool { return w.fsw == nil }

// Run blocks until ctx is done, calling onChange (sequentially, in path
// order) for every watched file that changed during a debounce window.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	var (
		events  <-chan fsnotify.Event
		errs    <-chan error
		tick    <-chan time.Time
		fire    <-chan time.Time
		timer   *time.Timer
		pending = map[string]struct{}{}
	)
	startPolling := func() {
		t := time.NewTicker(w.opts.PollInterval)
		tick = t.C
		context.AfterFunc(ctx, t.Stop)
	}
	if w.fsw != nil {
		events, errs = w.fsw.Events, w.fsw.Errors
		defer func() {
			if w.fsw != nil {
				w.fsw.Close()
			}
		}()
	} else {
		startPolling()
	}
	mark := func(path string) {
		pending[path] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(w.opts.Debounce)
		} else {
			timer.Reset(w.opts.Debounce)
		}
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			path := filepath.Clean(ev.Name)
			if _, ok := w.files[path]; ok {
				w.logger.Debug("preset changed", "path", path, "op", ev.Op.String())
				mark(path)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Info("fsnotify error, switching to polling", "err", err)
			w.fsw.Close()
			w.fsw = nil
			events, errs = nil, nil
			startPolling()
		case <-tick:
			for path, last := range w.files {
				if mod := modTime(path); mod.After(last) {
					w.files[path] = mod
					mark(path)
				}
			}
		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				onChange(p)
			}
		}
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
