package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher is an fsnotify-backed Watcher. New directories created under
// the root are added to the watch set as they appear.
type FSWatcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	errs      chan error
	stopCh    chan struct{}
	root      string

	mu      sync.Mutex
	stopped bool
}

var _ Watcher = (*FSWatcher)(nil)

func New(opts Options) (*FSWatcher, error) {
	opts = opts.withDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &FSWatcher{
		fsw:       fsw,
		debouncer: newDebouncer(opts.DebounceWindow, opts.BufferSize),
		errs:      make(chan error, 8),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start blocks, dispatching events until the context ends or Stop is
// called.
func (w *FSWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	w.root = abs

	if err := w.addRecursive(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}
	rel = filepath.ToSlash(rel)
	if skipPath(rel) {
		return
	}

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			_ = w.fsw.Add(ev.Name)
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // chmod and friends
	}

	if isDir {
		return
	}
	w.debouncer.add(Change{Path: rel, Op: op})
}

func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return w.fsw.Add(path)
		}
		if skipPath(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// skipPath filters out VCS internals and spall's own workspace marker.
func skipPath(rel string) bool {
	if rel == "." || rel == "" {
		return true
	}
	for _, dir := range []string{".git", ".spall"} {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.stop()
	return w.fsw.Close()
}

func (w *FSWatcher) Batches() <-chan []Change {
	return w.debouncer.output()
}

func (w *FSWatcher) Errors() <-chan error {
	return w.errs
}
