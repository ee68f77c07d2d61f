package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// indexableExtensions mirrors the ingest walker: only document types the
// pipeline can index produce events.
var indexableExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// DirWatcher watches a directory tree for document changes and emits
// debounced event batches. New subdirectories are added to the watch set
// as they appear.
type DirWatcher struct {
	opts      Options
	logger    *slog.Logger
	debouncer *Debouncer

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	errs     chan error
	stopOnce sync.Once
}

// NewDirWatcher creates a watcher with the given options.
func NewDirWatcher(opts Options, logger *slog.Logger) *DirWatcher {
	def := DefaultOptions()
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = def.DebounceWindow
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = def.EventBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirWatcher{
		opts:      opts,
		logger:    logger,
		debouncer: NewDebouncer(opts.DebounceWindow),
		errs:      make(chan error, 16),
	}
}

// Start begins watching root recursively. It returns once the watch set is
// established; events flow on Batches until Stop or context cancellation.
func (w *DirWatcher) Start(ctx context.Context, root string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	if err := watchTree(fsw, root); err != nil {
		fsw.Close()
		return err
	}

	go w.run(ctx, fsw)
	return nil
}

func watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *DirWatcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

func (w *DirWatcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories extend the watch set; fsnotify is not recursive.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !indexableExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	var op Operation
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// Batches returns the debounced event batch channel. Closed on Stop.
func (w *DirWatcher) Batches() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *DirWatcher) Errors() <-chan error {
	return w.errs
}

// Stop halts watching and closes the batch channel. Safe to call more
// than once.
func (w *DirWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		fsw := w.fsw
		w.mu.Unlock()
		if fsw != nil {
			err = fsw.Close()
		}
	})
	return err
}
