// Package watch reruns the batch pipeline when source images change.
//
// The source tree is watched recursively with fsnotify. The output directory
// and hidden entries are never watched, so artifacts written by a run do not
// trigger the next one. Bursts of events collapse into a single run after a
// quiet period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"imgbatch/internal/fileutil"
	"imgbatch/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// RunFunc performs one batch run.
type RunFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	SourceDir string
	OutputDir string
	Pattern   string
	Debounce  time.Duration
	Run       RunFunc
	Logger    *slog.Logger
}

// Watcher triggers RunFunc for relevant changes under SourceDir.
type Watcher struct {
	root     string
	exclude  string
	pattern  string
	debounce time.Duration
	run      RunFunc
	logger   *slog.Logger
}

// New validates options and constructs a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Run == nil {
		return nil, errors.New("watch requires a run function")
	}
	if strings.TrimSpace(opts.SourceDir) == "" {
		return nil, errors.New("watch requires a source directory")
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "**/*.png"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	exclude := ""
	if opts.OutputDir != "" {
		exclude = fileutil.Resolve(opts.OutputDir)
	}
	return &Watcher{
		root:     fileutil.Resolve(opts.SourceDir),
		exclude:  exclude,
		pattern:  pattern,
		debounce: debounce,
		run:      opts.Run,
		logger:   logging.NewComponentLogger(opts.Logger, "watch"),
	}, nil
}

// Run performs an initial batch, then reruns after each settled burst of
// changes until ctx is cancelled. Errors from individual runs are logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch source directory: %s is not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes",
		logging.String("source_dir", w.root),
		logging.Int("directories", len(fsw.WatchList())),
		logging.Duration("debounce", w.debounce),
	)

	w.runOnce(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watch stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(fsw, event) {
				w.logger.Debug("change detected",
					logging.String("path", event.Name),
					logging.String("op", event.Op.String()),
				)
				timer.Reset(w.debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "changes may be missed until the next event"),
				logging.String(logging.FieldImpact, "watch continues"),
			)
		case <-timer.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := w.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		logging.ErrorWithContext(w.logger, "image processing failed", "batch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the reported file; the next change retries the run"),
			logging.String(logging.FieldImpact, "output directory may be incomplete"),
		)
	}
}

// relevant reports whether event should schedule a run. New directories are
// added to the watch as a side effect.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	if w.excluded(path) || strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(fsw, path); err != nil {
				logging.WarnWithContext(w.logger, "failed to watch new directory", "watch_add_failed",
					logging.String("path", path),
					logging.Error(err),
				)
			}
			return true
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if slices.Contains(fsw.WatchList(), path) {
			return true
		}
	}

	if !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && (w.excluded(path) || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) excluded(path string) bool {
	return w.exclude != "" && fileutil.Within(path, w.exclude)
}
