package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"imgbatch/internal/testsupport"
	"imgbatch/internal/watch"
)

const (
	testDebounce = 30 * time.Millisecond
	waitTimeout  = 5 * time.Second
	quietPeriod  = 300 * time.Millisecond
)

type harness struct {
	source string
	output string
	runs   chan struct{}
	done   chan error
	cancel context.CancelFunc
}

func startWatcher(t *testing.T, runErr error) *harness {
	t.Helper()

	base := t.TempDir()
	source := filepath.Join(base, "img")
	output := filepath.Join(source, "processed")
	if err := os.MkdirAll(output, 0o755); err != nil {
		t.Fatal(err)
	}
	return watchDirs(t, source, output, runErr)
}

func watchDirs(t *testing.T, source, output string, runErr error) *harness {
	t.Helper()

	h := &harness{
		source: source,
		output: output,
		runs:   make(chan struct{}, 16),
		done:   make(chan error, 1),
	}

	w, err := watch.New(watch.Options{
		SourceDir: h.source,
		OutputDir: h.output,
		Debounce:  testDebounce,
		Run: func(context.Context) error {
			h.runs <- struct{}{}
			return runErr
		},
	})
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(waitTimeout):
			t.Error("watcher did not stop")
		}
	})

	h.expectRun(t, "initial run")
	return h
}

func (h *harness) expectRun(t *testing.T, what string) {
	t.Helper()
	select {
	case <-h.runs:
	case err := <-h.done:
		t.Fatalf("%s: watcher exited: %v", what, err)
	case <-time.After(waitTimeout):
		t.Fatalf("%s: no run triggered", what)
	}
}

func (h *harness) expectQuiet(t *testing.T, what string) {
	t.Helper()
	select {
	case <-h.runs:
		t.Fatalf("%s: unexpected run", what)
	case <-time.After(quietPeriod):
	}
}

func TestNewSourceTriggersRun(t *testing.T) {
	h := startWatcher(t, nil)

	testsupport.WritePNG(t, filepath.Join(h.source, "logo.png"), 8, 8)
	h.expectRun(t, "new png")
}

func TestOutputDirectoryChangesAreIgnored(t *testing.T) {
	h := startWatcher(t, nil)

	testsupport.WritePNG(t, filepath.Join(h.output, "logo-400w.png"), 8, 8)
	h.expectQuiet(t, "write inside output dir")
}

func TestNonMatchingFilesAreIgnored(t *testing.T) {
	h := startWatcher(t, nil)

	if err := os.WriteFile(filepath.Join(h.source, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.expectQuiet(t, "non-png write")
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	h := startWatcher(t, nil)

	nested := filepath.Join(h.source, "icons")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	h.expectRun(t, "new directory")
	// Let the directory event settle before writing inside it.
	h.expectQuiet(t, "after directory run")

	testsupport.WritePNG(t, filepath.Join(nested, "star.png"), 8, 8)
	h.expectRun(t, "png in new directory")
}

func TestRunErrorsDoNotStopWatching(t *testing.T) {
	h := startWatcher(t, errors.New("decode failed"))

	testsupport.WritePNG(t, filepath.Join(h.source, "a.png"), 8, 8)
	h.expectRun(t, "first change")
	h.expectQuiet(t, "settle")

	testsupport.WritePNG(t, filepath.Join(h.source, "b.png"), 8, 8)
	h.expectRun(t, "second change")
}

func TestSymlinkedSourceIsWatched(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.MkdirAll(filepath.Join(real, "processed"), 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	h := watchDirs(t, link, filepath.Join(link, "processed"), nil)

	testsupport.WritePNG(t, filepath.Join(h.output, "logo-16w.png"), 8, 8)
	h.expectQuiet(t, "write inside output dir")

	testsupport.WritePNG(t, filepath.Join(h.source, "logo.png"), 8, 8)
	h.expectRun(t, "png through symlink")
}

func TestRunRequiresExistingSource(t *testing.T) {
	w, err := watch.New(watch.Options{
		SourceDir: filepath.Join(t.TempDir(), "missing"),
		Run:       func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing source directory")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := watch.New(watch.Options{SourceDir: "img"}); err == nil {
		t.Fatal("expected error without run function")
	}
	if _, err := watch.New(watch.Options{Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error without source directory")
	}
	if _, err := watch.New(watch.Options{
		SourceDir: "img",
		Pattern:   "[",
		Run:       func(context.Context) error { return nil },
	}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
