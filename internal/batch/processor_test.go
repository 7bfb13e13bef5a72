package batch_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"imgbatch/internal/batch"
	"imgbatch/internal/logging"
	"imgbatch/internal/testsupport"
)

func newProcessor(t *testing.T, opts ...testsupport.ConfigOption) (*batch.Processor, batch.Settings) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	settings := batch.SettingsFromConfig(cfg)
	p, err := batch.New(settings)
	if err != nil {
		t.Fatalf("batch.New: %v", err)
	}
	return p, settings
}

func TestRunProducesWidthFormatMatrix(t *testing.T) {
	p, s := newProcessor(t)
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "logo.png"), 300, 150)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"logo-1200w.png", "logo-1200w.webp",
		"logo-400w.png", "logo-400w.webp",
		"logo-800w.png", "logo-800w.webp",
	}
	if got := testsupport.ListNames(t, s.OutputDir); !reflect.DeepEqual(got, want) {
		t.Fatalf("artifacts: got %v, want %v", got, want)
	}
	if summary.Sources != 1 || summary.ArtifactCount() != 6 {
		t.Fatalf("unexpected summary: sources=%d artifacts=%d", summary.Sources, summary.ArtifactCount())
	}
	if summary.TotalBytes() <= 0 {
		t.Fatal("expected byte total")
	}
	for _, a := range summary.Files[0].Artifacts {
		info, err := os.Stat(a.Path)
		if err != nil {
			t.Fatalf("stat %s: %v", a.Path, err)
		}
		if info.Size() != a.Bytes {
			t.Fatalf("%s: recorded %d bytes, file has %d", a.Path, a.Bytes, info.Size())
		}
	}
}

func TestRunCountsNTimesWTimesTwo(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(32, 64))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "a.png"), 50, 50)
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "nested", "b.png"), 40, 20)
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "nested", "deeper", "c.png"), 20, 40)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(testsupport.ListNames(t, s.OutputDir)); got != 3*2*2 {
		t.Fatalf("expected 12 artifacts, got %d", got)
	}
	if len(summary.Files) != 3 {
		t.Fatalf("expected 3 file results, got %d", len(summary.Files))
	}
}

func TestRunWithNoSourcesLeavesEmptyOutput(t *testing.T) {
	p, s := newProcessor(t)
	if err := os.MkdirAll(s.SourceDir, 0o755); err != nil {
		t.Fatal(err)
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sources != 0 || summary.ArtifactCount() != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := testsupport.ListNames(t, s.OutputDir); len(got) != 0 {
		t.Fatalf("expected empty output dir, got %v", got)
	}
}

func TestRunResetsStaleArtifacts(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "icon.png"), 32, 32)
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.OutputDir, "old-999w.webp"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"icon-16w.png", "icon-16w.webp"}
	if got := testsupport.ListNames(t, s.OutputDir); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRunIgnoresArtifactsInsideOutputDir(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "icon.png"), 32, 32)

	for i := 0; i < 2; i++ {
		summary, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if summary.Sources != 1 {
			t.Fatalf("run %d: expected only the original source, got %d", i, summary.Sources)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(24, 48))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "photo.png"), 64, 48)

	snapshot := func() map[string][]byte {
		out := map[string][]byte{}
		for _, name := range testsupport.ListNames(t, s.OutputDir) {
			data, err := os.ReadFile(filepath.Join(s.OutputDir, name))
			if err != nil {
				t.Fatal(err)
			}
			out[name] = data
		}
		return out
	}

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := snapshot()
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := snapshot()

	if len(first) != len(second) {
		t.Fatalf("artifact sets differ: %d vs %d", len(first), len(second))
	}
	for name, data := range first {
		if !bytes.Equal(data, second[name]) {
			t.Fatalf("%s differs between runs", name)
		}
	}
}

func TestRunSurfacesDecodeError(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "good.png"), 32, 32)
	bad := filepath.Join(s.SourceDir, "bad.png")
	testsupport.WriteCorrupt(t, bad)

	summary, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
	var fileErr *batch.FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected FileError, got %T: %v", err, err)
	}
	if fileErr.Path != bad {
		t.Fatalf("error attributed to %s, want %s", fileErr.Path, bad)
	}
	for _, f := range summary.Files {
		if f.Source == bad {
			t.Fatal("corrupt source must not be reported as completed")
		}
	}
}

func TestRunRejectsBaseNameCollisions(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "logo.png"), 32, 32)
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "alt", "logo.png"), 32, 32)

	_, err := p.Run(context.Background())
	if !errors.Is(err, batch.ErrNameCollision) {
		t.Fatalf("expected ErrNameCollision, got %v", err)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16), testsupport.WithConcurrency(1))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "a.png"), 32, 32)
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "b.png"), 32, 32)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProgressCallbackSeesEveryFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWidths(16))
	s := batch.SettingsFromConfig(cfg)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		testsupport.WritePNG(t, filepath.Join(s.SourceDir, name), 20, 20)
	}

	var mu sync.Mutex
	var seen []string
	p, err := batch.New(s, batch.WithProgress(func(res batch.FileResult) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, filepath.Base(res.Source))
	}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	sort.Strings(seen)
	if !reflect.DeepEqual(seen, []string{"a.png", "b.png", "c.png"}) {
		t.Fatalf("progress saw %v", seen)
	}
}

func TestNewRejectsEmptyWidths(t *testing.T) {
	_, err := batch.New(batch.Settings{SourceDir: "src", OutputDir: "out"})
	if !errors.Is(err, batch.ErrNoWidths) {
		t.Fatalf("expected ErrNoWidths, got %v", err)
	}
}

func TestArtifactName(t *testing.T) {
	cases := []struct {
		source string
		width  int
		ext    string
		want   string
	}{
		{"/img/logo.png", 400, "webp", "logo-400w.webp"},
		{"/img/nested/hero.banner.png", 1200, "png", "hero.banner-1200w.png"},
		{"/img/café.png", 800, "png", "café-800w.png"},
	}
	for _, tc := range cases {
		if got := batch.ArtifactName(tc.source, tc.width, tc.ext); got != tc.want {
			t.Errorf("ArtifactName(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestRunKeepsDecomposedBaseName(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16))
	decomposed := "cafe\u0301"
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, decomposed+".png"), 32, 32)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{decomposed + "-16w.png", decomposed + "-16w.webp"}
	if got := testsupport.ListNames(t, s.OutputDir); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRunProcessesNormalizationVariantsSeparately(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWidths(16))
	s := batch.SettingsFromConfig(cfg)
	composed, decomposed := "caf\u00e9", "cafe\u0301"
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, composed+".png"), 32, 32)
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, decomposed+".png"), 32, 32)

	var logs bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &logs})
	if err != nil {
		t.Fatal(err)
	}
	p, err := batch.New(s, batch.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sources != 2 || summary.ArtifactCount() != 4 {
		t.Fatalf("sources=%d artifacts=%d, want 2 and 4", summary.Sources, summary.ArtifactCount())
	}
	if got := len(testsupport.ListNames(t, s.OutputDir)); got != 4 {
		t.Fatalf("expected 4 artifacts on disk, got %d", got)
	}
	if !strings.Contains(logs.String(), "unicode normalization") {
		t.Fatalf("expected look-alike warning, got %s", logs.String())
	}
}

func TestRunWithCancelledContextKeepsOutput(t *testing.T) {
	p, s := newProcessor(t, testsupport.WithWidths(16))
	testsupport.WritePNG(t, filepath.Join(s.SourceDir, "icon.png"), 32, 32)
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	kept := filepath.Join(s.OutputDir, "icon-16w.png")
	if err := os.WriteFile(kept, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	data, err := os.ReadFile(kept)
	if err != nil {
		t.Fatalf("existing artifact removed: %v", err)
	}
	if string(data) != "previous" {
		t.Fatalf("existing artifact rewritten: %q", data)
	}
}
