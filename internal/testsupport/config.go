package testsupport

import (
	"path/filepath"
	"testing"

	"imgbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a finalized config seeded with unique temp directories
// per test: sources under <tmp>/img, output under <tmp>/img/processed, and
// state under <tmp>/state. Options run before finalization.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "img")
	cfgVal.Paths.OutputDir = filepath.Join(base, "img", "processed")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Finalize(); err != nil {
		t.Fatalf("finalize test config: %v", err)
	}
	return builder.cfg
}

// WithWidths overrides the target widths.
func WithWidths(widths ...int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.Widths = widths
	}
}

// WithConcurrency overrides the file concurrency limit.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.Concurrency = n
	}
}

// WithHistoryDisabled turns off the run history store.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
