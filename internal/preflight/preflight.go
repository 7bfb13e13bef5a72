package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"imgbatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckSourceReadable("Source directory", cfg.Paths.SourceDir),
		CheckWritableTarget("Output directory", cfg.Paths.OutputDir),
		CheckWritableTarget("State directory", cfg.Paths.StateDir),
	}
	results = append(results, CheckEncoders(ctx, cfg.Images.WebPQuality, cfg.Images.PNGCompressionLevel)...)
	return results
}

// Err folds failed results into one error, or nil when all passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %w", errors.New(strings.Join(failed, "; ")))
}
