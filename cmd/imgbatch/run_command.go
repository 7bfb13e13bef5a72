package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"imgbatch/internal/batch"
	"imgbatch/internal/config"
	"imgbatch/internal/history"
	"imgbatch/internal/logging"
	"imgbatch/internal/preflight"
	"imgbatch/internal/runlock"
)

// batchFlags are the per-invocation overrides shared by run and watch.
type batchFlags struct {
	source      string
	output      string
	widths      []int
	webpQuality int
	pngLevel    int
	concurrency int
}

func (f *batchFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.source, "source", "", "Override paths.source_dir")
	flags.StringVar(&f.output, "output", "", "Override paths.output_dir")
	flags.IntSliceVar(&f.widths, "width", nil, "Target width in pixels (repeatable; replaces images.widths)")
	flags.IntVar(&f.webpQuality, "webp-quality", 0, "Override images.webp_quality (0-100)")
	flags.IntVar(&f.pngLevel, "png-level", 0, "Override images.png_compression_level (0-9)")
	flags.IntVar(&f.concurrency, "concurrency", 0, "Override images.concurrency (0 = unbounded)")
}

// apply returns a copy of base with changed flags layered on top.
func (f *batchFlags) apply(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	cfg := *base
	cfg.Images.Widths = append([]int(nil), base.Images.Widths...)

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Paths.SourceDir = f.source
	}
	if flags.Changed("output") {
		cfg.Paths.OutputDir = f.output
	}
	if flags.Changed("width") {
		cfg.Images.Widths = append([]int(nil), f.widths...)
	}
	if flags.Changed("webp-quality") {
		cfg.Images.WebPQuality = f.webpQuality
	}
	if flags.Changed("png-level") {
		cfg.Images.PNGCompressionLevel = f.pngLevel
	}
	if flags.Changed("concurrency") {
		cfg.Images.Concurrency = f.concurrency
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags batchFlags
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reset the output directory and render every source image",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := flags.apply(cmd, base)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("progress") {
				showProgress = isTerminal(cmd.ErrOrStderr())
			}

			if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg)); err != nil {
				return err
			}

			runner := &batchRunner{cfg: cfg, logger: logger}
			if showProgress {
				runner.progress = cmd.ErrOrStderr()
			}
			summary, err := runner.run(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar (default when stderr is a terminal)")
	return cmd
}

// batchRunner performs one locked, optionally recorded batch run.
type batchRunner struct {
	cfg    *config.Config
	logger *slog.Logger
	// progress, when set, receives a progress bar.
	progress io.Writer
}

func (r *batchRunner) run(ctx context.Context) (batch.Summary, error) {
	settings := batch.SettingsFromConfig(r.cfg)

	lock, err := runlock.Acquire(r.cfg.LockPath())
	if err != nil {
		return batch.Summary{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.WarnWithContext(r.logger, "failed to release run lock", "lock_release_failed",
				logging.String("lock", lock.Path()),
				logging.Error(err),
			)
		}
	}()

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	var (
		store  *history.Store
		record *history.Run
	)
	if r.cfg.History.Enabled {
		store, err = history.Open(r.cfg)
		if err != nil {
			return batch.Summary{}, fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		record, err = store.BeginWithID(ctx, runID, settings)
		if err != nil {
			return batch.Summary{}, fmt.Errorf("record run: %w", err)
		}
	}

	opts := []batch.Option{batch.WithLogger(r.logger)}
	var bar *progressbar.ProgressBar
	if r.progress != nil {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(r.progress),
			progressbar.OptionSetDescription("processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(65*time.Millisecond),
		)
		opts = append(opts, batch.WithProgress(func(batch.FileResult) {
			_ = bar.Add(1)
		}))
	}

	processor, err := batch.New(settings, opts...)
	if err != nil {
		return batch.Summary{}, err
	}
	if bar != nil {
		if sources, derr := processor.Discover(); derr == nil {
			bar.ChangeMax(len(sources))
		}
	}

	summary, runErr := processor.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}

	if record != nil {
		if err := store.Finish(context.WithoutCancel(ctx), record, summary, runErr); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to record run history", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run is missing from imgbatch history"),
			)
		}
	}
	return summary, runErr
}

func printSummary(out io.Writer, summary batch.Summary) {
	if summary.Sources == 0 {
		fmt.Fprintln(out, "No images to process")
		return
	}
	fmt.Fprintln(out, "Image processing complete")
	fmt.Fprintf(out, "  Sources:   %d\n", len(summary.Files))
	fmt.Fprintf(out, "  Artifacts: %d (%s)\n", summary.ArtifactCount(), humanize.Bytes(uint64(summary.TotalBytes())))
	fmt.Fprintf(out, "  Elapsed:   %s\n", summary.Duration.Round(time.Millisecond))
	if summary.RunID != "" {
		fmt.Fprintf(out, "  Run ID:    %s\n", summary.RunID)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
