package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"imgbatch/internal/preflight"
	"imgbatch/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run once, then rerun whenever source images change",
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
			if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg)); err != nil {
				return err
			}

			runner := &batchRunner{cfg: cfg, logger: logger}
			watcher, err := watch.New(watch.Options{
				SourceDir: cfg.Paths.SourceDir,
				OutputDir: cfg.Paths.OutputDir,
				Pattern:   cfg.Images.Pattern,
				Debounce:  time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond,
				Logger:    logger,
				Run: func(runCtx context.Context) error {
					summary, err := runner.run(runCtx)
					if err != nil {
						return err
					}
					printSummary(cmd.OutOrStdout(), summary)
					return nil
				},
			})
			if err != nil {
				return err
			}
			return watcher.Run(cmd.Context())
		},
	}

	flags.register(cmd)
	return cmd
}
