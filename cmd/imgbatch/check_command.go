package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgbatch/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories and encoders are ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configSeen {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			} else {
				fmt.Fprintln(out, "Config: defaults (no config file found)")
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			fmt.Fprintln(out, renderTable(checkColumns, rows))
			return preflight.Err(results)
		},
	}
}
