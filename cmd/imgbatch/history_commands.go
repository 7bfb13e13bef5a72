package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imgbatch/internal/config"
	"imgbatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					if runs == nil {
						runs = []*history.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						string(run.Status),
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						strconv.Itoa(run.Sources),
						strconv.Itoa(run.ArtifactN),
						humanize.Bytes(uint64(run.TotalBytes)),
						formatDuration(run),
					})
				}
				fmt.Fprintln(out, renderTable(runColumns, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unsupported format %q (use table, json, or yaml)", format)
			}
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				switch format {
				case "json":
					return writeJSON(cmd, run)
				case "yaml":
					return writeYAML(cmd, run)
				}
				renderRun(cmd, run)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, or yaml")
	return cmd
}

func renderRun(cmd *cobra.Command, run *history.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Elapsed:  %s\n", formatDuration(run))
	fmt.Fprintf(out, "Source:   %s\n", run.SourceDir)
	fmt.Fprintf(out, "Output:   %s\n", run.OutputDir)
	fmt.Fprintf(out, "Widths:   %s\n", joinInts(run.Widths))
	fmt.Fprintf(out, "Sources:  %d\n", run.Sources)
	fmt.Fprintf(out, "Written:  %d (%s)\n", run.ArtifactN, humanize.Bytes(uint64(run.TotalBytes)))
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage)
	}
	if len(run.Artifacts) == 0 {
		return
	}
	rows := make([][]string, 0, len(run.Artifacts))
	for _, a := range run.Artifacts {
		rows = append(rows, []string{
			a.Path,
			strconv.Itoa(a.Width),
			a.Format,
			humanize.Bytes(uint64(a.Bytes)),
		})
	}
	fmt.Fprintln(out, renderTable(artifactColumns, rows))
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
}

func formatDuration(run *history.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.Duration().Round(time.Millisecond).String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
