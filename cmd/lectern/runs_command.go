package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/history"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the generation run history",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsResetCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	runsCmd.AddCommand(newRunsClearCommand(ctx))

	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]history.Status, 0, len(statuses))
			for _, s := range statuses {
				status, err := parseStatus(s)
				if err != nil {
					return err
				}
				filter = append(filter, status)
			}
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit, filter...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				now := time.Now()
				rows := make([][]string, len(runs))
				for i, run := range runs {
					rows[i] = []string{
						shortID(run.ID),
						run.Topic,
						string(run.Status),
						runProgress(run),
						provenanceLabel(run),
						formatAge(now.Sub(run.CreatedAt)),
					}
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Topic", "Status", "Progress", "Output", "Started"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				summary, err := store.Summarize(cmd.Context())
				if err == nil {
					fmt.Fprintf(out, "%d runs: %d completed, %d failed, %d running\n", summary.Total, summary.Completed, summary.Failed, summary.Running)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (running, completed, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := findRun(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				rows := [][]string{
					{"ID", run.ID},
					{"Topic", run.Topic},
					{"Template", run.TemplateID},
					{"Slides", fmt.Sprint(run.SlideCount)},
					{"Output", fmt.Sprintf("%s %s %s", run.Format, run.Resolution, run.Quality)},
					{"Status", string(run.Status)},
					{"Progress", runProgress(run)},
				}
				if run.ArtifactURL != "" {
					rows = append(rows,
						[]string{"Artifact", displayURL(run.ArtifactURL)},
						[]string{"Duration", clock(run.DurationSeconds)},
						[]string{"Size", humanBytes(run.SizeBytes)},
						[]string{"Provenance", run.Provenance},
					)
				}
				if run.NarrationGaps > 0 {
					rows = append(rows, []string{"Narration gaps", fmt.Sprint(run.NarrationGaps)})
				}
				if run.ErrorMessage != "" {
					rows = append(rows, []string{"Error", fmt.Sprintf("%s (%s)", run.ErrorMessage, run.ErrorCategory)})
				}
				rows = append(rows, []string{"Started", run.CreatedAt.Local().Format(time.DateTime)})
				if run.CompletedAt != nil {
					rows = append(rows, []string{"Finished", run.CompletedAt.Local().Format(time.DateTime)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newRunsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Mark runs left running by a crashed process as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				n, err := store.ResetInterrupted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d interrupted runs as failed\n", n)
				return nil
			})
		},
	}
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove finished runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withHistory(func(store *history.Store) error {
				n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	return cmd
}

func newRunsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d runs\n", n)
				return nil
			})
		},
	}
}

// findRun resolves a full run id or the unique prefix shown by runs list.
func findRun(ctx context.Context, store *history.Store, id string) (*history.Run, error) {
	id = strings.TrimSpace(id)
	run, err := store.Get(ctx, id)
	if err != nil || run != nil {
		return run, err
	}
	runs, err := store.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var match *history.Run
	for _, candidate := range runs {
		if id == "" || !strings.HasPrefix(candidate.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return match, nil
}

func parseStatus(value string) (history.Status, error) {
	switch status := history.Status(strings.ToLower(strings.TrimSpace(value))); status {
	case history.StatusRunning, history.StatusCompleted, history.StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q (want running, completed, or failed)", value)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runProgress(run *history.Run) string {
	if run.Status == history.StatusCompleted {
		return "done"
	}
	label := run.Stage
	if label == "" {
		label = "-"
	}
	return fmt.Sprintf("%s %.0f%%", label, run.ProgressPercent)
}

func provenanceLabel(run *history.Run) string {
	switch {
	case run.Status == history.StatusFailed:
		return run.ErrorCategory
	case run.Provenance != "":
		return fmt.Sprintf("%s %s", run.Provenance, clock(run.DurationSeconds))
	default:
		return ""
	}
}
