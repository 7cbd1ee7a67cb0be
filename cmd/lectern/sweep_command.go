package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/engine"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove engine workspaces left behind by crashed runs",
		Long: `Remove engine workspaces under paths.work_dir that are older than the
maximum age. Workspaces whose lock is held by a live run are never removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			age := maxAge
			if age <= 0 {
				age = cfg.WorkspaceMaxAge()
			}
			result := engine.SweepStale(cmd.Context(), cfg.Paths.WorkDir, age, time.Now(), logger)

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No stale workspaces to remove")
				return nil
			}
			if len(result.Errors) > 0 {
				fmt.Fprintf(out, "Removed %d workspaces, %d errors\n", len(result.Removed), len(result.Errors))
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
				}
				return nil
			}
			fmt.Fprintf(out, "Removed %d workspaces\n", len(result.Removed))
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d workspaces in use\n", len(result.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override video.workspace_max_age_hours")
	return cmd
}
