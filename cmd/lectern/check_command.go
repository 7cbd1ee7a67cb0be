package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/config"
	"lectern/internal/deps"
	"lectern/internal/stage"
	"lectern/internal/storage"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipRemote bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check binaries, directories, and collaborator health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if len(statuses) > 1 && !statuses[1].Available {
				statuses[1] = deps.ResolveFFprobe(cfg.Video.FFmpegBinary)
			}
			statuses = append(statuses, deps.CheckDirectories(cfg)...)
			rows := make([][]string, 0, len(statuses))
			blocking := 0
			for _, s := range statuses {
				if !s.Available && !s.Optional {
					blocking++
				}
				rows = append(rows, []string{s.Name, checkMark(s.Available, s.Optional), s.Command, firstNonEmpty(s.Detail, s.Description)})
			}

			if !skipRemote {
				probeCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				probes, err := collaboratorProbes(cfg)
				if err != nil {
					return err
				}
				for _, h := range stage.RunAll(probeCtx, probes) {
					if !h.Ready && h.Required {
						blocking++
					}
					rows = append(rows, []string{h.Name, checkMark(h.Ready, !h.Required), "", firstNonEmpty(h.Detail, "healthy")})
				}
			}

			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Command", "Detail"}, rows, nil))
			if blocking > 0 {
				return fmt.Errorf("%d required checks failed", blocking)
			}
			fmt.Fprintln(out, "Ready to generate")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRemote, "offline", false, "Skip collaborator health checks that call remote services")
	return cmd
}

func collaboratorProbes(cfg *config.Config) ([]stage.Probe, error) {
	store, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}
	llmCfg := cfg.GetLLM()
	probes := []stage.Probe{
		{Name: "Speech", Checker: newSpeechClient(cfg), Required: true},
		{Name: "Storage", Checker: store, Required: true},
	}
	if llmCfg.APIKey != "" {
		probes = append(probes, stage.Probe{Name: "LLM", Checker: newLLMClient(cfg)})
	}
	return probes, nil
}

func checkMark(ok, optional bool) string {
	switch {
	case ok:
		return "ok"
	case optional:
		return "missing (optional)"
	default:
		return "FAILED"
	}
}
