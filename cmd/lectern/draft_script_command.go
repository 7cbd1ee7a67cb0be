package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/deck"
	"lectern/internal/scriptdraft"
)

func newDraftScriptCommand(ctx *commandContext) *cobra.Command {
	var write bool
	var outFile string
	var notesOnly bool

	cmd := &cobra.Command{
		Use:   "draft-script <deck.yaml>",
		Short: "Draft a narration script for a deck",
		Long: `Ask the configured text model for a narration script covering the deck.

The fallback model is tried once when the primary model fails. Without an LLM
API key, or when both models fail, the slides' speaker notes are used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			d, err := deck.Load(args[0])
			if err != nil {
				return err
			}

			var gen scriptdraft.Generator
			llmCfg := cfg.GetLLM()
			if !notesOnly && llmCfg.APIKey != "" {
				gen = newLLMClient(cfg)
			}
			opts := scriptdraft.OptionsFromConfig(cfg)
			draft, err := scriptdraft.New(gen, opts, logger).Draft(cmd.Context(), d)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case write:
				d.Script = draft.Script
				if err := deck.Save(args[0], d); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d-character script (%s) to %s\n", len(draft.Script), describeDraft(draft), args[0])
			case strings.TrimSpace(outFile) != "":
				if err := os.WriteFile(outFile, []byte(draft.Script+"\n"), 0o644); err != nil {
					return fmt.Errorf("write script: %w", err)
				}
				fmt.Fprintf(out, "Wrote script (%s) to %s\n", describeDraft(draft), outFile)
			default:
				fmt.Fprintln(out, draft.Script)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Store the script in the deck file")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the script to this file instead of stdout")
	cmd.Flags().BoolVar(&notesOnly, "notes-only", false, "Skip the model and join speaker notes")
	return cmd
}

func describeDraft(draft scriptdraft.Draft) string {
	if draft.Source == scriptdraft.SourceModel {
		if draft.Model != "" {
			return "model " + draft.Model
		}
		return "default model"
	}
	return "speaker notes"
}
