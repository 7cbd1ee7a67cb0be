package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/deck"
	"lectern/internal/delivery"
	"lectern/internal/export"
	"lectern/internal/logging"
	"lectern/internal/notifications"
	"lectern/internal/render"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var templateID string
	var author string
	var name string
	var dir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "export <deck.yaml>",
		Short: "Export a deck as a PowerPoint presentation",
		Long: `Write the deck as a .pptx presentation with speaker notes.

Slides are normalized first; if the full export fails a titles-only
presentation is written instead. Large decks get image placeholders in place
of embedded pictures.`,
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

			exporter := export.New(export.OptionsFromConfig(cfg), render.NewHTTPFetcher(), logger)
			blob, err := exporter.Export(cmd.Context(), export.Request{
				Title:      d.Topic,
				Author:     author,
				TemplateID: firstNonEmpty(templateID, d.TemplateID),
				Records:    export.RecordsFromDeck(d.Slides),
			})
			if err != nil {
				return err
			}

			filename := firstNonEmpty(name, delivery.Slug(d.Topic))
			if !strings.HasSuffix(strings.ToLower(filename), ".pptx") {
				filename += ".pptx"
			}
			saved, err := delivery.NewSaver(firstNonEmpty(dir, cfg.Paths.OutputDir)).Write(filename, blob.Data)
			if err != nil {
				return err
			}

			notifier := notifications.NewService(cfg)
			if err := notifier.Publish(cmd.Context(), notifications.EventExportReady, notifications.Payload{
				"file":   saved,
				"topic":  d.Topic,
				"slides": blob.Slides,
			}); err != nil {
				logging.WarnWithContext(logger, "export notification failed", "notification_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
					logging.String(logging.FieldImpact, "no push notification for this export"),
				)
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"path":              saved,
					"bytes":             len(blob.Data),
					"slides":            blob.Slides,
					"strategy":          blob.Strategy,
					"minimal":           blob.Minimal,
					"imagePlaceholders": blob.ImagePlaceholders,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported %d slides to %s (%s)\n", blob.Slides, saved, humanBytes(int64(len(blob.Data))))
			if blob.Minimal {
				fmt.Fprintln(out, "The full export failed; the presentation contains slide titles only.")
			}
			if blob.ImagePlaceholders > 0 {
				fmt.Fprintf(out, "%d images were replaced by placeholders.\n", blob.ImagePlaceholders)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "Visual template id, overriding the deck")
	cmd.Flags().StringVar(&author, "author", "", "Author recorded in the document properties")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Output file name (default derived from the topic)")
	cmd.Flags().StringVarP(&dir, "output", "o", "", "Destination directory (default paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}
