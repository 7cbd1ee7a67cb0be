package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"lectern/internal/assembly"
	"lectern/internal/config"
	"lectern/internal/deck"
	"lectern/internal/delivery"
	"lectern/internal/logging"
	"lectern/internal/narration"
	"lectern/internal/progress"
	"lectern/internal/services"
	"lectern/internal/templates"
)

type generateFlags struct {
	quality    string
	format     string
	resolution string
	fps        int
	template   string
	voice      string
	scriptFile string
	outputDir  string
	noSave     bool
	jsonOutput bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate <deck.yaml>",
		Short: "Render a deck and its narration into a video",
		Long: `Render every slide, synthesize the narration script, and encode both into a
video. When ffmpeg is unavailable a placeholder artifact is produced and
reported as such.

The narration script comes from --script-file, the deck's script field, or the
slides' speaker notes, in that order.`,
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
			return runGenerate(cmd, cfg, logger, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.quality, "quality", "", "Output quality: low, medium, high (default from config)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Container format: mp4 or webm (default from config)")
	cmd.Flags().StringVar(&flags.resolution, "resolution", "", "Output resolution: 720p, 1080p, 4k (default from config)")
	cmd.Flags().IntVar(&flags.fps, "fps", 0, "Frames per second (default from config)")
	cmd.Flags().StringVar(&flags.template, "template", "", "Visual template id, overriding the deck ("+strings.Join(templates.IDs(), ", ")+")")
	cmd.Flags().StringVar(&flags.voice, "voice", "", "Narration voice style, overriding the deck ("+strings.Join(narration.VoiceStyles(), ", ")+")")
	cmd.Flags().StringVar(&flags.scriptFile, "script-file", "", "Read the narration script from this file")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "Directory the finished video is saved to (default paths.output_dir)")
	cmd.Flags().BoolVar(&flags.noSave, "no-save", false, "Only report the artifact URL; do not save a local copy")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the artifact as JSON")
	return cmd
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, deckPath string, flags generateFlags) error {
	d, err := loadDeckForRun(deckPath, flags)
	if err != nil {
		return err
	}
	opts, err := deck.ParseOptions(
		firstNonEmpty(flags.quality, cfg.Video.Quality),
		firstNonEmpty(flags.format, cfg.Video.Format),
		firstNonEmpty(flags.resolution, cfg.Video.Resolution),
		firstPositive(flags.fps, cfg.Video.FPS),
	)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(runCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	printer := newProgressPrinter(cmd.ErrOrStderr(), logger)
	artifact, err := p.generator.Generate(runCtx, d, opts, printer.handle)
	printer.finish()
	if err != nil {
		var runErr *assembly.RunError
		if errors.As(err, &runErr) && !errors.Is(err, context.Canceled) {
			summary, remedy := services.UserMessage(err)
			return fmt.Errorf("%s %s\n%w", summary, remedy, err)
		}
		return err
	}

	saved := ""
	if !flags.noSave {
		saved, err = saveArtifact(runCtx, cfg, artifact, firstNonEmpty(flags.outputDir, cfg.Paths.OutputDir), delivery.Slug(d.Topic)+"."+string(opts.Format))
		if err != nil {
			logging.WarnWithContext(logger, "could not save a local copy of the video", "artifact_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "download it later with lectern download"),
				logging.String(logging.FieldImpact, "the video is only available at its artifact URL"),
			)
		}
	}

	if flags.jsonOutput {
		return writeJSON(cmd, struct {
			assembly.Artifact
			SavedPath string `json:"savedPath,omitempty"`
		}{artifact, saved})
	}
	printArtifact(cmd.OutOrStdout(), artifact, saved)
	return nil
}

func loadDeckForRun(path string, flags generateFlags) (deck.Deck, error) {
	d, err := deck.Load(path)
	if err != nil {
		return d, err
	}
	if t := strings.TrimSpace(flags.template); t != "" {
		d.TemplateID = t
	}
	if v := strings.TrimSpace(flags.voice); v != "" {
		d.Voice = v
	}
	if file := strings.TrimSpace(flags.scriptFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return d, fmt.Errorf("read script: %w", err)
		}
		d.Script = string(data)
	}
	if strings.TrimSpace(d.Script) == "" {
		d.Script = d.SpeakerNotesScript()
	}
	return d, nil
}

func printArtifact(out io.Writer, artifact assembly.Artifact, saved string) {
	rows := [][]string{
		{"Run", artifact.RunID},
		{"Provenance", string(artifact.Provenance)},
		{"Duration", clock(artifact.DurationSeconds)},
		{"Size", humanBytes(artifact.SizeBytes)},
		{"Content type", artifact.ContentType},
		{"URL", displayURL(artifact.URL)},
	}
	if saved != "" {
		rows = append(rows, []string{"Saved to", saved})
	}
	if len(artifact.NarrationGaps) > 0 {
		gaps := make([]string, len(artifact.NarrationGaps))
		for i, g := range artifact.NarrationGaps {
			gaps[i] = fmt.Sprint(g + 1)
		}
		rows = append(rows, []string{"Narration gaps", "chunks " + strings.Join(gaps, ", ")})
	}
	if artifact.PlaceholderSlides > 0 {
		rows = append(rows, []string{"Placeholder slides", fmt.Sprint(artifact.PlaceholderSlides)})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
	if artifact.Degraded() {
		fmt.Fprintln(out, "The encoder was unavailable; this artifact is a placeholder, not a playable video.")
	}
}

// displayURL shortens inline data URIs, which can be megabytes long.
func displayURL(url string) string {
	if strings.HasPrefix(url, "data:") {
		if idx := strings.Index(url, ","); idx > 0 {
			return url[:idx] + ",…"
		}
	}
	return url
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// progressPrinter renders run progress as a single live line on terminals and
// as sampled log lines elsewhere.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	live    bool
	dirty   bool
	sampler *logging.ProgressSampler
	logger  *slog.Logger
}

func newProgressPrinter(out io.Writer, logger *slog.Logger) *progressPrinter {
	return &progressPrinter{
		out:     out,
		live:    isTerminal(out),
		sampler: logging.NewProgressSampler(10),
		logger:  logger,
	}
}

func (p *progressPrinter) handle(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live {
		line := fmt.Sprintf("%3.0f%%  %-16s %s", ev.Percent, ev.Stage.Label(), ev.Message)
		if ev.ETA > 0 {
			line += fmt.Sprintf("  (eta %s)", clock(ev.ETA.Seconds()))
		}
		fmt.Fprintf(p.out, "\r\033[K%s", line)
		p.dirty = true
		return
	}
	if !p.sampler.ShouldLog(ev.Percent, string(ev.Stage)) {
		return
	}
	p.logger.Info("run progress",
		logging.String(logging.FieldEventType, "run_progress"),
		logging.String("stage", string(ev.Stage)),
		logging.Float64(logging.FieldProgressPercent, ev.Percent),
		logging.String("message", ev.Message),
	)
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live && p.dirty {
		fmt.Fprintln(p.out)
		p.dirty = false
	}
}
