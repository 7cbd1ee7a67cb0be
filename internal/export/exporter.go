package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/pptx"
	"lectern/internal/render"
	"lectern/internal/services"
	"lectern/internal/templates"
)

// Options tunes an Exporter.
type Options struct {
	// MinBlobBytes is the smallest output accepted as a real package.
	MinBlobBytes int
	// MemoryConstrainedSlides is the deck size above which images are never
	// fetched. Zero disables the limit.
	MemoryConstrainedSlides int
	EmbedImages             bool
}

// OptionsFromConfig builds exporter options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinBlobBytes:            cfg.Export.MinBlobBytes,
		MemoryConstrainedSlides: cfg.Export.MemoryConstrainedSlides,
		EmbedImages:             cfg.Export.EmbedImages,
	}
}

// Request is one export call.
type Request struct {
	Title      string
	Author     string
	TemplateID string
	Records    []Record
}

// Blob is a serialized presentation.
type Blob struct {
	Data        []byte
	ContentType string
	// Strategy names the serialization that produced Data.
	Strategy string
	// Minimal is set when the bare-bones path produced the package.
	Minimal           bool
	Slides            int
	ImagePlaceholders int
}

// Exporter builds presentation packages from slide records.
type Exporter struct {
	opts       Options
	fetcher    render.ImageFetcher
	strategies []Strategy
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithStrategies replaces the serialization strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Exporter) {
		e.strategies = strategies
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// New constructs an exporter. A nil fetcher disables image embedding.
func New(opts Options, fetcher render.ImageFetcher, logger *slog.Logger, options ...Option) *Exporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Exporter{
		opts:       opts,
		fetcher:    fetcher,
		strategies: DefaultStrategies(),
		logger:     logging.NewComponentLogger(logger, "export"),
		now:        time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Export normalizes records and serializes them. When the normalized path
// fails for any reason a minimal package is built straight from the raw
// records instead.
func (e *Exporter) Export(ctx context.Context, req Request) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	if len(req.Records) == 0 {
		return Blob{}, services.Wrap(services.ErrValidation, "export", "export", "no slides to export", nil)
	}
	logger := logging.WithContext(ctx, e.logger)

	blob, primaryErr := e.primary(ctx, req)
	if primaryErr == nil {
		logger.Info("presentation exported",
			logging.String(logging.FieldEventType, "export_complete"),
			logging.Int("slides", blob.Slides),
			logging.Int("bytes", len(blob.Data)),
			logging.String("strategy", blob.Strategy),
			logging.Int("image_placeholders", blob.ImagePlaceholders),
		)
		return blob, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Blob{}, ctxErr
	}
	logging.WarnWithContext(logger, "presentation export failed; building minimal package", "export_minimal",
		logging.Error(primaryErr),
		logging.String(logging.FieldErrorHint, "check slide records for malformed fields"),
		logging.String(logging.FieldImpact, "exported deck carries titles only"),
	)

	blob, minimalErr := e.minimal(req)
	if minimalErr != nil {
		return Blob{}, services.Wrap(services.ErrExternalTool, "export", "serialize presentation", "all export paths failed",
			errors.Join(primaryErr, minimalErr))
	}
	logger.Info("minimal presentation exported",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.Int("slides", blob.Slides),
		logging.Int("bytes", len(blob.Data)),
		logging.String("strategy", blob.Strategy),
	)
	return blob, nil
}

func (e *Exporter) primary(ctx context.Context, req Request) (blob Blob, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panic: %v", r)
		}
	}()
	slides, err := Normalize(req.Records)
	if err != nil {
		return Blob{}, err
	}
	tpl, _ := templates.Resolve(req.TemplateID)
	p := e.presentation(req, tpl)
	constrained := !e.opts.EmbedImages || e.fetcher == nil ||
		(e.opts.MemoryConstrainedSlides > 0 && len(slides) > e.opts.MemoryConstrainedSlides)

	placeholders := 0
	for i, slide := range slides {
		if err := ctx.Err(); err != nil {
			return Blob{}, err
		}
		out := pptx.Slide{
			Kind:    pptx.KindContent,
			Title:   slide.Title,
			Bullets: bullets(slide),
			Notes:   slide.Notes,
		}
		if slide.Type == TypeTitle {
			out.Kind = pptx.KindTitle
			out.Bullets = nil
			if body := slide.Content; len(body) > 0 && body[0] != FallbackContent {
				out.Subtitle = body[0]
			}
		}
		if slide.ImageURL != "" {
			if constrained {
				out.ImageText = imageLabel(slide.ImageURL)
				placeholders++
			} else if img, ferr := e.fetch(ctx, slide.ImageURL, i); ferr == nil {
				out.Image = img
			} else {
				if ctx.Err() != nil {
					return Blob{}, ctx.Err()
				}
				out.ImageText = imageLabel(slide.ImageURL)
				placeholders++
			}
		}
		p.Slides = append(p.Slides, out)
	}

	data, strategy, err := serialize(p, e.strategies, e.opts.MinBlobBytes)
	if err != nil {
		return Blob{}, err
	}
	return Blob{
		Data:              data,
		ContentType:       pptx.ContentType,
		Strategy:          strategy,
		Slides:            len(p.Slides),
		ImagePlaceholders: placeholders,
	}, nil
}

// minimal rebuilds a titles-only deck from raw records without
// normalization.
func (e *Exporter) minimal(req Request) (Blob, error) {
	tpl, _ := templates.Resolve(req.TemplateID)
	p := e.presentation(req, tpl)
	for i, rec := range req.Records {
		title, _ := rec["title"].(string)
		title = strings.TrimSpace(title)
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		kind := pptx.KindContent
		if i == 0 {
			kind = pptx.KindTitle
		}
		p.Slides = append(p.Slides, pptx.Slide{Kind: kind, Title: title})
	}
	data, strategy, err := serialize(p, e.strategies, e.opts.MinBlobBytes)
	if err != nil {
		return Blob{}, err
	}
	return Blob{
		Data:        data,
		ContentType: pptx.ContentType,
		Strategy:    strategy,
		Minimal:     true,
		Slides:      len(p.Slides),
	}, nil
}

func (e *Exporter) presentation(req Request, tpl templates.Template) pptx.Presentation {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Presentation"
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = "Lectern"
	}
	return pptx.Presentation{
		Title:   title,
		Author:  author,
		Created: e.now().UTC().Truncate(time.Second),
		Theme: pptx.Theme{
			Name:       tpl.Name,
			Primary:    hex(tpl.Colors.Primary),
			Secondary:  hex(tpl.Colors.Secondary),
			Accent:     hex(tpl.Colors.Accent),
			Background: hex(tpl.Colors.Background),
			Text:       hex(tpl.Colors.Text),
		},
	}
}

func (e *Exporter) fetch(ctx context.Context, url string, index int) (*pptx.Image, error) {
	logger := logging.WithContext(services.WithSlideIndex(ctx, index), e.logger)
	img, err := e.fetcher.Fetch(ctx, url)
	if err == nil {
		var buf bytes.Buffer
		if err = png.Encode(&buf, img); err == nil {
			return &pptx.Image{Data: buf.Bytes(), Ext: "png"}, nil
		}
	}
	logging.WarnWithContext(logger, "slide image unavailable; using placeholder", "export_image_placeholder",
		logging.String("url", imageLabel(url)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the image url is reachable"),
		logging.String(logging.FieldImpact, "slide shows an image placeholder"),
	)
	return nil, err
}

func bullets(slide Slide) []string {
	lines := slide.Content
	if slide.ChartData == nil || len(slide.ChartData.Dataset) == 0 {
		return lines
	}
	if len(lines) == 1 && lines[0] == FallbackContent {
		lines = nil
	}
	out := append([]string(nil), lines...)
	for _, point := range slide.ChartData.Dataset {
		out = append(out, fmt.Sprintf("%s: %s", point.Label, formatValue(point.Value)))
	}
	return out
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func imageLabel(url string) string {
	if strings.HasPrefix(url, "data:") {
		return "Image: inline"
	}
	return "Image: " + url
}

func hex(value string) string {
	c, ok := templates.ParseHex(value)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}
