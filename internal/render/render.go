package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/fogleman/gg"

	"lectern/internal/deck"
	"lectern/internal/logging"
	"lectern/internal/retry"
	"lectern/internal/services"
	"lectern/internal/storage"
	"lectern/internal/templates"
)

// Surface dimensions. Every slide is drawn at this size and scaled by the
// engine to the requested output resolution.
const (
	Width  = 1920
	Height = 1080
)

const pngContentType = "image/png"

// Body identifies the treatment used for a slide's body region.
type Body string

const (
	BodyBullets    Body = "bullets"
	BodyStatistics Body = "statistics"
	BodyChart      Body = "chart"
	BodyQuote      Body = "quote"
	BodyImage      Body = "image"
)

// MaxBullets caps the bullet list drawn on one slide.
const MaxBullets = 5

// BodyFor selects the body treatment from the optional slide fields.
func BodyFor(slide deck.Slide) Body {
	switch {
	case slide.HasStatistics():
		return BodyStatistics
	case slide.HasChart():
		return BodyChart
	case slide.HasQuote():
		return BodyQuote
	case slide.HasImage():
		return BodyImage
	default:
		return BodyBullets
	}
}

// Result is the rendered image reference for one slide.
type Result struct {
	// Ref is the storage URL, or a data URI when upload was unavailable.
	Ref string
	// PNG holds the encoded raster so the engine does not refetch it.
	PNG         []byte
	Placeholder bool
	Inline      bool
}

// Renderer draws slides and persists them.
type Renderer struct {
	Store   storage.Uploader
	Fetcher ImageFetcher
	Retry   retry.Options
	Logger  *slog.Logger
}

// New constructs a renderer. A nil store keeps every slide inline.
func New(store storage.Uploader, fetcher ImageFetcher, opts retry.Options, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	return &Renderer{Store: store, Fetcher: fetcher, Retry: opts, Logger: logger}
}

// Render draws slide with tpl and returns a retrievable reference. Drawing
// failures produce a placeholder; upload failures produce a data URI. Only
// cancellation and an unrenderable placeholder surface as errors.
func (r *Renderer) Render(ctx context.Context, slide deck.Slide, tpl templates.Template, number int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ctx = services.WithSlideIndex(ctx, number-1)
	logger := logging.WithContext(ctx, r.logger())
	tpl = tpl.WithStyle(slide.Style)

	result := Result{}
	data, err := r.draw(ctx, slide, tpl, number)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logging.WarnWithContext(logger, "slide render failed; using placeholder", "slide_placeholder",
			logging.String("slide_id", slide.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check slide content and image urls"),
			logging.String(logging.FieldImpact, "slide shows title only"),
		)
		data, err = Placeholder(slide.Title, tpl, number)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "creating_slides", "render placeholder", slide.ID, err)
		}
		result.Placeholder = true
	}
	result.PNG = data

	ref, err := r.upload(ctx, slide, data, number)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logging.WarnWithContext(logger, "slide upload failed; embedding inline", "slide_inline",
			logging.String("slide_id", slide.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage configuration"),
			logging.String(logging.FieldImpact, "slide is carried as a data uri"),
		)
		ref = ""
	}
	if ref == "" {
		ref = EncodeDataURI(pngContentType, data)
		result.Inline = true
	}
	result.Ref = ref
	logger.Debug("slide rendered",
		logging.String("slide_id", slide.ID),
		logging.String("body", string(BodyFor(slide))),
		logging.Bool("placeholder", result.Placeholder),
		logging.Bool("inline", result.Inline),
		logging.Int("bytes", len(data)),
	)
	return result, nil
}

func (r *Renderer) upload(ctx context.Context, slide deck.Slide, data []byte, number int) (string, error) {
	if r.Store == nil {
		return "", nil
	}
	runID, _ := services.RunIDFromContext(ctx)
	obj := storage.Object{
		Path:        storage.ObjectPath(runID, "slides", fmt.Sprintf("slide-%03d.png", number)),
		Data:        data,
		ContentType: pngContentType,
		Upsert:      true,
	}
	opts := r.Retry
	opts.Logger = r.logger()
	return retry.Do(ctx, "upload slide "+slide.ID, opts, func(ctx context.Context) (string, error) {
		return r.Store.Upload(ctx, obj)
	})
}

func (r *Renderer) draw(ctx context.Context, slide deck.Slide, tpl templates.Template, number int) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("draw slide %s: panic: %v", slide.ID, rec)
		}
	}()
	faces, err := newFaceSet()
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	c := newCanvas(gg.NewContext(Width, Height), faces, tpl, templates.ArchetypeFor(slide.Type))
	c.background()
	cursor := c.heading(slide)
	region := c.bodyRegion(cursor)
	switch BodyFor(slide) {
	case BodyStatistics:
		c.statistics(region, slide.Statistics)
	case BodyChart:
		c.chart(region, *slide.Chart)
	case BodyQuote:
		c.quote(region, *slide.Quote)
	case BodyImage:
		c.image(ctx, region, *slide.Image, r.Fetcher, r.logger())
	default:
		c.bullets(region, slide.Points)
	}
	c.footer(number)
	return encode(c.dc)
}

func (r *Renderer) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

// Placeholder draws the title on a flat background.
func Placeholder(title string, tpl templates.Template, number int) ([]byte, error) {
	dc := gg.NewContext(Width, Height)
	dc.SetColor(templates.MustColor(tpl.Colors.Background, white))
	dc.Clear()
	faces, err := newFaceSet()
	if err != nil {
		return encode(dc)
	}
	defer faces.Close()
	dc.SetColor(templates.MustColor(tpl.Colors.Text, ink))
	dc.SetFontFace(faces.face(styleBold, positive(tpl.Typography.TitleSize, 72)))
	dc.DrawStringWrapped(title, Width/2, Height/2, 0.5, 0.5, Width-2*margin, 1.3, gg.AlignCenter)
	dc.SetFontFace(faces.face(styleRegular, 24))
	dc.DrawStringAnchored(fmt.Sprintf("%d", number), Width-margin, Height-48, 1, 0)
	return encode(dc)
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
