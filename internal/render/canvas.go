package render

import (
	"context"
	"image/color"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"lectern/internal/deck"
	"lectern/internal/logging"
	"lectern/internal/templates"
)

const (
	margin       = 120.0
	footerHeight = 96.0
	accentBar    = 10.0
)

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink   = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
)

type rect struct {
	x, y, w, h float64
}

// canvas draws one slide using a template layout.
type canvas struct {
	dc        *gg.Context
	faces     *faceSet
	tpl       templates.Template
	archetype templates.Archetype
	layout    templates.Layout

	primary   color.Color
	secondary color.Color
	accent    color.Color
	text      color.Color
	muted     color.Color
}

func newCanvas(dc *gg.Context, faces *faceSet, tpl templates.Template, archetype templates.Archetype) *canvas {
	c := &canvas{
		dc:        dc,
		faces:     faces,
		tpl:       tpl,
		archetype: archetype,
		layout:    tpl.Layout(archetype),
		primary:   templates.MustColor(tpl.Colors.Primary, ink),
		secondary: templates.MustColor(tpl.Colors.Secondary, ink),
		accent:    templates.MustColor(tpl.Colors.Accent, ink),
		text:      templates.MustColor(tpl.Colors.Text, ink),
	}
	if c.layout.Gradient() {
		c.text = contrastOn(templates.MustColor(tpl.Colors.Primary, ink))
	}
	c.muted = fade(c.text, 0.7)
	return c
}

func (c *canvas) background() {
	if c.layout.Gradient() {
		grad := gg.NewLinearGradient(0, 0, Width, Height)
		grad.AddColorStop(0, c.primary)
		grad.AddColorStop(1, c.secondary)
		c.dc.SetFillStyle(grad)
		c.dc.DrawRectangle(0, 0, Width, Height)
		c.dc.Fill()
		return
	}
	c.dc.SetColor(templates.MustColor(c.tpl.Colors.Background, white))
	c.dc.Clear()
	if c.archetype == templates.ArchetypeContent {
		c.dc.SetColor(c.primary)
		c.dc.DrawRectangle(0, 0, Width, accentBar)
		c.dc.Fill()
	}
}

func (c *canvas) anchorX() (float64, float64, gg.Align) {
	if c.layout.Centered() {
		return Width / 2, 0.5, gg.AlignCenter
	}
	return margin, 0, gg.AlignLeft
}

// heading draws title and subtitle and returns the y just below them.
func (c *canvas) heading(slide deck.Slide) float64 {
	size := positive(c.tpl.Typography.TitleSize, 72)
	if c.archetype == templates.ArchetypeTitle || c.archetype == templates.ArchetypeSectionBreak {
		size *= 1.2
	}
	top := clampY(c.layout.TitleY) * Height
	if c.archetype != templates.ArchetypeContent {
		top -= size
	}
	x, ax, align := c.anchorX()
	width := Width - 2*margin

	c.dc.SetColor(c.textFor(c.primary))
	c.dc.SetFontFace(c.faces.face(styleBold, size))
	cursor := c.wrapped(slide.Title, x, top, ax, width, 1.15, 2, align)

	if sub := strings.TrimSpace(slide.Subtitle); sub != "" {
		subSize := positive(c.tpl.Typography.SubtitleSize, 40)
		c.dc.SetColor(c.muted)
		c.dc.SetFontFace(c.faces.face(styleRegular, subSize))
		cursor = c.wrapped(sub, x, cursor+subSize*0.5, ax, width, 1.2, 2, align)
	}
	if c.archetype == templates.ArchetypeSectionBreak {
		c.dc.SetColor(c.accent)
		barX := margin
		if c.layout.Centered() {
			barX = Width/2 - 80
		}
		c.dc.DrawRectangle(barX, cursor+24, 160, 8)
		c.dc.Fill()
		cursor += 32
	}
	return cursor
}

func (c *canvas) bodyRegion(cursor float64) rect {
	top := cursor + 48
	bottom := Height - footerHeight - 24
	if top > bottom-120 {
		top = bottom - 120
	}
	return rect{x: margin, y: top, w: Width - 2*margin, h: bottom - top}
}

// textFor picks the title color. Solid content layouts use the primary
// color; everything else uses the body text color.
func (c *canvas) textFor(primary color.Color) color.Color {
	if !c.layout.Gradient() && c.archetype == templates.ArchetypeContent {
		return primary
	}
	return c.text
}

func (c *canvas) bullets(region rect, points []string) {
	if len(points) > MaxBullets {
		points = points[:MaxBullets]
	}
	size := positive(c.tpl.Typography.BodySize, 36)
	spacing := positive(c.tpl.Typography.LineSpacing, 1.5)
	c.dc.SetFontFace(c.faces.face(styleRegular, size))
	y := region.y
	textX := region.x + size*1.2
	textWidth := region.w - size*1.2
	if c.layout.Centered() {
		c.dc.SetColor(c.text)
		for _, point := range points {
			point = strings.TrimSpace(point)
			if point == "" {
				continue
			}
			y = c.wrapped(point, Width/2, y, 0.5, region.w, spacing, 2, gg.AlignCenter) + size*0.5
			if y > region.y+region.h {
				return
			}
		}
		return
	}
	for _, point := range points {
		point = strings.TrimSpace(point)
		if point == "" {
			continue
		}
		c.dc.SetColor(c.accent)
		c.dc.DrawCircle(region.x+size*0.35, y+size*0.55, size*0.18)
		c.dc.Fill()
		c.dc.SetColor(c.text)
		y = c.wrapped(point, textX, y, 0, textWidth, spacing, 2, gg.AlignLeft) + size*0.5
		if y > region.y+region.h {
			return
		}
	}
}

func (c *canvas) statistics(region rect, stats []deck.Statistic) {
	if len(stats) > 6 {
		stats = stats[:6]
	}
	cols := min(len(stats), 3)
	rows := (len(stats) + cols - 1) / cols
	gap := 40.0
	cardW := (region.w - gap*float64(cols-1)) / float64(cols)
	cardH := math.Min((region.h-gap*float64(rows-1))/float64(rows), 320)
	valueSize := math.Min(cardH*0.38, 96)
	labelSize := positive(c.tpl.Typography.BodySize, 36) * 0.8

	for i, stat := range stats {
		col := i % cols
		row := i / cols
		x := region.x + float64(col)*(cardW+gap)
		y := region.y + float64(row)*(cardH+gap)

		c.dc.SetColor(fade(c.primary, 0.08))
		c.dc.DrawRoundedRectangle(x, y, cardW, cardH, 18)
		c.dc.Fill()
		c.dc.SetColor(c.accent)
		c.dc.DrawRectangle(x, y, 8, cardH)
		c.dc.Fill()

		cx := x + cardW/2
		c.dc.SetColor(c.accent)
		c.dc.SetFontFace(c.faces.face(styleBold, valueSize))
		value := stat.Value
		if arrow := trendArrow(stat.Trend); arrow != "" {
			value += " " + arrow
		}
		c.dc.DrawStringAnchored(value, cx, y+cardH*0.42, 0.5, 0.5)

		c.dc.SetColor(c.text)
		c.dc.SetFontFace(c.faces.face(styleRegular, labelSize))
		c.wrapped(stat.Label, cx, y+cardH*0.62, 0.5, cardW-48, 1.15, 2, gg.AlignCenter)

		if src := strings.TrimSpace(stat.Source); src != "" {
			c.dc.SetColor(c.muted)
			c.dc.SetFontFace(c.faces.face(styleItalic, labelSize*0.6))
			c.dc.DrawStringAnchored(src, cx, y+cardH-20, 0.5, 0)
		}
	}
}

func trendArrow(trend string) string {
	switch strings.ToLower(strings.TrimSpace(trend)) {
	case "up", "increase", "positive":
		return "▲"
	case "down", "decrease", "negative":
		return "▼"
	default:
		return ""
	}
}

func (c *canvas) chart(region rect, chart deck.Chart) {
	points := chart.Dataset
	if len(points) > 8 {
		points = points[:8]
	}
	labelSize := positive(c.tpl.Typography.BodySize, 36) * 0.7
	top := region.y
	if title := strings.TrimSpace(chart.Title); title != "" {
		c.dc.SetColor(c.text)
		c.dc.SetFontFace(c.faces.face(styleBold, labelSize))
		c.dc.DrawStringAnchored(title, region.x, top, 0, 1)
		top += labelSize * 1.8
	}

	maxValue := 0.0
	for _, p := range points {
		maxValue = math.Max(maxValue, p.Value)
	}
	if maxValue <= 0 {
		maxValue = 1
	}
	baseline := region.y + region.h - labelSize*1.8
	plotH := baseline - top - labelSize*1.6
	slot := region.w / float64(len(points))
	barW := slot * 0.6

	c.dc.SetColor(c.muted)
	c.dc.SetLineWidth(3)
	c.dc.DrawLine(region.x, baseline, region.x+region.w, baseline)
	c.dc.Stroke()

	c.dc.SetFontFace(c.faces.face(styleRegular, labelSize))
	for i, p := range points {
		h := math.Max(0, p.Value) / maxValue * plotH
		x := region.x + float64(i)*slot + (slot-barW)/2
		if i%2 == 0 {
			c.dc.SetColor(c.primary)
		} else {
			c.dc.SetColor(c.secondary)
		}
		c.dc.DrawRectangle(x, baseline-h, barW, h)
		c.dc.Fill()

		c.dc.SetColor(c.text)
		c.dc.DrawStringAnchored(formatValue(p.Value), x+barW/2, baseline-h-12, 0.5, 0)
		c.dc.DrawStringAnchored(truncate(p.Label, 16), x+barW/2, baseline+12, 0.5, 1)
	}
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func (c *canvas) quote(region rect, q deck.Quote) {
	size := positive(c.tpl.Typography.BodySize, 36) * 1.25
	c.dc.SetColor(fade(c.accent, 0.35))
	c.dc.SetFontFace(c.faces.face(styleBold, size*4))
	c.dc.DrawStringAnchored("“", region.x, region.y, 0, 0.8)

	c.dc.SetColor(c.text)
	c.dc.SetFontFace(c.faces.face(styleItalic, size))
	y := c.wrapped(strings.TrimSpace(q.Text), region.x+size*1.6, region.y+size*0.6, 0, region.w-size*3.2, 1.35, 4, gg.AlignLeft)

	attribution := strings.TrimSpace(q.Author)
	if role := strings.TrimSpace(q.Role); role != "" {
		if attribution != "" {
			attribution += ", "
		}
		attribution += role
	}
	if attribution != "" {
		c.dc.SetColor(c.accent)
		c.dc.SetFontFace(c.faces.face(styleBold, size*0.7))
		c.dc.DrawStringAnchored("- "+attribution, region.x+region.w-size, y+size*0.8, 1, 1)
	}
}

func (c *canvas) image(ctx context.Context, region rect, img deck.Image, fetcher ImageFetcher, logger *slog.Logger) {
	captionSize := positive(c.tpl.Typography.BodySize, 36) * 0.65
	frame := region
	if strings.TrimSpace(img.Caption) != "" {
		frame.h -= captionSize * 2
	}

	src, err := fetcher.Fetch(ctx, img.URL)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "slide image unavailable; drawing frame", "slide_image_missing",
			logging.String("url", truncate(img.URL, 80)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the image url is reachable"),
			logging.String(logging.FieldImpact, "slide shows alt text instead of the image"),
		)
		c.dc.SetColor(fade(c.primary, 0.08))
		c.dc.DrawRoundedRectangle(frame.x, frame.y, frame.w, frame.h, 18)
		c.dc.Fill()
		c.dc.SetColor(c.muted)
		c.dc.SetLineWidth(3)
		c.dc.DrawRoundedRectangle(frame.x, frame.y, frame.w, frame.h, 18)
		c.dc.Stroke()
		alt := strings.TrimSpace(img.AltText)
		if alt == "" {
			alt = "Image unavailable"
		}
		c.dc.SetFontFace(c.faces.face(styleItalic, captionSize*1.2))
		c.dc.DrawStringWrapped(alt, frame.x+frame.w/2, frame.y+frame.h/2, 0.5, 0.5, frame.w-80, 1.3, gg.AlignCenter)
	} else {
		scaled := fitImage(src, int(frame.w), int(frame.h))
		b := scaled.Bounds()
		x := frame.x + (frame.w-float64(b.Dx()))/2
		y := frame.y + (frame.h-float64(b.Dy()))/2
		c.dc.DrawImage(scaled, int(x), int(y))
	}

	if caption := strings.TrimSpace(img.Caption); caption != "" {
		c.dc.SetColor(c.muted)
		c.dc.SetFontFace(c.faces.face(styleItalic, captionSize))
		c.dc.DrawStringAnchored(truncate(caption, 120), region.x+region.w/2, region.y+region.h, 0.5, 0)
	}
}

func (c *canvas) footer(number int) {
	c.dc.SetColor(c.accent)
	c.dc.DrawRectangle(0, Height-accentBar, Width, accentBar)
	c.dc.Fill()
	c.dc.SetColor(c.muted)
	c.dc.SetFontFace(c.faces.face(styleRegular, 24))
	c.dc.DrawStringAnchored(strconv.Itoa(number), Width-margin, Height-accentBar-28, 1, 0)
}

// wrapped draws s word-wrapped within width starting at top y and returns the
// y below the last drawn line. Lines beyond maxLines are cut with an ellipsis.
func (c *canvas) wrapped(s string, x, y, ax, width, spacing float64, maxLines int, align gg.Align) float64 {
	lines := c.dc.WordWrap(s, width)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = strings.TrimRight(lines[maxLines-1], " .,;:") + "…"
	}
	_, lineH := c.dc.MeasureString("Hg")
	step := lineH * spacing
	if align == gg.AlignLeft {
		ax = 0
	}
	for i, line := range lines {
		c.dc.DrawStringAnchored(line, x, y+float64(i)*step, ax, 1)
	}
	if len(lines) == 0 {
		return y
	}
	return y + float64(len(lines)-1)*step + lineH
}

func contrastOn(bg color.RGBA) color.RGBA {
	lum := 0.2126*float64(bg.R) + 0.7152*float64(bg.G) + 0.0722*float64(bg.B)
	if lum > 150 {
		return ink
	}
	return white
}

func fade(c color.Color, alpha float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(alpha * float64(n.A)))
	return n
}

func positive(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func clampY(v float64) float64 {
	if v <= 0 || v >= 1 {
		return 0.12
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
