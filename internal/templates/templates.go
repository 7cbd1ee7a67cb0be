// Package templates holds the embedded slide template catalog and resolves
// template ids to concrete color, typography, and layout bundles.
package templates

import (
	_ "embed"
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"lectern/internal/deck"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Archetype is one of the four layout families every template defines.
type Archetype string

const (
	ArchetypeTitle        Archetype = "title"
	ArchetypeContent      Archetype = "content"
	ArchetypeSectionBreak Archetype = "section-break"
	ArchetypeConclusion   Archetype = "conclusion"
)

// ArchetypeFor maps a slide type to its layout family. Stats and visual-story
// slides, and anything unrecognized, use the content archetype.
func ArchetypeFor(t deck.SlideType) Archetype {
	switch t {
	case deck.TypeTitle:
		return ArchetypeTitle
	case deck.TypeSectionBreak:
		return ArchetypeSectionBreak
	case deck.TypeConclusion:
		return ArchetypeConclusion
	default:
		return ArchetypeContent
	}
}

// Colors are hex color tokens.
type Colors struct {
	Primary    string `yaml:"primary"`
	Secondary  string `yaml:"secondary"`
	Accent     string `yaml:"accent"`
	Background string `yaml:"background"`
	Text       string `yaml:"text"`
}

// Typography sizes are points at 1920x1080.
type Typography struct {
	TitleSize    float64 `yaml:"title_size"`
	SubtitleSize float64 `yaml:"subtitle_size"`
	BodySize     float64 `yaml:"body_size"`
	LineSpacing  float64 `yaml:"line_spacing"`
}

// Layout positions one archetype.
type Layout struct {
	Background string  `yaml:"background"`
	Align      string  `yaml:"align"`
	TitleY     float64 `yaml:"title_y"`
}

// Gradient reports whether the background is a two-color gradient.
func (l Layout) Gradient() bool {
	return l.Background == "gradient"
}

// Centered reports whether text is centered horizontally.
func (l Layout) Centered() bool {
	return l.Align == "center"
}

// Template is an immutable color/typography/layout bundle.
type Template struct {
	ID         string               `yaml:"id"`
	Name       string               `yaml:"name"`
	Colors     Colors               `yaml:"colors"`
	Typography Typography           `yaml:"typography"`
	Layouts    map[Archetype]Layout `yaml:"layouts"`
}

// Layout returns the archetype layout, falling back to the content layout.
func (t Template) Layout(a Archetype) Layout {
	if layout, ok := t.Layouts[a]; ok {
		return layout
	}
	return t.Layouts[ArchetypeContent]
}

// WithStyle returns a copy of the template with per-slide overrides applied.
func (t Template) WithStyle(style *deck.Style) Template {
	if style == nil {
		return t
	}
	out := t
	override := func(dst *string, value string) {
		if _, ok := ParseHex(value); ok {
			*dst = value
		}
	}
	override(&out.Colors.Primary, style.Primary)
	override(&out.Colors.Secondary, style.Secondary)
	override(&out.Colors.Accent, style.Accent)
	override(&out.Colors.Background, style.Background)
	override(&out.Colors.Text, style.Text)
	if style.FontScale > 0 {
		scale := min(max(style.FontScale, 0.5), 2)
		out.Typography.TitleSize *= scale
		out.Typography.SubtitleSize *= scale
		out.Typography.BodySize *= scale
	}
	return out
}

type catalog struct {
	Default   string     `yaml:"default"`
	Templates []Template `yaml:"templates"`
}

var (
	loadOnce  sync.Once
	loaded    catalog
	byID      map[string]Template
	errLoaded error
)

func load() error {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(catalogYAML, &loaded); err != nil {
			errLoaded = fmt.Errorf("parse template catalog: %w", err)
			return
		}
		byID = make(map[string]Template, len(loaded.Templates))
		for _, tpl := range loaded.Templates {
			byID[tpl.ID] = tpl
		}
		if _, ok := byID[loaded.Default]; !ok {
			errLoaded = fmt.Errorf("template catalog default %q is not defined", loaded.Default)
		}
	})
	return errLoaded
}

// DefaultID returns the id substituted for unknown templates.
func DefaultID() string {
	if load() != nil {
		return "modern-business"
	}
	return loaded.Default
}

// Resolve returns the template for id, substituting the default template for
// unknown or empty ids. The second value reports whether id was found.
func Resolve(id string) (Template, bool) {
	if err := load(); err != nil {
		return builtinFallback(), false
	}
	if tpl, ok := byID[strings.TrimSpace(strings.ToLower(id))]; ok {
		return tpl, true
	}
	return byID[loaded.Default], false
}

// IDs lists the catalog template ids in sorted order.
func IDs() []string {
	if load() != nil {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func builtinFallback() Template {
	layout := Layout{Background: "solid", Align: "left", TitleY: 0.12}
	return Template{
		ID:         "modern-business",
		Name:       "Modern Business",
		Colors:     Colors{Primary: "#1E3A8A", Secondary: "#3B82F6", Accent: "#F59E0B", Background: "#FFFFFF", Text: "#1F2937"},
		Typography: Typography{TitleSize: 72, SubtitleSize: 40, BodySize: 36, LineSpacing: 1.5},
		Layouts:    map[Archetype]Layout{ArchetypeContent: layout},
	}
}

// ParseHex parses "#RRGGBB" or "#RGB".
func ParseHex(value string) (color.RGBA, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, true
}

// MustColor parses a hex token, returning fallback when it is malformed.
func MustColor(value string, fallback color.RGBA) color.RGBA {
	if c, ok := ParseHex(value); ok {
		return c
	}
	return fallback
}
