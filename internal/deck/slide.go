package deck

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SlideType selects the layout archetype and body treatment for a slide.
type SlideType string

const (
	TypeTitle        SlideType = "title"
	TypeContent      SlideType = "content"
	TypeSectionBreak SlideType = "section-break"
	TypeConclusion   SlideType = "conclusion"
	TypeStats        SlideType = "stats"
	TypeVisualStory  SlideType = "visual-story"
)

// Known reports whether t is one of the defined slide types.
func (t SlideType) Known() bool {
	switch t {
	case TypeTitle, TypeContent, TypeSectionBreak, TypeConclusion, TypeStats, TypeVisualStory:
		return true
	}
	return false
}

// Label renders the type for humans, e.g. "Section Break".
func (t SlideType) Label() string {
	if t == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(t), "-", " "))
}

// Image is an illustration attached by an enhancement pass.
type Image struct {
	URL        string `yaml:"url" json:"url"`
	AltText    string `yaml:"alt_text,omitempty" json:"altText,omitempty"`
	Caption    string `yaml:"caption,omitempty" json:"caption,omitempty"`
	Provenance string `yaml:"provenance,omitempty" json:"provenance,omitempty"`
}

// Statistic is one figure in a statistics grid.
type Statistic struct {
	Value  string `yaml:"value" json:"value"`
	Label  string `yaml:"label" json:"label"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
	Trend  string `yaml:"trend,omitempty" json:"trend,omitempty"`
}

// ChartPoint is one labelled value of a chart dataset.
type ChartPoint struct {
	Label string  `yaml:"label" json:"label"`
	Value float64 `yaml:"value" json:"value"`
}

// Chart is a simple single-series dataset rendered as a bar sketch.
type Chart struct {
	Kind    string       `yaml:"kind" json:"kind"`
	Title   string       `yaml:"title,omitempty" json:"title,omitempty"`
	Dataset []ChartPoint `yaml:"dataset" json:"dataset"`
}

// Quote is a pull quote with attribution.
type Quote struct {
	Text   string `yaml:"text" json:"text"`
	Author string `yaml:"author" json:"author"`
	Role   string `yaml:"role,omitempty" json:"role,omitempty"`
}

// Style carries per-slide color and typography overrides. Empty fields
// inherit from the selected template.
type Style struct {
	Primary    string  `yaml:"primary,omitempty" json:"primary,omitempty"`
	Secondary  string  `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	Accent     string  `yaml:"accent,omitempty" json:"accent,omitempty"`
	Background string  `yaml:"background,omitempty" json:"background,omitempty"`
	Text       string  `yaml:"text,omitempty" json:"text,omitempty"`
	FontScale  float64 `yaml:"font_scale,omitempty" json:"fontScale,omitempty"`
}

// Slide is one page of a webinar deck.
type Slide struct {
	ID                  string      `yaml:"id" json:"id"`
	Type                SlideType   `yaml:"type" json:"type"`
	Title               string      `yaml:"title" json:"title"`
	Subtitle            string      `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Points              []string    `yaml:"points,omitempty" json:"points,omitempty"`
	DurationHintMinutes float64     `yaml:"duration_hint_minutes,omitempty" json:"durationHintMinutes,omitempty"`
	SpeakerNotes        string      `yaml:"speaker_notes,omitempty" json:"speakerNotes,omitempty"`
	Image               *Image      `yaml:"image,omitempty" json:"image,omitempty"`
	Statistics          []Statistic `yaml:"statistics,omitempty" json:"statistics,omitempty"`
	Chart               *Chart      `yaml:"chart,omitempty" json:"chart,omitempty"`
	Quote               *Quote      `yaml:"quote,omitempty" json:"quote,omitempty"`
	Style               *Style      `yaml:"style,omitempty" json:"style,omitempty"`
}

// HasImage reports whether the slide carries an image with a URL.
func (s Slide) HasImage() bool {
	return s.Image != nil && strings.TrimSpace(s.Image.URL) != ""
}

// HasChart reports whether the slide carries a non-empty chart dataset.
func (s Slide) HasChart() bool {
	return s.Chart != nil && len(s.Chart.Dataset) > 0
}

// HasQuote reports whether the slide carries quote text.
func (s Slide) HasQuote() bool {
	return s.Quote != nil && strings.TrimSpace(s.Quote.Text) != ""
}

// HasStatistics reports whether the slide carries at least one statistic.
func (s Slide) HasStatistics() bool {
	return len(s.Statistics) > 0
}

// PlaceholderTitle builds the title used when a slide arrives without one.
func PlaceholderTitle(t SlideType, number int) string {
	label := t.Label()
	if label == "" || t == TypeContent {
		label = "Slide"
	}
	return label + " " + strconv.Itoa(number)
}

// Prepare returns copies of slides with IDs, types, and titles filled in so
// every slide can enter the renderer. The input is not modified.
func Prepare(slides []Slide) []Slide {
	out := make([]Slide, len(slides))
	for i, slide := range slides {
		slide.Points = append([]string(nil), slide.Points...)
		if strings.TrimSpace(slide.ID) == "" {
			slide.ID = fmt.Sprintf("slide-%d", i+1)
		}
		if !slide.Type.Known() {
			slide.Type = inferType(slide, i, len(slides))
		}
		slide.Title = strings.TrimSpace(slide.Title)
		if slide.Title == "" {
			slide.Title = PlaceholderTitle(slide.Type, i+1)
		}
		out[i] = slide
	}
	return out
}

func inferType(s Slide, index, total int) SlideType {
	switch {
	case index == 0:
		return TypeTitle
	case index == total-1 && total > 1:
		return TypeConclusion
	case s.HasStatistics():
		return TypeStats
	default:
		return TypeContent
	}
}
