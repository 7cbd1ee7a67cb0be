package export

import (
	"fmt"
	"strconv"
	"strings"

	"lectern/internal/deck"
	"lectern/internal/services"
)

// SlideType is the export classification of a slide.
type SlideType string

const (
	TypeTitle      SlideType = "title"
	TypeContent    SlideType = "content"
	TypeImage      SlideType = "image"
	TypeChart      SlideType = "chart"
	TypeConclusion SlideType = "conclusion"
)

// FallbackContent is the body of a slide that carries no text at all.
const FallbackContent = "Content to be added"

// Slide is the canonical export form of one slide.
type Slide struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Content   []string    `json:"content"`
	Notes     string      `json:"notes,omitempty"`
	ImageURL  string      `json:"imageUrl,omitempty"`
	ChartData *deck.Chart `json:"chartData,omitempty"`
	Type      SlideType   `json:"type"`
}

// Record is a loosely shaped slide as it arrives from decks, drafts, and
// older exports.
type Record map[string]any

// Record returns the normalized slide as a record. Normalizing it again
// yields the same slide.
func (s Slide) Record() Record {
	rec := Record{
		"id":      s.ID,
		"title":   s.Title,
		"content": append([]string(nil), s.Content...),
		"type":    string(s.Type),
	}
	if s.Notes != "" {
		rec["notes"] = s.Notes
	}
	if s.ImageURL != "" {
		rec["imageUrl"] = s.ImageURL
	}
	if s.ChartData != nil {
		rec["chartData"] = s.ChartData
	}
	return rec
}

// RecordsFromDeck converts deck slides into records.
func RecordsFromDeck(slides []deck.Slide) []Record {
	records := make([]Record, len(slides))
	for i, slide := range slides {
		rec := Record{
			"id":    slide.ID,
			"type":  string(slide.Type),
			"title": slide.Title,
		}
		if slide.Subtitle != "" {
			rec["subtitle"] = slide.Subtitle
		}
		if len(slide.Points) > 0 {
			rec["points"] = append([]string(nil), slide.Points...)
		}
		if len(slide.Statistics) > 0 && len(slide.Points) == 0 {
			stats := make([]string, len(slide.Statistics))
			for j, stat := range slide.Statistics {
				stats[j] = strings.TrimSpace(stat.Value + " " + stat.Label)
			}
			rec["content"] = stats
		}
		if slide.SpeakerNotes != "" {
			rec["speakerNotes"] = slide.SpeakerNotes
		}
		if slide.HasImage() {
			rec["image"] = map[string]any{"url": slide.Image.URL, "altText": slide.Image.AltText}
		}
		if slide.HasChart() {
			rec["chart"] = slide.Chart
		}
		if slide.HasQuote() && rec["points"] == nil && rec["content"] == nil {
			quote := fmt.Sprintf("%q", slide.Quote.Text)
			if slide.Quote.Author != "" {
				quote += ", " + slide.Quote.Author
			}
			rec["content"] = []string{quote}
		}
		records[i] = rec
	}
	return records
}

// Normalize maps records to canonical slides. Body text prefers points,
// then content, then subtitle, then FallbackContent. Type is decided by
// position first and then by media: the first slide is the title, the last
// the conclusion, otherwise image, chart, or content.
func Normalize(records []Record) ([]Slide, error) {
	slides := make([]Slide, len(records))
	for i, rec := range records {
		slide, err := normalizeOne(rec, i, len(records))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "export", "normalize", fmt.Sprintf("slide %d", i+1), err)
		}
		slides[i] = slide
	}
	return slides, nil
}

func normalizeOne(rec Record, index, total int) (Slide, error) {
	if rec == nil {
		return Slide{}, fmt.Errorf("record is empty")
	}
	var s Slide
	var err error
	if s.ID, err = stringField(rec, "id"); err != nil {
		return Slide{}, err
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("slide-%d", index+1)
	}
	if s.Title, err = stringField(rec, "title"); err != nil {
		return Slide{}, err
	}
	if s.Title == "" {
		s.Title = fmt.Sprintf("Slide %d", index+1)
	}
	if s.Content, err = body(rec); err != nil {
		return Slide{}, err
	}
	if s.Notes, err = firstString(rec, "notes", "speakerNotes", "speaker_notes"); err != nil {
		return Slide{}, err
	}
	if s.ImageURL, err = imageURL(rec); err != nil {
		return Slide{}, err
	}
	if s.ChartData, err = chart(rec); err != nil {
		return Slide{}, err
	}
	s.Type = classify(index, total, s)
	return s, nil
}

func classify(index, total int, s Slide) SlideType {
	switch {
	case index == 0:
		return TypeTitle
	case index == total-1:
		return TypeConclusion
	case s.ImageURL != "":
		return TypeImage
	case s.ChartData != nil && len(s.ChartData.Dataset) > 0:
		return TypeChart
	default:
		return TypeContent
	}
}

func body(rec Record) ([]string, error) {
	for _, key := range []string{"points", "content"} {
		lines, err := stringList(rec, key)
		if err != nil {
			return nil, err
		}
		if len(lines) > 0 {
			return lines, nil
		}
	}
	subtitle, err := stringField(rec, "subtitle")
	if err != nil {
		return nil, err
	}
	if subtitle != "" {
		return []string{subtitle}, nil
	}
	return []string{FallbackContent}, nil
}

func stringField(rec Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case fmt.Stringer:
		return strings.TrimSpace(val.String()), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%s: unsupported value of type %T", key, v)
	}
}

func firstString(rec Record, keys ...string) (string, error) {
	for _, key := range keys {
		s, err := stringField(rec, key)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}

// stringList accepts a list of strings, a list of arbitrary scalars, or a
// newline-separated string. Blank lines are dropped.
func stringList(rec Record, key string) ([]string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	var raw []string
	switch val := v.(type) {
	case string:
		raw = strings.Split(val, "\n")
	case []string:
		raw = val
	case []any:
		raw = make([]string, 0, len(val))
		for i, item := range val {
			s, err := stringField(Record{"item": item}, "item")
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: unsupported value of type %T", key, i, item)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported value of type %T", key, v)
	}
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func imageURL(rec Record) (string, error) {
	url, err := stringField(rec, "imageUrl")
	if err != nil || url != "" {
		return url, err
	}
	switch img := rec["image"].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(img), nil
	case map[string]any:
		return stringField(Record(img), "url")
	case *deck.Image:
		if img == nil {
			return "", nil
		}
		return strings.TrimSpace(img.URL), nil
	default:
		return "", fmt.Errorf("image: unsupported value of type %T", img)
	}
}

func chart(rec Record) (*deck.Chart, error) {
	v, ok := rec["chartData"]
	if !ok || v == nil {
		v = rec["chart"]
	}
	switch c := v.(type) {
	case nil:
		return nil, nil
	case *deck.Chart:
		if c == nil {
			return nil, nil
		}
		out := *c
		out.Dataset = append([]deck.ChartPoint(nil), c.Dataset...)
		return &out, nil
	case deck.Chart:
		out := c
		out.Dataset = append([]deck.ChartPoint(nil), c.Dataset...)
		return &out, nil
	case map[string]any:
		return chartFromMap(c)
	default:
		return nil, fmt.Errorf("chart: unsupported value of type %T", v)
	}
}

func chartFromMap(m map[string]any) (*deck.Chart, error) {
	kind, err := stringField(Record(m), "kind")
	if err != nil {
		return nil, err
	}
	title, err := stringField(Record(m), "title")
	if err != nil {
		return nil, err
	}
	out := &deck.Chart{Kind: kind, Title: title}
	points, _ := m["dataset"].([]any)
	for i, p := range points {
		entry, ok := p.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("chart dataset[%d]: unsupported value of type %T", i, p)
		}
		label, err := stringField(Record(entry), "label")
		if err != nil {
			return nil, err
		}
		value, _ := entry["value"].(float64)
		out.Dataset = append(out.Dataset, deck.ChartPoint{Label: label, Value: value})
	}
	return out, nil
}
