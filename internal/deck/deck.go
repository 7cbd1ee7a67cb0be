package deck

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lectern/internal/services"
)

// Deck is the input to one generation run: the slides plus the metadata and
// narration script the run needs.
type Deck struct {
	Topic           string  `yaml:"topic" json:"topic"`
	Audience        string  `yaml:"audience" json:"audience"`
	DurationMinutes float64 `yaml:"duration_minutes" json:"durationMinutes"`
	TemplateID      string  `yaml:"template" json:"template"`
	Voice           string  `yaml:"voice,omitempty" json:"voice,omitempty"`
	Script          string  `yaml:"script,omitempty" json:"script,omitempty"`
	Slides          []Slide `yaml:"slides" json:"slides"`
}

// TotalSeconds returns the webinar duration in seconds.
func (d Deck) TotalSeconds() float64 {
	return d.DurationMinutes * 60
}

// Limits bounds what a generation run accepts.
type Limits struct {
	MaxSlides      int
	MinScriptChars int
}

// Validate checks the preconditions a run enforces before any collaborator
// call is made. Violations carry services.ErrValidation.
func (d Deck) Validate(limits Limits) error {
	var problems []string
	if strings.TrimSpace(d.Topic) == "" {
		problems = append(problems, "topic is required")
	}
	if strings.TrimSpace(d.Audience) == "" {
		problems = append(problems, "audience is required")
	}
	if math.IsNaN(d.DurationMinutes) || math.IsInf(d.DurationMinutes, 0) || d.DurationMinutes <= 0 {
		problems = append(problems, "duration must be a positive number of minutes")
	}
	switch {
	case len(d.Slides) == 0:
		problems = append(problems, "at least one slide is required")
	case limits.MaxSlides > 0 && len(d.Slides) > limits.MaxSlides:
		problems = append(problems, fmt.Sprintf("%d slides exceeds the limit of %d", len(d.Slides), limits.MaxSlides))
	}
	script := strings.TrimSpace(d.Script)
	switch {
	case script == "":
		problems = append(problems, "narration script is required")
	case limits.MinScriptChars > 0 && len([]rune(script)) < limits.MinScriptChars:
		problems = append(problems, fmt.Sprintf("narration script must be at least %d characters", limits.MinScriptChars))
	}
	seen := make(map[string]int, len(d.Slides))
	for i, slide := range d.Slides {
		id := strings.TrimSpace(slide.ID)
		if id == "" {
			continue
		}
		if prev, ok := seen[id]; ok {
			problems = append(problems, fmt.Sprintf("slide id %q repeated at positions %d and %d", id, prev+1, i+1))
			continue
		}
		seen[id] = i
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "preparing", "validate deck", strings.Join(problems, "; "), nil)
}

// SpeakerNotesScript joins slide speaker notes into a narration script.
func (d Deck) SpeakerNotesScript() string {
	parts := make([]string, 0, len(d.Slides))
	for _, slide := range d.Slides {
		if notes := strings.TrimSpace(slide.SpeakerNotes); notes != "" {
			parts = append(parts, notes)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Load reads a deck from a YAML or JSON file.
func Load(path string) (Deck, error) {
	var d Deck
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read deck: %w", err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, services.Wrap(services.ErrValidation, "", "parse deck", path, err)
	}
	return d, nil
}

// Save writes a deck as YAML.
func Save(path string, d Deck) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode deck: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}
	return nil
}
