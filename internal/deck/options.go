package deck

import (
	"fmt"
	"strings"

	"lectern/internal/services"
)

// Quality selects the encoder effort and bitrate tier.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Format selects the output container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// MIMEType returns the container media type.
func (f Format) MIMEType() string {
	if f == FormatWebM {
		return "video/webm"
	}
	return "video/mp4"
}

// Resolution selects the output frame size.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
	Resolution4K    Resolution = "4k"
)

// Dimensions returns the frame width and height.
func (r Resolution) Dimensions() (int, int) {
	switch r {
	case Resolution720p:
		return 1280, 720
	case Resolution4K:
		return 3840, 2160
	default:
		return 1920, 1080
	}
}

// GenerationOptions is the immutable output configuration of one run.
type GenerationOptions struct {
	Quality    Quality    `json:"quality"`
	Format     Format     `json:"format"`
	Resolution Resolution `json:"resolution"`
	FPS        int        `json:"fps"`
}

// ParseOptions normalizes and validates raw option strings.
func ParseOptions(quality, format, resolution string, fps int) (GenerationOptions, error) {
	opts := GenerationOptions{
		Quality:    Quality(strings.ToLower(strings.TrimSpace(quality))),
		Format:     Format(strings.ToLower(strings.TrimSpace(format))),
		Resolution: Resolution(strings.ToLower(strings.TrimSpace(resolution))),
		FPS:        fps,
	}
	return opts, opts.Validate()
}

// Validate reports unsupported option values.
func (o GenerationOptions) Validate() error {
	switch o.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return invalidOption("quality", string(o.Quality))
	}
	switch o.Format {
	case FormatMP4, FormatWebM:
	default:
		return invalidOption("format", string(o.Format))
	}
	switch o.Resolution {
	case Resolution720p, Resolution1080p, Resolution4K:
	default:
		return invalidOption("resolution", string(o.Resolution))
	}
	if o.FPS < 1 || o.FPS > 60 {
		return invalidOption("fps", fmt.Sprint(o.FPS))
	}
	return nil
}

func invalidOption(name, value string) error {
	return services.Wrap(services.ErrValidation, "preparing", "options", fmt.Sprintf("unsupported %s %q", name, value), nil)
}
