package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"lectern/internal/services"
)

// ErrUnavailable marks an engine that could not be loaded.
var ErrUnavailable = errors.New("multimedia engine unavailable")

// Engine is a transcoder exposing a per-instance virtual filesystem and an
// ffmpeg-style command interface. Names passed to the filesystem methods are
// flat file names inside the instance workspace.
type Engine interface {
	// Load prepares the engine. It is called lazily before first use and
	// is safe to call repeatedly.
	Load(ctx context.Context) error
	WriteFile(ctx context.Context, name string, data []byte) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	DeleteFile(ctx context.Context, name string) error
	ListFiles(ctx context.Context) ([]string, error)
	// Exec runs one transcoder invocation with argv relative to the workspace.
	Exec(ctx context.Context, args []string) error
}

// Prober is implemented by engines that can inspect an output container.
type Prober interface {
	Probe(ctx context.Context, name string) (Probe, error)
}

// Probe is the container metadata read back after encoding.
type Probe struct {
	DurationSeconds float64
	SizeBytes       int64
	VideoStreams    int
	AudioStreams    int
}

// ValidateName rejects names that would escape the workspace.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return services.Wrap(services.ErrValidation, "assembling_video", "engine file", fmt.Sprintf("invalid file name %q", name), nil)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || path.Clean(name) != name || strings.HasPrefix(name, "-") {
		return services.Wrap(services.ErrValidation, "assembling_video", "engine file", fmt.Sprintf("invalid file name %q", name), nil)
	}
	return nil
}
