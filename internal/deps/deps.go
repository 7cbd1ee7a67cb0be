package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"lectern/internal/config"
)

// Requirement defines an external dependency Lectern relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries video assembly uses. Both are optional:
// without ffmpeg runs produce placeholder artifacts, and without ffprobe the
// allocated timeline length is reported instead of the probed duration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Video.FFmpegBinary,
			Description: "Encodes slideshows and muxes narration",
			Optional:    true,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Video.FFprobeBinary,
			Description: "Verifies encoded video duration",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckDirectories reports whether each configured directory exists (or can
// be created) and accepts writes.
func CheckDirectories(cfg *config.Config) []Status {
	dirs := []struct {
		name, path, description string
	}{
		{"Work directory", cfg.Paths.WorkDir, "Engine workspaces"},
		{"Output directory", cfg.Paths.OutputDir, "Downloads and exports"},
		{"Log directory", cfg.Paths.LogDir, "Run logs"},
		{"State directory", cfg.Paths.StateDir, "Run history"},
	}
	results := make([]Status, 0, len(dirs))
	for _, d := range dirs {
		status := Status{Name: d.name, Command: d.path, Description: d.description}
		if err := probeWritable(d.path); err != nil {
			status.Detail = err.Error()
		} else {
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

func probeWritable(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return errors.New("path not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	f, err := os.CreateTemp(dir, ".lectern-probe-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// ResolveFFprobe reports the ffprobe binary paired with ffmpegCommand.
//
// Static ffmpeg builds ship ffprobe in the same directory, so an ffprobe next
// to the resolved ffmpeg binary wins; otherwise "ffprobe" is resolved from
// PATH.
func ResolveFFprobe(ffmpegCommand string) Status {
	result := Status{
		Name:        "FFprobe",
		Description: "Verifies encoded video duration",
		Optional:    true,
	}

	ffmpegBinary := strings.TrimSpace(ffmpegCommand)
	if ffmpegBinary != "" {
		if resolved, err := exec.LookPath(ffmpegBinary); err == nil {
			candidate := siblingBinary(resolved, "ffprobe")
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if probePath, err := exec.LookPath("ffprobe"); err == nil {
		result.Command = probePath
		result.Available = true
		return result
	}

	result.Command = "ffprobe"
	result.Detail = fmt.Sprintf("binary %q not found", "ffprobe")
	return result
}

func siblingBinary(path, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(path), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
