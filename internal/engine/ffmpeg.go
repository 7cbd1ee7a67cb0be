package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"lectern/internal/logging"
	"lectern/internal/services"
)

const (
	workspacePrefix = "engine-"
	lockFileName    = ".lock"
	stderrTailBytes = 2048
)

// CommandRunner executes external binaries.
type CommandRunner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Options configures an FFmpeg engine.
type Options struct {
	Binary      string
	ProbeBinary string
	// WorkDir holds per-instance workspaces.
	WorkDir string
	Logger  *slog.Logger
	Runner  CommandRunner
}

// FFmpeg runs the ffmpeg binary against a private workspace directory. The
// workspace is flock-held for the instance lifetime so sweeps never remove a
// live workspace.
type FFmpeg struct {
	opts   Options
	logger *slog.Logger
	runner CommandRunner

	mu      sync.Mutex
	loaded  bool
	loadErr error
	binary  string
	dir     string
	lock    *flock.Flock
}

// NewFFmpeg constructs an engine. Nothing touches disk until Load.
func NewFFmpeg(opts Options) *FFmpeg {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.ProbeBinary) == "" {
		opts.ProbeBinary = "ffprobe"
	}
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{opts: opts, runner: runner, logger: logging.NewComponentLogger(logger, "engine")}
}

// Load resolves the binary and creates the locked workspace. A failed load is
// remembered; the instance stays unavailable.
func (f *FFmpeg) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return nil
	}
	if f.loadErr != nil {
		return f.loadErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.loadErr = f.load()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	logging.WithContext(ctx, f.logger).Debug("engine loaded",
		logging.String("binary", f.binary),
		logging.String("workspace", f.dir),
	)
	return nil
}

func (f *FFmpeg) load() error {
	binary, err := f.runner.LookPath(f.opts.Binary)
	if err != nil {
		return services.Wrap(ErrUnavailable, "assembling_video", "load engine", fmt.Sprintf("binary %q not found", f.opts.Binary), err)
	}
	root := strings.TrimSpace(f.opts.WorkDir)
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, workspacePrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(ErrUnavailable, "assembling_video", "load engine", "create workspace", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		_ = os.RemoveAll(dir)
		if err == nil {
			err = errors.New("workspace lock held")
		}
		return services.Wrap(ErrUnavailable, "assembling_video", "load engine", "lock workspace", err)
	}
	f.binary = binary
	f.dir = dir
	f.lock = lock
	return nil
}

// Dir returns the workspace directory, empty before Load.
func (f *FFmpeg) Dir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir
}

func (f *FFmpeg) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return "", services.Wrap(ErrUnavailable, "assembling_video", "engine file", "engine not loaded", nil)
	}
	return filepath.Join(f.dir, name), nil
}

// WriteFile stores data in the workspace.
func (f *FFmpeg) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("engine write %s: %w", name, err)
	}
	return nil
}

// ReadFile returns a workspace file.
func (f *FFmpeg) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "assembling_video", "engine read", name, err)
		}
		return nil, fmt.Errorf("engine read %s: %w", name, err)
	}
	return data, nil
}

// DeleteFile removes a workspace file. Missing files are not an error.
func (f *FFmpeg) DeleteFile(_ context.Context, name string) error {
	target, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("engine delete %s: %w", name, err)
	}
	return nil
}

// ListFiles lists workspace files, excluding the lock file.
func (f *FFmpeg) ListFiles(context.Context) ([]string, error) {
	dir := f.Dir()
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("engine list: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == lockFileName {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exec runs ffmpeg in the workspace.
func (f *FFmpeg) Exec(ctx context.Context, args []string) error {
	dir := f.Dir()
	if dir == "" {
		return services.Wrap(ErrUnavailable, "assembling_video", "engine exec", "engine not loaded", nil)
	}
	logger := logging.WithContext(ctx, f.logger)
	logger.Debug("engine exec", logging.String("args", strings.Join(args, " ")))
	output, err := f.runner.Run(ctx, dir, f.binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "assembling_video", "ffmpeg", tail(output), err)
	}
	return nil
}

// Probe inspects a workspace file with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, name string) (Probe, error) {
	target, err := f.path(name)
	if err != nil {
		return Probe{}, err
	}
	result, err := Inspect(ctx, f.runner, f.opts.ProbeBinary, target)
	if err != nil {
		return Probe{}, err
	}
	return Probe{
		DurationSeconds: result.DurationSeconds(),
		SizeBytes:       result.SizeBytes(),
		VideoStreams:    result.VideoStreamCount(),
		AudioStreams:    result.AudioStreamCount(),
	}, nil
}

// Close releases the workspace lock and removes the workspace.
func (f *FFmpeg) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return nil
	}
	f.loaded = false
	var errs []error
	if f.lock != nil {
		if err := f.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock workspace: %w", err))
		}
	}
	if err := os.RemoveAll(f.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove workspace: %w", err))
	}
	f.dir = ""
	return errors.Join(errs...)
}

func tail(output []byte) string {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) > stderrTailBytes {
		trimmed = trimmed[len(trimmed)-stderrTailBytes:]
	}
	if len(trimmed) == 0 {
		return "ffmpeg failed"
	}
	return string(trimmed)
}
