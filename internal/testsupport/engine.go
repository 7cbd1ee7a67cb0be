package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lectern/internal/engine"
	"lectern/internal/services"
)

// MemoryEngine is an in-memory multimedia engine. Exec writes a synthetic
// container to the last argv entry.
type MemoryEngine struct {
	LoadErr error
	// ExecErr fails the Exec call numbered FailExecAt (1-based), or every
	// call when FailExecAt is zero.
	ExecErr    error
	FailExecAt int
	// ProbeDuration, when positive, is reported by Probe.
	ProbeDuration float64

	mu    sync.Mutex
	files map[string][]byte
	execs [][]string
	loads int
	peak  int
}

// NewMemoryEngine constructs an empty engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{files: make(map[string][]byte)}
}

func (m *MemoryEngine) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.LoadErr != nil {
		return services.Wrap(engine.ErrUnavailable, "assembling_video", "load engine", "memory engine", m.LoadErr)
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	return nil
}

func (m *MemoryEngine) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := engine.ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	m.peak = max(m.peak, len(m.files))
	return nil
}

func (m *MemoryEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "assembling_video", "engine read", name, nil)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryEngine) DeleteFile(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

func (m *MemoryEngine) ListFiles(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryEngine) Exec(ctx context.Context, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, append([]string(nil), args...))
	if m.ExecErr != nil && (m.FailExecAt == 0 || m.FailExecAt == len(m.execs)) {
		return services.Wrap(services.ErrExternalTool, "assembling_video", "ffmpeg", "memory engine", m.ExecErr)
	}
	if len(args) == 0 {
		return nil
	}
	output := args[len(args)-1]
	var inputs []string
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			if _, ok := m.files[args[i+1]]; !ok {
				return services.Wrap(services.ErrExternalTool, "assembling_video", "ffmpeg", fmt.Sprintf("%s: No such file or directory", args[i+1]), nil)
			}
			inputs = append(inputs, args[i+1])
		}
	}
	m.files[output] = []byte(fmt.Sprintf("container(%s)<-%s", output, strings.Join(inputs, "+")))
	m.peak = max(m.peak, len(m.files))
	return nil
}

// Probe reports ProbeDuration for existing files.
func (m *MemoryEngine) Probe(_ context.Context, name string) (engine.Probe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return engine.Probe{}, services.Wrap(services.ErrNotFound, "assembling_video", "probe", name, nil)
	}
	return engine.Probe{DurationSeconds: m.ProbeDuration, SizeBytes: int64(len(data)), VideoStreams: 1, AudioStreams: 1}, nil
}

// Execs returns recorded argv lists.
func (m *MemoryEngine) Execs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.execs...)
}

// Loads counts Load calls.
func (m *MemoryEngine) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// PeakFiles is the largest number of files held at once.
func (m *MemoryEngine) PeakFiles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Put seeds a file, bypassing name validation.
func (m *MemoryEngine) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
}
