package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	require.NoError(t, err)
	logger.Info("hello from lectern", logging.String("k", "v"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello from lectern")
	assert.Contains(t, string(content), "k=v")
}

func TestConsoleLoggerSubjectAndCaller(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		wantCaller bool
	}{
		{"info omits caller", "info", false},
		{"debug includes caller", "debug", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "console.log")
			logger, err := logging.New(logging.Options{
				Format:      "console",
				Level:       tt.level,
				OutputPaths: []string{logPath},
			})
			require.NoError(t, err)

			ctx := services.WithStage(services.WithRunID(context.Background(), "0123456789abcdef"), "creating_slides")
			logging.WithContext(ctx, logging.NewComponentLogger(logger, "assembly")).Info("rendering")

			content, err := os.ReadFile(logPath)
			require.NoError(t, err)
			line := string(content)
			assert.Contains(t, line, "assembly [01234567/creating_slides]: rendering")
			assert.Equal(t, tt.wantCaller, bytes.Contains(content, []byte(".go:")))
		})
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	require.Error(t, err)
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithRunID(context.Background(), "run-7")
	ctx = services.WithStage(ctx, "generating_audio")
	ctx = services.WithSlideIndex(ctx, 2)
	ctx = services.WithRequestID(ctx, "req-xyz")

	logging.WithContext(ctx, base).Info("contextual log")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "run-7", record[logging.FieldRunID])
	assert.Equal(t, "generating_audio", record[logging.FieldStage])
	assert.EqualValues(t, 2, record[logging.FieldSlideIndex])
	assert.Equal(t, "req-xyz", record[logging.FieldCorrelationID])
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "slide render failed", "slide_placeholder",
		logging.Error(errors.New("boom")),
		logging.String(logging.FieldImpact, "slide shows title only"),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "slide_placeholder", record[logging.FieldEventType])
	assert.Equal(t, "slide shows title only", record[logging.FieldImpact])
	assert.NotEmpty(t, record[logging.FieldErrorHint])
}

func TestProgressSampler(t *testing.T) {
	s := logging.NewProgressSampler(10)
	assert.True(t, s.ShouldLog(0, "preparing"))
	assert.False(t, s.ShouldLog(3, "preparing"))
	assert.True(t, s.ShouldLog(12, "preparing"))
	assert.False(t, s.ShouldLog(15, "preparing"))
	assert.True(t, s.ShouldLog(15, "generating_audio"), "stage change always logs")
	assert.True(t, s.ShouldLog(100, "generating_audio"))
	assert.False(t, s.ShouldLog(100, "generating_audio"))

	s.Reset()
	assert.True(t, s.ShouldLog(100, "generating_audio"))

	var nilSampler *logging.ProgressSampler
	assert.True(t, nilSampler.ShouldLog(50, "x"))
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := now.AddDate(0, 0, -40)

	write := func(name string, mod time.Time) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mod, mod))
		return path
	}
	active := write(logging.LogFileName, old)
	rotated := write("lectern-2026-01-01.log", old)
	fresh := write("lectern-recent.log", now)
	other := write("notes.txt", old)

	removed := logging.PruneLogs(logging.NewNop(), dir, 30, now)
	assert.Equal(t, 1, removed)
	assert.FileExists(t, active)
	assert.NoFileExists(t, rotated)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	assert.Zero(t, logging.PruneLogs(nil, dir, 0, now))
}
