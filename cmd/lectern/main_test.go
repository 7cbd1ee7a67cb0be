package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/config"
	"lectern/internal/render"
	"lectern/internal/testsupport"
)

const testDeck = `topic: Digital Marketing
audience: Small business owners
duration_minutes: 2
template: modern-business
script: |
  Welcome to this short session on digital marketing. Today we cover search,
  social media, and email, and how they work together for a small business.
slides:
  - title: Digital Marketing
    subtitle: A practical tour
    speaker_notes: Welcome to the session.
  - title: Channels
    points: [Search, Social, Email]
  - title: Questions
    speaker_notes: Thanks for watching.
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	deckPath   string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"
	cfg.Video.FFmpegBinary = "lectern-missing-ffmpeg"
	cfg.Video.FFprobeBinary = "lectern-missing-ffprobe"
	for _, fn := range mutate {
		fn(cfg)
	}
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "config.toml")
	data, err := toml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	deckPath := filepath.Join(base, "deck.yaml")
	require.NoError(t, os.WriteFile(deckPath, []byte(testDeck), 0o644))

	return &cliTestEnv{cfg: cfg, configPath: configPath, deckPath: deckPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--env-file", ""}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func speechServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-audio"))
	}))
	t.Cleanup(server.Close)
	return server
}

func withSpeechURL(url string) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.Speech.BaseURL = url
	}
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample configuration")
	assert.FileExists(t, target)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	assert.ErrorContains(t, err, "already exists")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[speech]")
	assert.Contains(t, out, "****")
}

func TestTimingCommandRendersTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"timing", env.deckPath, "--minutes", "60"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Channels")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "1:00:00")
}

func TestDraftScriptFromNotes(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"draft-script", "--notes-only", env.deckPath}, env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the session.\n\nThanks for watching.\n", out)
}

func TestExportWritesPresentation(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"export", env.deckPath}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 3 slides")

	data, err := os.ReadFile(filepath.Join(env.cfg.Paths.OutputDir, "digital_marketing.pptx"))
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))
}

func TestDownloadCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, []string{"download", "-o", dir, "-n", "Final Cut.mp4", render.EncodeDataURI("video/mp4", []byte("movie"))}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "Final Cut.mp4"))

	_, _, err = runCLI(t, []string{"download", "-o", dir, "http://example.com/a.mp4"}, env.configPath)
	assert.Error(t, err)

	_, _, err = runCLI(t, []string{"download", "-o", dir, "file:///etc/passwd"}, env.configPath)
	assert.Error(t, err)
}

func TestGenerateFallsBackToPlaceholderAndRecordsRun(t *testing.T) {
	server := speechServer(t)
	env := setupCLITestEnv(t, withSpeechURL(server.URL))

	out, _, err := runCLI(t, []string{"generate", "--resolution", "720p", env.deckPath}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "placeholder")
	assert.FileExists(t, filepath.Join(env.cfg.Paths.OutputDir, "digital_marketing.mp4"))

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Digital Marketing")
	assert.Contains(t, out, "1 runs: 1 completed")
}

func TestGenerateRejectsEmptyDeck(t *testing.T) {
	env := setupCLITestEnv(t)
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("topic: Nothing\naudience: nobody\nduration_minutes: 1\nslides: []\n"), 0o644))

	_, _, err := runCLI(t, []string{"generate", empty}, env.configPath)
	assert.Error(t, err)
}

func TestCheckOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check", "--offline"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "missing (optional)")
	assert.Contains(t, out, "Ready to generate")
}

func TestLogsFiltersByRun(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, "lectern.log")
	require.NoError(t, os.MkdirAll(env.cfg.Paths.LogDir, 0o755))
	content := "2026-10-15 10:00:00 INFO assembly [run11111]: run started\n" +
		"2026-10-15 10:00:01 INFO assembly [run22222]: run started\n" +
		"2026-10-15 10:00:02 INFO assembly [run11111/render]: slides rendered\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	out, _, err := runCLI(t, []string{"logs", "--run", "run11111"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "slides rendered")
	assert.NotContains(t, out, "run22222")

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15 10:00:02 INFO assembly [run11111/render]: slides rendered\n", out)
}
