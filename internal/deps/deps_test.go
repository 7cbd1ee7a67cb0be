package deps_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/deps"
	"lectern/internal/testsupport"
)

func writeStub(t *testing.T, dir, base string) string {
	t.Helper()
	path := filepath.Join(dir, executableName(base))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := deps.CheckBinaries(reqs)
	require.Len(t, results, len(reqs))
	assert.True(t, results[0].Available)
	assert.Empty(t, results[0].Detail)
	assert.False(t, results[1].Available)
	assert.Equal(t, "clearly-not-present-binary", results[1].Command)
	assert.Contains(t, results[1].Detail, "not found")
	assert.Equal(t, "command not configured", results[2].Detail)
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	results := deps.CheckBinaries(deps.Requirements(cfg))
	require.Len(t, results, 2)
	for _, status := range results {
		assert.True(t, status.Available, status.Name)
		assert.True(t, status.Optional)
	}
}

func TestCheckDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for _, status := range deps.CheckDirectories(cfg) {
		assert.True(t, status.Available, "%s: %s", status.Name, status.Detail)
	}

	blocker := filepath.Join(testsupport.BaseDir(cfg), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.Paths.OutputDir = filepath.Join(blocker, "nested")
	cfg.Paths.LogDir = ""
	results := deps.CheckDirectories(cfg)
	assert.False(t, results[1].Available)
	assert.False(t, results[2].Available)
	assert.Equal(t, "path not configured", results[2].Detail)
}

func TestResolveFFprobePrefersSibling(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg")
	ffprobe := writeStub(t, dir, "ffprobe")

	status := deps.ResolveFFprobe(ffmpeg)
	assert.True(t, status.Available)
	assert.Equal(t, ffprobe, status.Command)
}

func TestResolveFFprobeFallsBackToPath(t *testing.T) {
	tmp := t.TempDir()
	ffmpeg := writeStub(t, tmp, "ffmpeg")
	binDir := filepath.Join(tmp, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	ffprobe := writeStub(t, binDir, "ffprobe")
	t.Setenv("PATH", binDir)

	status := deps.ResolveFFprobe(ffmpeg)
	assert.True(t, status.Available)
	assert.Equal(t, ffprobe, status.Command)
}

func TestResolveFFprobeNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := deps.ResolveFFprobe(filepath.Join(t.TempDir(), "ffmpeg"))
	assert.False(t, status.Available)
	assert.NotEmpty(t, status.Detail)
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
