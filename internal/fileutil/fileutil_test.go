package fileutil_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/fileutil"
)

func TestCopyVerified(t *testing.T) {
	src := filepath.Join(t.TempDir(), "final.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video-bytes"), 0o644))

	var out bytes.Buffer
	n, err := fileutil.CopyVerified(src, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "video-bytes", out.String())
}

func TestCopyVerifiedRejectsDirectoryAndMissing(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	_, err := fileutil.CopyVerified(dir, &out)
	assert.Error(t, err)

	_, err = fileutil.CopyVerified(filepath.Join(dir, "absent"), &out)
	assert.Error(t, err)
}
