// Package fileutil copies stored artifacts with integrity checks.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// CopyVerified streams src into dst, which must already be open for writing,
// and checks that the bytes written match the source by size and SHA-256. It
// returns the number of bytes copied. The caller owns dst and removes it on
// error.
func CopyVerified(src string, dst io.Writer) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("source %s is a directory", src)
	}

	srcHash := sha256.New()
	dstHash := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, dstHash), io.TeeReader(in, srcHash))
	if err != nil {
		return written, fmt.Errorf("copy %s: %w", src, err)
	}
	if written != info.Size() {
		return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if !bytes.Equal(srcHash.Sum(nil), dstHash.Sum(nil)) {
		return written, fmt.Errorf("copy hash mismatch: %s changed during copy", src)
	}
	return written, nil
}
