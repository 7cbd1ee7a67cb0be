package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"lectern/internal/logging"
)

// SweepResult contains the outcome of a stale workspace sweep.
type SweepResult struct {
	Removed []string
	Skipped []string
	Errors  []SweepError
}

// SweepError pairs a workspace path with its cleanup error.
type SweepError struct {
	Path  string
	Error error
}

// SweepStale removes engine workspaces under workDir older than maxAge whose
// lock is not held. Live workspaces are skipped regardless of age.
func SweepStale(ctx context.Context, workDir string, maxAge time.Duration, now time.Time, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	if logger == nil {
		logger = logging.NewNop()
	}
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return result
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: workDir, Error: err})
		}
		return result
	}
	cutoff := now.Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workspacePrefix) {
			continue
		}
		dirPath := filepath.Join(workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		lock := flock.New(filepath.Join(dirPath, lockFileName))
		locked, err := lock.TryLock()
		if err != nil || !locked {
			result.Skipped = append(result.Skipped, dirPath)
			continue
		}
		removeErr := os.RemoveAll(dirPath)
		_ = lock.Unlock()
		if removeErr != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: removeErr})
			logger.Warn("failed to remove stale engine workspace",
				logging.String("path", dirPath),
				logging.Error(removeErr),
				logging.String(logging.FieldEventType, "workspace_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check paths.work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale engine workspace",
			logging.String("path", dirPath),
			logging.Duration("age", now.Sub(info.ModTime())),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}
	return result
}
