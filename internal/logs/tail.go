package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	defaultPoll  = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Options narrows and sizes a read.
type Options struct {
	// Lines bounds the initial read; zero or less returns no history.
	Lines int
	// RunID keeps only lines stamped with this run id.
	RunID string
}

// Result holds the lines read and the offset a follower should resume from.
type Result struct {
	Lines  []string
	Offset int64
}

// Matches reports whether line belongs to runID in either the console or the
// JSON log format. Console lines carry only the first eight characters of the
// id, so a prefix of at least that length matches. An empty runID matches
// every line.
func Matches(line, runID string) bool {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return true
	}
	if strings.Contains(line, `"run_id":"`+runID) {
		return true
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return strings.Contains(line, "["+short+"]") || strings.Contains(line, "["+short+"/")
}

// Last returns up to opts.Lines trailing lines of path that match opts.RunID.
// A missing file yields no lines and offset zero.
func Last(path string, opts Options) (Result, error) {
	file, err := open(path)
	if file == nil || err != nil {
		return Result{}, err
	}
	defer file.Close()

	limit := opts.Lines
	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Result{}, fmt.Errorf("seek log file: %w", err)
		}
		return Result{Offset: offset}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scan(file, func(line string) {
		if !Matches(line, opts.RunID) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return Result{}, err
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines[i] = ring[(start+i)%limit]
	}
	return Result{Lines: lines, Offset: offset}, nil
}

// Follow polls path from offset and passes matching new lines to emit until
// ctx ends. When the file shrinks below offset it is read again from the
// start. The returned error is ctx.Err() on a normal stop.
func Follow(ctx context.Context, path string, offset int64, runID string, poll time.Duration, emit func([]string)) error {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, lines, err := readFrom(path, offset, runID)
		if err != nil {
			return err
		}
		offset = next
		if len(lines) > 0 {
			emit(lines)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, runID string) (int64, []string, error) {
	file, err := open(path)
	if file == nil || err != nil {
		return 0, nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, nil, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, nil, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	read, err := scan(file, func(line string) {
		if Matches(line, runID) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return offset, nil, err
	}
	return offset + read, lines, nil
}

// scan feeds complete lines to fn and returns the bytes consumed. A trailing
// partial line is left for the next read.
func scan(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}
