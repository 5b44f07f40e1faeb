// Package logging reads and tails the setup and agent stream log files
// written for each run (§6.3: logs/<runId>.log, logs/<runId>.stream.jsonl).
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTailLines is the default number of lines to read when tailing.
const DefaultTailLines = 100

// Reader reads a single log file by path.
type Reader struct {
	path string
}

// NewReader creates a Reader for the log file at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// ReadAll reads the entire log file.
func (r *Reader) ReadAll() ([]string, error) {
	return readAllLines(r.path)
}

// ReadLastN reads the last n lines from the log file.
// If n <= 0, uses DefaultTailLines.
func (r *Reader) ReadLastN(n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}
	return readLastNLines(r.path, n)
}

// Follow streams new log lines to out as they are appended, like `tail -f`.
// It blocks until ctx is cancelled.
func (r *Reader) Follow(ctx context.Context, out io.Writer, pollInterval time.Duration) error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				line, err := reader.ReadBytes('\n')
				if len(line) > 0 {
					if _, werr := out.Write(line); werr != nil {
						return fmt.Errorf("write output: %w", werr)
					}
				}
				if err != nil {
					if err == io.EOF {
						break
					}
					return fmt.Errorf("read line: %w", err)
				}
			}
		}
	}
}

// FollowWithHistory writes the last n lines, then follows new output.
func (r *Reader) FollowWithHistory(ctx context.Context, out io.Writer, n int, pollInterval time.Duration) error {
	lines, err := r.ReadLastN(n)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}

	return r.Follow(ctx, out, pollInterval)
}

func readAllLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	return lines, nil
}

// readLastNLines reads the last n lines from a file using a ring buffer.
func readLastNLines(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	ring := make([]string, n)
	idx := 0
	count := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % n
		count++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	if count == 0 {
		return nil, nil
	}
	if count < n {
		return ring[:count], nil
	}

	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = ring[(idx+i)%n]
	}
	return result, nil
}
