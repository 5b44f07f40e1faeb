package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLog(t *testing.T, dir string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, "run.log")

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestReaderReadAll(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"line1", "line2", "line3", "line4", "line5"}
	path := createTestLog(t, dir, lines)

	result, err := NewReader(path).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, lines, result)
}

func TestReaderReadAllEmpty(t *testing.T) {
	dir := t.TempDir()
	path := createTestLog(t, dir, []string{})

	result, err := NewReader(path).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestReaderReadAllNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := NewReader(filepath.Join(dir, "nonexistent.log")).ReadAll()
	assert.Error(t, err)
}

func TestReaderReadLastN(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"line1", "line2", "line3", "line4", "line5", "line6", "line7", "line8", "line9", "line10"}
	path := createTestLog(t, dir, lines)
	reader := NewReader(path)

	t.Run("last 3 lines", func(t *testing.T) {
		result, err := reader.ReadLastN(3)
		require.NoError(t, err)
		assert.Equal(t, []string{"line8", "line9", "line10"}, result)
	})

	t.Run("request more than available", func(t *testing.T) {
		result, err := reader.ReadLastN(100)
		require.NoError(t, err)
		assert.Equal(t, lines, result)
	})

	t.Run("default when n <= 0", func(t *testing.T) {
		result, err := reader.ReadLastN(0)
		require.NoError(t, err)
		assert.Equal(t, lines, result)
	})
}

func TestReaderReadLastNFewerThanN(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"only", "three", "lines"}
	path := createTestLog(t, dir, lines)

	result, err := NewReader(path).ReadLastN(10)
	require.NoError(t, err)
	assert.Equal(t, lines, result)
}

func TestReaderFollow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	logFile, err := os.Create(path)
	require.NoError(t, err)

	reader := NewReader(path)
	output := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- reader.Follow(ctx, output, 50*time.Millisecond)
	}()

	time.Sleep(100 * time.Millisecond)

	logFile.WriteString("new line 1\n")
	logFile.WriteString("new line 2\n")
	logFile.Sync()

	err = <-done
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Contains(t, output.String(), "new line 1\n")
	assert.Contains(t, output.String(), "new line 2\n")

	logFile.Close()
}

func TestReaderFollowCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := createTestLog(t, dir, []string{"initial"})

	reader := NewReader(path)
	output := &bytes.Buffer{}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- reader.Follow(ctx, output, 50*time.Millisecond)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderFollowWithHistory(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"line1", "line2", "line3", "line4", "line5"}
	path := createTestLog(t, dir, lines)

	reader := NewReader(path)
	output := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- reader.FollowWithHistory(ctx, output, 3, 50*time.Millisecond)
	}()

	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	f.WriteString("line6\n")
	f.Sync()
	f.Close()

	<-done

	result := output.String()
	assert.Contains(t, result, "line3\n")
	assert.Contains(t, result, "line4\n")
	assert.Contains(t, result, "line5\n")
	assert.Contains(t, result, "line6\n")
	assert.NotContains(t, result, "line1\n")
	assert.NotContains(t, result, "line2\n")
}

func TestReadLastNLinesLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.log")

	var lines []string
	for i := 0; i < 1000; i++ {
		lines = append(lines, strings.Repeat("x", 100))
	}
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := readLastNLines(path, 10)
	require.NoError(t, err)
	assert.Len(t, result, 10)
	for _, line := range result {
		assert.Equal(t, strings.Repeat("x", 100), line)
	}
}
