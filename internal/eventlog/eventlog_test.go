package eventlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w := NewWriter(path)

	t0 := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	require.NoError(t, w.Append(t0, VerbStart, "branch=feature-x"))
	require.NoError(t, w.Append(t0.Add(time.Hour), VerbStop, ""))

	records, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, VerbStart, records[0].Verb)
	assert.Equal(t, "branch=feature-x", records[0].Details)
	assert.Equal(t, VerbStop, records[1].Verb)
	assert.Equal(t, "", records[1].Details)
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll(filepath.Join(t.TempDir(), "missing.log"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLastReturnsMostRecentMatchingVerb(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w := NewWriter(path)
	t0 := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

	require.NoError(t, w.Append(t0, VerbFetch, "first"))
	require.NoError(t, w.Append(t0.Add(time.Minute), VerbFetch, "second"))
	require.NoError(t, w.Append(t0.Add(2*time.Minute), VerbStop, ""))

	records, err := ReadAll(path)
	require.NoError(t, err)

	rec, ok := Last(records, VerbFetch)
	require.True(t, ok)
	assert.Equal(t, "second", rec.Details)

	_, ok = Last(records, VerbAttach)
	assert.False(t, ok)
}
