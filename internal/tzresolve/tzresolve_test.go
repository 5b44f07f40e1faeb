package tzresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromTimezoneFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timezone")
	require := os.WriteFile(path, []byte("America/New_York\n"), 0o644)
	assert.NoError(t, require)
	assert.Equal(t, "America/New_York", fromTimezoneFile(path))
}

func TestFromTimezoneFileMissing(t *testing.T) {
	assert.Equal(t, "", fromTimezoneFile(filepath.Join(t.TempDir(), "nope")))
}

func TestFromLocaltimeSymlink(t *testing.T) {
	dir := t.TempDir()
	zoneinfo := filepath.Join(dir, "zoneinfo", "Europe", "Paris")
	assert.NoError(t, os.MkdirAll(filepath.Dir(zoneinfo), 0o755))
	assert.NoError(t, os.WriteFile(zoneinfo, []byte{}, 0o644))

	link := filepath.Join(dir, "localtime")
	assert.NoError(t, os.Symlink(zoneinfo, link))

	assert.Equal(t, "Europe/Paris", fromLocaltimeSymlink(link))
}

func TestFromLocaltimeSymlinkNotASymlink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localtime")
	assert.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	assert.Equal(t, "", fromLocaltimeSymlink(path))
}

func TestResolveReturnsNonEmpty(t *testing.T) {
	// Resolve reads real host paths; we only assert it never panics and
	// returns a non-empty string, since /etc/timezone presence varies by
	// test environment.
	tz := Resolve()
	assert.NotEmpty(t, tz)
}
