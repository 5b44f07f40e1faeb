package creds

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/runtime"
)

func writeCreds(t *testing.T, path string, expiresAt time.Time) {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"oauth": map[string]any{"expiresAt": expiresAt.UnixMilli()},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

type fakeRuntime struct {
	runtime.Runtime
	container  *runtime.Container
	getErr     error
	copyCalled bool
	copyErr    error
}

func (f *fakeRuntime) Get(ctx context.Context, id string) (*runtime.Container, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.container, nil
}

func (f *fakeRuntime) CopyTo(ctx context.Context, id, hostPath, containerPath string) error {
	f.copyCalled = true
	return f.copyErr
}

func TestCheckValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	writeCreds(t, path, time.Now().Add(4*time.Hour))

	p := New(path, nil)
	status := p.Check()
	assert.True(t, status.Valid)
	assert.InDelta(t, 4, status.HoursRemaining, 0.1)
}

func TestCheckExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	writeCreds(t, path, time.Now().Add(-time.Hour))

	p := New(path, nil)
	assert.False(t, p.Check().Valid)
}

func TestCheckMissingFileNeverErrors(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.False(t, p.Check().Valid)
}

func TestRefreshRequiresValidCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	writeCreds(t, path, time.Now().Add(-time.Hour))

	p := New(path, &fakeRuntime{})
	_, err := p.Refresh(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrCredentialsExpired)
}

func TestRefreshRequiresRunningContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	writeCreds(t, path, time.Now().Add(4*time.Hour))

	rt := &fakeRuntime{container: &runtime.Container{Status: runtime.StatusStopped}}
	p := New(path, rt)
	_, err := p.Refresh(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrContainerNotRunning)
}

func TestRefreshCopiesCredentialsIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	writeCreds(t, path, time.Now().Add(4*time.Hour))

	rt := &fakeRuntime{container: &runtime.Container{Status: runtime.StatusRunning}}
	p := New(path, rt)
	hours, err := p.Refresh(context.Background(), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 4, hours, 0.1)
	assert.True(t, rt.copyCalled)
}
