package imagebuild

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/registry"
	"github.com/jmgilman/scad/internal/runtime"
)

type fakeRuntime struct {
	runtime.Runtime
	buildErr     error
	buildCalled  bool
	removedImage string
}

func (f *fakeRuntime) Build(ctx context.Context, cfg *runtime.BuildConfig) error {
	f.buildCalled = true
	return f.buildErr
}

func (f *fakeRuntime) RemoveImage(ctx context.Context, id string) error {
	f.removedImage = id
	return nil
}

type fakeRegistry struct {
	metadata map[string]*registry.ImageMetadata
}

func (r *fakeRegistry) GetMetadata(ctx context.Context, ref string) (*registry.ImageMetadata, error) {
	if m, ok := r.metadata[ref]; ok {
		return m, nil
	}
	return nil, registry.ErrImageNotFound
}

func (r *fakeRegistry) Exists(ctx context.Context, ref string) (bool, error) {
	_, ok := r.metadata[ref]
	return ok, nil
}

func TestExistsAndInfo(t *testing.T) {
	reg := &fakeRegistry{metadata: map[string]*registry.ImageMetadata{
		"scad-demo": {ID: "img1", Created: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
	}}
	b := New(&fakeRuntime{}, reg)

	exists, err := b.Exists(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := b.Info(context.Background(), "demo")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "scad-demo", info.Tag)
}

func TestInfoMissingReturnsNil(t *testing.T) {
	reg := &fakeRegistry{metadata: map[string]*registry.ImageMetadata{}}
	b := New(&fakeRuntime{}, reg)

	info, err := b.Info(context.Background(), "demo")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestBuildIfMissingSkipsExisting(t *testing.T) {
	reg := &fakeRegistry{metadata: map[string]*registry.ImageMetadata{"scad-demo": {ID: "img1"}}}
	rt := &fakeRuntime{}
	b := New(rt, reg)

	tag, err := b.BuildIfMissing(context.Background(), "demo", ".", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "scad-demo", tag)
	assert.False(t, rt.buildCalled)
}

func TestBuildIfMissingBuildsWhenAbsent(t *testing.T) {
	reg := &fakeRegistry{metadata: map[string]*registry.ImageMetadata{}}
	rt := &fakeRuntime{}
	b := New(rt, reg)

	_, err := b.BuildIfMissing(context.Background(), "demo", ".", io.Discard)
	require.NoError(t, err)
	assert.True(t, rt.buildCalled)
}

func TestBuildWrapsBuildFailed(t *testing.T) {
	rt := &fakeRuntime{buildErr: runtime.ErrBuildFailed}
	b := New(rt, &fakeRegistry{metadata: map[string]*registry.ImageMetadata{}})

	err := b.Build(context.Background(), "demo", ".", io.Discard)
	assert.True(t, errors.Is(err, ErrBuildFailed))
}

func TestPruneOldSkipsWhenSame(t *testing.T) {
	rt := &fakeRuntime{}
	b := New(rt, &fakeRegistry{})
	b.PruneOld(context.Background(), "img1", "img1")
	assert.Empty(t, rt.removedImage)
}

func TestPruneOldRemovesPrevious(t *testing.T) {
	rt := &fakeRuntime{}
	b := New(rt, &fakeRegistry{})
	b.PruneOld(context.Background(), "img1", "img2")
	assert.Equal(t, "img1", rt.removedImage)
}
