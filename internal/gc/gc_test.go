package gc

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/runtime"
)

type fakeRuntime struct {
	runtime.Runtime
	containers   []runtime.Container
	removed      []string
	removedImage []string
}

func (f *fakeRuntime) List(ctx context.Context, filter runtime.ListFilter) ([]runtime.Container, error) {
	return f.containers, nil
}

func (f *fakeRuntime) Remove(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeRuntime) RemoveImage(ctx context.Context, id string) error {
	f.removedImage = append(f.removedImage, id)
	return nil
}

func TestCollectFindsOrphanContainerWithNoRunDir(t *testing.T) {
	paths := layout.New(t.TempDir())
	rt := &fakeRuntime{containers: []runtime.Container{
		{Name: "scad-ghost-notag-Mar05-0930", Image: "scad-ghost", Status: runtime.StatusRunning, Labels: map[string]string{"runId": "ghost-notag-Mar05-0930"}},
	}}
	c := New(paths, rt)

	report, err := c.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, report.OrphanContainers, "scad-ghost-notag-Mar05-0930")
	assert.Empty(t, rt.removed, "non-force collect must not remove anything")
}

func TestCollectFindsDeadRunDirWithoutContainerOrWorktrees(t *testing.T) {
	paths := layout.New(t.TempDir())
	runID := "demo-notag-Mar05-0930"
	_, err := paths.EnsureRunDir(runID)
	require.NoError(t, err)

	c := New(paths, &fakeRuntime{})
	report, err := c.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, report.DeadRunDirs, runID)
}

func TestCollectSkipsRunDirWithWorktrees(t *testing.T) {
	paths := layout.New(t.TempDir())
	runID := "demo-notag-Mar05-0930"
	require.NoError(t, os.MkdirAll(paths.WorktreePath(runID, "main"), 0o750))

	c := New(paths, &fakeRuntime{})
	report, err := c.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.NotContains(t, report.DeadRunDirs, runID)
}

func TestCollectForceRemovesOrphanContainer(t *testing.T) {
	paths := layout.New(t.TempDir())
	rt := &fakeRuntime{containers: []runtime.Container{
		{Name: "scad-ghost-notag-Mar05-0930", Image: "scad-ghost", Status: runtime.StatusStopped, Labels: map[string]string{"runId": "ghost-notag-Mar05-0930"}},
	}}
	c := New(paths, rt)

	_, err := c.Collect(context.Background(), true)
	require.NoError(t, err)
	assert.Contains(t, rt.removed, "scad-ghost-notag-Mar05-0930")
}

func TestCollectFlagsUnusedImageOnlyReferencedByOrphan(t *testing.T) {
	paths := layout.New(t.TempDir())
	rt := &fakeRuntime{containers: []runtime.Container{
		{Name: "scad-stopped", Image: "scad-demo", Status: runtime.StatusStopped, Labels: map[string]string{"runId": "demo-x"}},
	}}
	c := New(paths, rt)

	report, err := c.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, report.UnusedImages, "scad-demo")
}

func TestCollectDoesNotFlagImageStillInUse(t *testing.T) {
	paths := layout.New(t.TempDir())
	runID := "demo-notag-Mar05-0930"
	_, err := paths.EnsureRunDir(runID)
	require.NoError(t, err)

	rt := &fakeRuntime{containers: []runtime.Container{
		{Name: "scad-" + runID, Image: "scad-demo", Status: runtime.StatusRunning, Labels: map[string]string{"runId": runID}},
	}}
	c := New(paths, rt)

	report, err := c.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, report.UnusedImages)
	assert.Empty(t, report.OrphanContainers)
}
