package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/clone"
	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/creds"
	"github.com/jmgilman/scad/internal/gitrepo"
	"github.com/jmgilman/scad/internal/imagebuild"
	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/registry"
	"github.com/jmgilman/scad/internal/runtime"
)

const demoConfigYAML = `
name: demo
repos:
  main:
    path: /src/main
    workdir: true
agent:
  instructions:
    mode: disabled
`

type fakeRuntime struct {
	runtime.Runtime
	containers map[string]*runtime.Container
	runErr     error
	buildErr   error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: map[string]*runtime.Container{}}
}

func (f *fakeRuntime) Run(ctx context.Context, cfg *runtime.RunConfig) (*runtime.Container, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	c := &runtime.Container{Name: cfg.Name, Image: cfg.Image, Status: runtime.StatusRunning, Labels: cfg.Labels}
	f.containers[cfg.Name] = c
	return c, nil
}

func (f *fakeRuntime) Get(ctx context.Context, id string) (*runtime.Container, error) {
	c, ok := f.containers[id]
	if !ok {
		return nil, runtime.ErrNotFound
	}
	return c, nil
}

func (f *fakeRuntime) List(ctx context.Context, filter runtime.ListFilter) ([]runtime.Container, error) {
	var out []runtime.Container
	for _, c := range f.containers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRuntime) Stop(ctx context.Context, id string) error {
	c, ok := f.containers[id]
	if !ok {
		return runtime.ErrNotFound
	}
	c.Status = runtime.StatusStopped
	return nil
}

func (f *fakeRuntime) Remove(ctx context.Context, id string) error {
	if _, ok := f.containers[id]; !ok {
		return runtime.ErrNotFound
	}
	delete(f.containers, id)
	return nil
}

func (f *fakeRuntime) Build(ctx context.Context, cfg *runtime.BuildConfig) error {
	return f.buildErr
}

func (f *fakeRuntime) RemoveImage(ctx context.Context, id string) error { return nil }

func (f *fakeRuntime) CopyTo(ctx context.Context, id, hostPath, containerPath string) error {
	return nil
}

type fakeRegistry struct{}

func (fakeRegistry) GetMetadata(ctx context.Context, ref string) (*registry.ImageMetadata, error) {
	return nil, registry.ErrImageNotFound
}

func (fakeRegistry) Exists(ctx context.Context, ref string) (bool, error) {
	return false, nil
}

type fakeGitRepo struct {
	root     string
	branches map[string]bool
}

func (r *fakeGitRepo) Root() string       { return r.root }
func (r *fakeGitRepo) Identifier() string { return "fake-0000000" }
func (r *fakeGitRepo) BranchExists(ctx context.Context, branch string) (bool, error) {
	return r.branches[branch], nil
}
func (r *fakeGitRepo) CloneLocal(ctx context.Context, destPath, branch string) (*gitrepo.Clone, error) {
	return &gitrepo.Clone{Path: destPath, Branch: branch}, nil
}
func (r *fakeGitRepo) FetchFrom(ctx context.Context, clonePath, branch string) error { return nil }
func (r *fakeGitRepo) FetchAllFrom(ctx context.Context, clonePath string) error      { return nil }

type fakeOpener struct{ repo *fakeGitRepo }

func (o *fakeOpener) Open(ctx context.Context, path string) (gitrepo.Repository, error) {
	return o.repo, nil
}

type fakeCloneOps struct{}

func (fakeCloneOps) CurrentBranch(ctx context.Context, path string) (string, error) { return "", nil }
func (fakeCloneOps) DetachHead(ctx context.Context, path string) error              { return nil }
func (fakeCloneOps) CheckoutBranch(ctx context.Context, path, branch string) error  { return nil }

func newTestManager(t *testing.T) (*Manager, *fakeRuntime) {
	t.Helper()

	base := t.TempDir()
	paths := layout.New(base)
	_, err := paths.EnsureConfigsDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(paths.ConfigPath("demo"), []byte(demoConfigYAML), 0o644))

	store := config.NewStore(paths)

	credsPath := filepath.Join(t.TempDir(), "creds.json")
	expiresAt := time.Now().Add(4 * time.Hour).UnixMilli()
	require.NoError(t, os.WriteFile(credsPath, []byte(fmt.Sprintf(`{"oauth":{"expiresAt":%d}}`, expiresAt)), 0o644))

	rt := newFakeRuntime()
	creditor := creds.New(credsPath, rt)

	cloneMgr := clone.New(&fakeOpener{repo: &fakeGitRepo{root: "/src/main", branches: map[string]bool{}}}, fakeCloneOps{}, paths)
	builder := imagebuild.New(rt, fakeRegistry{})

	m := New(paths, store, rt, cloneMgr, builder, creditor, func(string) string { return t.TempDir() })
	return m, rt
}

func TestGenerateRunIDDeterministicWithSuffix(t *testing.T) {
	m, _ := newTestManager(t)
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

	first, err := m.generateRunID("demo", "notag", now)
	require.NoError(t, err)
	assert.Equal(t, "demo-notag-Mar05-0930", first)

	_, err = m.paths.EnsureRunDir(first)
	require.NoError(t, err)

	second, err := m.generateRunID("demo", "notag", now)
	require.NoError(t, err)
	assert.Equal(t, "demo-notag-Mar05-0930-2", second)
}

func TestValidateRunIDUnknown(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.ValidateRunID(context.Background(), "missing-run")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestValidateRunIDKnownByRunDir(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.paths.EnsureRunDir("demo-notag-Mar05-0930")
	require.NoError(t, err)

	assert.NoError(t, m.ValidateRunID(context.Background(), "demo-notag-Mar05-0930"))
}

func TestStopAndCleanLifecycle(t *testing.T) {
	m, rt := newTestManager(t)
	runID := "demo-notag-Mar05-0930"
	_, err := m.paths.EnsureRunDir(runID)
	require.NoError(t, err)

	_, err = rt.Run(context.Background(), &runtime.RunConfig{Name: containerName(runID), Labels: map[string]string{"runId": runID, "config": "demo"}})
	require.NoError(t, err)

	stopped, err := m.Stop(context.Background(), runID)
	require.NoError(t, err)
	assert.True(t, stopped)

	require.NoError(t, m.Clean(context.Background(), runID))
	assert.False(t, m.paths.RunDirExists(runID))

	_, err = rt.Get(context.Background(), containerName(runID))
	assert.ErrorIs(t, err, runtime.ErrNotFound)
}

func TestConfigForRunFallsBackToRunIDPrefix(t *testing.T) {
	m, _ := newTestManager(t)
	name, err := m.ConfigForRun("demo-notag-Mar05-0930")
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
}

func TestParseUsageLineFlatShape(t *testing.T) {
	u, ok := parseUsageLine(`{"input_tokens":100,"output_tokens":50,"total_cost_usd":0.25}`)
	require.True(t, ok)
	assert.Equal(t, int64(100), u.InputTokens)
	assert.InDelta(t, 0.25, u.CostUSD, 0.001)
}

func TestParseUsageLineNestedShape(t *testing.T) {
	u, ok := parseUsageLine(`{"total_cost_usd":1.5,"usage":{"input_tokens":10,"output_tokens":20}}`)
	require.True(t, ok)
	assert.Equal(t, int64(10), u.InputTokens)
	assert.Equal(t, int64(20), u.OutputTokens)
}

func TestParseUsageLineInvalid(t *testing.T) {
	_, ok := parseUsageLine("not json")
	assert.False(t, ok)
}
