package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/exec"
)

type fakeExecutor struct {
	runFunc func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error)
}

func (f *fakeExecutor) Run(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
	return f.runFunc(ctx, opts)
}

func (f *fakeExecutor) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }

func TestDockerRuntimeRun(t *testing.T) {
	fe := &fakeExecutor{runFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
		assert.Equal(t, "docker", opts.Name)
		assert.Equal(t, "run", opts.Args[0])
		return &exec.Result{Stdout: []byte("abc123\n")}, nil
	}}

	rt := NewDockerRuntime(fe)
	c, err := rt.Run(context.Background(), &RunConfig{Name: "scad-demo", Image: "scad-demo:latest"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", c.ID)
	assert.Equal(t, StatusRunning, c.Status)
}

func TestDockerRuntimeRunAlreadyExists(t *testing.T) {
	fe := &fakeExecutor{runFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
		return &exec.Result{Stderr: []byte("Error: Conflict. The container name is already in use")}, errors.New("exit 1")
	}}

	rt := NewDockerRuntime(fe)
	_, err := rt.Run(context.Background(), &RunConfig{Name: "scad-demo", Image: "scad-demo:latest"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDockerRuntimeGetParsesInspect(t *testing.T) {
	fe := &fakeExecutor{runFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
		return &exec.Result{Stdout: []byte(`[{"Id":"abc","Name":"/scad-demo","Created":"2026-01-01T00:00:00Z","State":{"Status":"running"},"Config":{"Image":"scad-demo:latest","Labels":{"managed":"true"}}}]`)}, nil
	}}

	rt := NewDockerRuntime(fe)
	c, err := rt.Get(context.Background(), "scad-demo")
	require.NoError(t, err)
	assert.Equal(t, "scad-demo", c.Name)
	assert.Equal(t, StatusRunning, c.Status)
	assert.Equal(t, "true", c.Labels["managed"])
}

func TestDockerRuntimeGetNotFound(t *testing.T) {
	fe := &fakeExecutor{runFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
		return &exec.Result{Stderr: []byte("Error: No such object: scad-demo")}, errors.New("exit 1")
	}}

	rt := NewDockerRuntime(fe)
	_, err := rt.Get(context.Background(), "scad-demo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDockerRuntimeListParsesNDJSON(t *testing.T) {
	fe := &fakeExecutor{runFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
		return &exec.Result{Stdout: []byte("{\"ID\":\"a1\",\"Names\":\"scad-demo\",\"Image\":\"scad-demo:latest\",\"State\":\"running\",\"Labels\":\"managed=true,config=demo\"}\n")}, nil
	}}

	rt := NewDockerRuntime(fe)
	cs, err := rt.List(context.Background(), ListFilter{Label: "managed=true"})
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "demo", cs[0].Labels["config"])
}

func TestDockerRuntimeBuildStreamsProgress(t *testing.T) {
	fe := &fakeExecutor{runFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
		_, _ = opts.Stdout.Write([]byte("Step 1/5 : FROM base\n"))
		_, _ = opts.Stdout.Write([]byte("Step 2/5 : RUN fail\n"))
		return &exec.Result{ExitCode: 1}, errors.New("exit 1")
	}}

	var lines []byte
	buf := &writerFunc{write: func(p []byte) (int, error) {
		lines = append(lines, p...)
		return len(p), nil
	}}

	rt := NewDockerRuntime(fe)
	err := rt.Build(context.Background(), &BuildConfig{Context: ".", Tag: "scad-demo", Progress: buf})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Contains(t, string(lines), "Step 2/5")
}

type writerFunc struct{ write func([]byte) (int, error) }

func (w *writerFunc) Write(p []byte) (int, error) { return w.write(p) }
