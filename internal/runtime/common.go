package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/jmgilman/scad/internal/exec"
)

// containerParser handles runtime-specific JSON parsing for container inspect and list operations.
type containerParser interface {
	parseInspect(data []byte) (*Container, error)
	parseList(data []byte) ([]Container, error)
}

// baseRuntime provides shared functionality for container runtimes.
// Concrete implementations (currently Docker) configure this with
// runtime-specific settings and a containerParser for JSON parsing.
type baseRuntime struct {
	exec        exec.Executor
	binaryName  string
	execCommand []string
	listArgs    []string
	parser      containerParser
}

func cliError(operation string, result *exec.Result, err error) error {
	if result != nil {
		stderr := strings.TrimSpace(string(result.Stderr))
		if stderr != "" {
			return fmt.Errorf("%s: %s: %w", operation, stderr, ErrRuntimeFailure)
		}
	}
	return fmt.Errorf("%s: %w", operation, errors.Join(err, ErrRuntimeFailure))
}

// Run creates and starts a new container.
func (r *baseRuntime) Run(ctx context.Context, cfg *RunConfig) (*Container, error) {
	args := buildRunArgs(cfg)

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: args,
	})
	if err != nil {
		stderr := string(result.Stderr)
		if isAlreadyExistsError(stderr) {
			return nil, ErrAlreadyExists
		}
		return nil, cliError("run container", result, err)
	}

	containerID := strings.TrimSpace(string(result.Stdout))

	return &Container{
		ID:        containerID,
		Name:      cfg.Name,
		Image:     cfg.Image,
		Status:    StatusRunning,
		Labels:    cfg.Labels,
		CreatedAt: time.Now(),
	}, nil
}

// Exec executes a command in a running container.
func (r *baseRuntime) Exec(ctx context.Context, id string, cfg *ExecConfig) error {
	container, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if container.Status != StatusRunning {
		return ErrNotRunning
	}

	args := buildExecArgs(id, cfg)

	if cfg.Interactive {
		return r.execInteractive(ctx, args)
	}

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: args,
	})
	if err != nil {
		return cliError("exec in container", result, err)
	}

	return nil
}

// Stop stops a running container gracefully.
func (r *baseRuntime) Stop(ctx context.Context, id string) error {
	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if c.Status == StatusStopped {
		return nil
	}

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: []string{"stop", id},
	})
	if err != nil {
		return cliError("stop container", result, err)
	}

	return nil
}

// Start starts a stopped container.
func (r *baseRuntime) Start(ctx context.Context, id string) error {
	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if c.Status == StatusRunning {
		return nil
	}

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: []string{"start", id},
	})
	if err != nil {
		return cliError("start container", result, err)
	}

	return nil
}

// Remove deletes a container.
func (r *baseRuntime) Remove(ctx context.Context, id string) error {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: []string{"rm", id},
	})
	if err != nil {
		stderr := string(result.Stderr)
		if isNotFoundError(stderr) {
			return ErrNotFound
		}
		return cliError("remove container", result, err)
	}

	return nil
}

// Get retrieves container information by ID or name.
func (r *baseRuntime) Get(ctx context.Context, id string) (*Container, error) {
	if r.parser == nil {
		return nil, ErrNoParser
	}

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: []string{"inspect", id},
	})
	if err != nil {
		stderr := string(result.Stderr)
		if isNotFoundError(stderr) {
			return nil, ErrNotFound
		}
		return nil, cliError("inspect container", result, err)
	}

	return r.parser.parseInspect(result.Stdout)
}

// List returns all containers matching the filter.
func (r *baseRuntime) List(ctx context.Context, filter ListFilter) ([]Container, error) {
	if r.parser == nil {
		return nil, ErrNoParser
	}

	args := append([]string{}, r.listArgs...)
	args = append(args, "--format", "json")

	if filter.Name != "" {
		args = append(args, "--filter", "name="+filter.Name)
	}
	if filter.Label != "" {
		args = append(args, "--filter", "label="+filter.Label)
	}

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: args,
	})
	if err != nil {
		return nil, cliError("list containers", result, err)
	}

	stdout := strings.TrimSpace(string(result.Stdout))
	if stdout == "" || stdout == "[]" {
		return []Container{}, nil
	}

	return r.parser.parseList(result.Stdout)
}

// Build builds an OCI image from a Dockerfile, streaming progress lines to
// cfg.Progress if set.
func (r *baseRuntime) Build(ctx context.Context, cfg *BuildConfig) error {
	args := buildBuildArgs(cfg)

	if cfg.Progress == nil {
		result, err := r.exec.Run(ctx, &exec.RunOptions{
			Name: r.binaryName,
			Args: args,
		})
		if err != nil {
			return fmt.Errorf("%w: %s", ErrBuildFailed, strings.TrimSpace(string(result.Stderr)))
		}
		return nil
	}

	pr, pw := newLineWriter(cfg.Progress)
	defer pr.close()

	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name:   r.binaryName,
		Args:   args,
		Stdout: pw,
		Stderr: pw,
	})
	pr.flush()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBuildFailed, pr.lastLine())
	}
	_ = result

	return nil
}

// RemoveImage removes a locally built image by ID.
func (r *baseRuntime) RemoveImage(ctx context.Context, id string) error {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: []string{"image", "rm", "--force", id},
	})
	if err != nil {
		stderr := string(result.Stderr)
		if isNotFoundError(stderr) {
			return ErrNotFound
		}
		return cliError("remove image", result, err)
	}
	return nil
}

// CopyTo copies a file from the host into a running container.
func (r *baseRuntime) CopyTo(ctx context.Context, id, hostPath, containerPath string) error {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: r.binaryName,
		Args: []string{"cp", hostPath, id + ":" + containerPath},
	})
	if err != nil {
		return cliError("copy into container", result, err)
	}
	return nil
}

// execInteractive runs a container exec command with TTY support.
func (r *baseRuntime) execInteractive(ctx context.Context, args []string) error {
	stdinFd := int(os.Stdin.Fd())

	if !term.IsTerminal(stdinFd) {
		_, err := r.exec.Run(ctx, &exec.RunOptions{
			Name:   r.binaryName,
			Args:   args,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		})
		return err
	}

	oldState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() { _ = term.Restore(stdinFd, oldState) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	_, err = r.exec.Run(ctx, &exec.RunOptions{
		Name:   r.binaryName,
		Args:   args,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})

	return err
}

// ExecCommand returns the command prefix for executing commands in a container.
func (r *baseRuntime) ExecCommand() []string {
	return r.execCommand
}

func buildRunArgs(cfg *RunConfig) []string {
	args := []string{"run", "--detach", "--name", cfg.Name}

	for k, v := range cfg.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}

	for _, m := range cfg.Mounts {
		mountSpec := fmt.Sprintf("%s:%s", m.Source, m.Target)
		if m.ReadOnly {
			mountSpec += ":ro"
		}
		args = append(args, "-v", mountSpec)
	}

	for _, e := range cfg.Env {
		args = append(args, "-e", e)
	}

	args = append(args, cfg.Image)

	initCmd := cfg.Init
	if initCmd == "" {
		initCmd = "sleep infinity"
	}
	args = append(args, strings.Fields(initCmd)...)

	return args
}

func buildExecArgs(id string, cfg *ExecConfig) []string {
	args := []string{"exec"}

	if cfg.Interactive {
		args = append(args, "-it")
	}

	if cfg.User != "" {
		args = append(args, "-u", cfg.User)
	}

	if cfg.Workdir != "" {
		args = append(args, "-w", cfg.Workdir)
	}

	for _, e := range cfg.Env {
		args = append(args, "-e", e)
	}

	args = append(args, id)
	args = append(args, cfg.Command...)

	return args
}

func buildBuildArgs(cfg *BuildConfig) []string {
	args := []string{"build", "-t", cfg.Tag}

	if cfg.Dockerfile != "" {
		args = append(args, "-f", cfg.Dockerfile)
	}

	args = append(args, cfg.Context)
	return args
}

func parseContainerStatus(cliStatus string) Status {
	switch strings.ToLower(cliStatus) {
	case cliStatusRunning:
		return StatusRunning
	case cliStatusStopped, cliStatusExited, cliStatusCreated:
		return StatusStopped
	default:
		return StatusUnknown
	}
}

func isAlreadyExistsError(stderr string) bool {
	return strings.Contains(stderr, "already in use") || strings.Contains(stderr, "already exists")
}

func isNotFoundError(stderr string) bool {
	normalized := strings.ToLower(stderr)
	return strings.Contains(normalized, "no such") ||
		strings.Contains(normalized, "no container") ||
		strings.Contains(normalized, "not found")
}

// lineWriter splits arbitrary writes on newlines and forwards complete lines
// to an underlying io.Writer, tracking the last non-empty line seen so a
// build failure can report it.
type lineWriter struct {
	dst  interface{ Write([]byte) (int, error) }
	buf  strings.Builder
	last string
}

func newLineWriter(dst interface{ Write([]byte) (int, error) }) (*lineWriter, *lineWriter) {
	lw := &lineWriter{dst: dst}
	return lw, lw
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		s := w.buf.String()
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			break
		}
		line := s[:idx]
		if strings.TrimSpace(line) != "" {
			w.last = strings.TrimSpace(line)
		}
		if w.dst != nil {
			_, _ = w.dst.Write([]byte(line + "\n"))
		}
		w.buf.Reset()
		w.buf.WriteString(s[idx+1:])
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	rest := strings.TrimSpace(w.buf.String())
	if rest != "" {
		w.last = rest
		if w.dst != nil {
			_, _ = w.dst.Write([]byte(rest + "\n"))
		}
	}
}

func (w *lineWriter) close() {}

func (w *lineWriter) lastLine() string { return w.last }
