// Package runtime provides an abstraction over container runtime operations.
package runtime

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors for container operations.
var (
	ErrNotFound      = errors.New("container not found")
	ErrNotRunning    = errors.New("container not running")
	ErrAlreadyExists = errors.New("container already exists")
	ErrBuildFailed   = errors.New("image build failed")
	ErrNoParser      = errors.New("runtime has no parser configured")

	// ErrRuntimeFailure wraps any daemon/CLI failure that isn't one of the
	// above specific cases (e.g. the daemon is unreachable, a command exits
	// non-zero for an unrecognized reason). Callers map it to the §7
	// RuntimeError exit code.
	ErrRuntimeFailure = errors.New("runtime error")
)

// Status represents the container state.
type Status string

// Status constants represent possible container states.
const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
)

// CLI status strings used by container runtimes.
const (
	cliStatusRunning = "running"
	cliStatusExited  = "exited"
	cliStatusStopped = "stopped"
	cliStatusCreated = "created"
)

// Container holds container metadata.
type Container struct {
	ID        string
	Name      string
	Image     string
	Status    Status
	Labels    map[string]string
	CreatedAt time.Time
}

// Mount defines a host-to-container volume mount.
type Mount struct {
	Source   string // Host path
	Target   string // Container path
	ReadOnly bool
}

// RunConfig configures container creation.
type RunConfig struct {
	Name   string            // Container name (required)
	Image  string            // OCI image reference (required)
	Mounts []Mount           // Volume mounts
	Env    []string          // Environment variables (KEY=VALUE format)
	Labels map[string]string // Labels set at create time
	Init   string            // Init command to run as PID 1 (default: "sleep infinity")
}

// ExecConfig configures command execution in a container.
type ExecConfig struct {
	Command     []string // Command and arguments (required)
	Env         []string // Additional environment variables
	Interactive bool     // If true, sets up TTY with raw mode and signal forwarding
	Workdir     string   // Working directory (empty = container default)
	User        string   // User to run as (empty = container default)
}

// BuildConfig configures image builds.
type BuildConfig struct {
	Context    string    // Build context directory
	Dockerfile string    // Path to Dockerfile (relative to context)
	Tag        string    // Image tag to apply (required)
	Progress   io.Writer // If set, receives streamed build output line-by-line
}

// ListFilter filters container listings.
type ListFilter struct {
	Name  string // Filter by name prefix (empty = all)
	Label string // Filter by label, "key=value" form (empty = all)
}

// Runtime provides container lifecycle operations over a local container
// daemon, driven entirely through the runtime's CLI rather than its Go
// client API.
type Runtime interface {
	// Run creates and starts a new container.
	// The container runs the Init command (default: "sleep infinity") to stay alive.
	// Returns ErrAlreadyExists if a container with the same name exists.
	Run(ctx context.Context, cfg *RunConfig) (*Container, error)

	// Exec executes a command in a running container.
	// If Interactive is true, sets up TTY with raw mode and forwards signals.
	// Blocks until the command exits.
	// Returns ErrNotFound if container doesn't exist.
	// Returns ErrNotRunning if container is stopped.
	Exec(ctx context.Context, id string, cfg *ExecConfig) error

	// Stop stops a running container gracefully.
	// No-op if already stopped.
	// Returns ErrNotFound if container doesn't exist.
	Stop(ctx context.Context, id string) error

	// Start starts a stopped container.
	// No-op if already running.
	// Returns ErrNotFound if container doesn't exist.
	Start(ctx context.Context, id string) error

	// Remove deletes a container.
	// Container must be stopped first.
	// Returns ErrNotFound if container doesn't exist.
	Remove(ctx context.Context, id string) error

	// Get retrieves container information by ID or name.
	// Returns ErrNotFound if container doesn't exist.
	Get(ctx context.Context, id string) (*Container, error)

	// List returns all containers matching the filter.
	List(ctx context.Context, filter ListFilter) ([]Container, error)

	// Build builds an OCI image from a Dockerfile. If cfg.Progress is set,
	// each line of build output is written to it as it arrives.
	// Returns ErrBuildFailed if the build fails.
	Build(ctx context.Context, cfg *BuildConfig) error

	// RemoveImage removes a locally built image by ID. Best-effort callers
	// should treat a not-found error as success.
	RemoveImage(ctx context.Context, id string) error

	// CopyTo copies a file from the host into a running container.
	CopyTo(ctx context.Context, id, hostPath, containerPath string) error

	// ExecCommand returns the command prefix for executing commands in a
	// container (e.g. ["docker", "exec"]).
	ExecCommand() []string
}
