// Command scad runs isolated coding-agent sessions in disposable containers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jmgilman/scad/internal/clone"
	"github.com/jmgilman/scad/internal/cmd"
	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/creds"
	"github.com/jmgilman/scad/internal/imagebuild"
	"github.com/jmgilman/scad/internal/runtime"
	"github.com/jmgilman/scad/internal/session"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a domain error to the exit code table in §7: 1 for
// state/runtime errors the operator can retry, 2 for usage/config
// mistakes, 3 for infrastructure failures outside scad's control.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, config.ErrConfigInvalid),
		errors.Is(err, config.ErrConfigNameTaken),
		errors.Is(err, clone.ErrBranchExists),
		errors.Is(err, clone.ErrCloneSetMissing),
		errors.Is(err, session.ErrUnknownRun),
		errors.Is(err, creds.ErrCredentialsInvalid):
		return 2
	case errors.Is(err, creds.ErrCredentialsExpired),
		errors.Is(err, creds.ErrContainerNotFound),
		errors.Is(err, creds.ErrContainerNotRunning),
		errors.Is(err, runtime.ErrNotFound),
		errors.Is(err, runtime.ErrNotRunning):
		return 1
	case errors.Is(err, runtime.ErrBuildFailed),
		errors.Is(err, imagebuild.ErrBuildFailed),
		errors.Is(err, runtime.ErrRuntimeFailure):
		return 3
	default:
		return 1
	}
}
