package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmgilman/scad/internal/exec"
)

type repository struct {
	root       string
	identifier string
	exec       exec.Executor
}

func (r *repository) Root() string       { return r.root }
func (r *repository) Identifier() string { return r.identifier }

func (r *repository) BranchExists(ctx context.Context, branch string) (bool, error) {
	exists, err := r.localBranchExists(ctx, branch)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	return r.remoteBranchExists(ctx, branch)
}

func (r *repository) localBranchExists(ctx context.Context, branch string) (bool, error) {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"show-ref", "--verify", "--quiet", "refs/heads/" + branch},
		Dir:  r.root,
	})
	if err != nil {
		if result != nil && result.ExitCode == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check local branch: %w", err)
	}
	return true, nil
}

func (r *repository) remoteBranchExists(ctx context.Context, branch string) (bool, error) {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"branch", "-r", "--list", "*/" + branch},
		Dir:  r.root,
	})
	if err != nil {
		return false, fmt.Errorf("check remote branch: %w", err)
	}
	return strings.TrimSpace(string(result.Stdout)) != "", nil
}

// CloneLocal performs a content-addressed local clone of the repository
// into destPath, then creates (or checks out) branch in the clone.
//
// A local clone is used instead of `git worktree add` because worktree
// metadata points back at this repository's .git directory by absolute
// path, which is unreachable once destPath is bind-mounted into a
// container under a different path. A local clone is a fully independent
// repository (still hardlinked to the source's object store for speed).
func (r *repository) CloneLocal(ctx context.Context, destPath, branch string) (*Clone, error) {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"clone", "--local", "--no-hardlinks=false", r.root, destPath},
	})
	if err != nil {
		stderr := string(result.Stderr)
		if strings.Contains(stderr, "already exists") {
			return nil, ErrCloneExists
		}
		return nil, gitError("clone repository", result, err)
	}

	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("check branch existence: %w", err)
	}

	var args []string
	if exists {
		args = []string{"checkout", branch}
	} else {
		args = []string{"checkout", "-b", branch}
	}

	result, err = r.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: args,
		Dir:  destPath,
	})
	if err != nil {
		return nil, gitError("checkout branch in clone", result, err)
	}

	return &Clone{Path: destPath, Branch: branch}, nil
}

// FetchFrom fetches "<branch>:<branch>" from clonePath into this repository.
func (r *repository) FetchFrom(ctx context.Context, clonePath, branch string) error {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"fetch", clonePath, fmt.Sprintf("%s:%s", branch, branch)},
		Dir:  r.root,
	})
	if err != nil {
		return gitError("fetch from clone", result, err)
	}
	return nil
}

// FetchAllFrom performs a forced fetch of all heads from this repository
// into refs/remotes/origin/* of the clone at clonePath.
func (r *repository) FetchAllFrom(ctx context.Context, clonePath string) error {
	result, err := r.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"fetch", "--force", r.root, "+refs/heads/*:refs/remotes/origin/*"},
		Dir:  clonePath,
	})
	if err != nil {
		return gitError("sync refs into clone", result, err)
	}
	return nil
}
