package gitrepo

import (
	"context"
	"strings"

	"github.com/jmgilman/scad/internal/exec"
)

// CloneOps performs operations against an existing local clone directory,
// independent of the Repository it was cloned from.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/cloneops.go . CloneOps
type CloneOps interface {
	// CurrentBranch returns the branch checked out at path, or ErrDetachedHead
	// if HEAD is detached.
	CurrentBranch(ctx context.Context, path string) (string, error)

	// DetachHead detaches HEAD at path without changing the working tree.
	DetachHead(ctx context.Context, path string) error

	// CheckoutBranch re-attaches HEAD at path to branch.
	CheckoutBranch(ctx context.Context, path, branch string) error
}

type cloneOps struct {
	exec exec.Executor
}

// NewCloneOps creates a CloneOps that uses the provided Executor.
func NewCloneOps(e exec.Executor) CloneOps {
	return &cloneOps{exec: e}
}

func (c *cloneOps) CurrentBranch(ctx context.Context, path string) (string, error) {
	result, err := c.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"symbolic-ref", "--short", "HEAD"},
		Dir:  path,
	})
	if err != nil {
		if result != nil && result.ExitCode != 0 {
			return "", ErrDetachedHead
		}
		return "", gitError("get current branch", result, err)
	}
	return strings.TrimSpace(string(result.Stdout)), nil
}

func (c *cloneOps) DetachHead(ctx context.Context, path string) error {
	result, err := c.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"checkout", "--detach", "HEAD"},
		Dir:  path,
	})
	if err != nil {
		return gitError("detach HEAD", result, err)
	}
	return nil
}

func (c *cloneOps) CheckoutBranch(ctx context.Context, path, branch string) error {
	result, err := c.exec.Run(ctx, &exec.RunOptions{
		Name: "git",
		Args: []string{"checkout", branch},
		Dir:  path,
	})
	if err != nil {
		return gitError("checkout branch", result, err)
	}
	return nil
}
