// Package gitrepo provides a thin subprocess wrapper over git, used by the
// clone manager to create per-run local clones and move refs between a
// clone and its source repository.
package gitrepo

import (
	"context"
	"errors"
)

// Sentinel errors for git operations.
var (
	ErrNotRepository  = errors.New("not a git repository")
	ErrBranchExists   = errors.New("branch already exists")
	ErrBranchNotFound = errors.New("branch not found")
	ErrCloneExists    = errors.New("clone already exists")
	ErrDetachedHead   = errors.New("HEAD is detached")
)

// Repository is a source git repository — one of the host repos named in a
// project configuration.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/repository.go . Repository
type Repository interface {
	// Root returns the absolute path to the repository root.
	Root() string

	// Identifier returns a unique identifier for the repository, of the
	// form "<repo-name>-<short-initial-commit-hash>".
	Identifier() string

	// BranchExists checks if a branch exists locally or in any remote.
	BranchExists(ctx context.Context, branch string) (bool, error)

	// CloneLocal performs a local, hardlinked clone of this repository into
	// destPath and checks out branch, creating it from HEAD if it does not
	// already exist locally.
	CloneLocal(ctx context.Context, destPath, branch string) (*Clone, error)

	// FetchFrom fetches "<branch>:<branch>" from the clone rooted at
	// clonePath into this repository.
	FetchFrom(ctx context.Context, clonePath, branch string) error

	// FetchAllFrom performs a forced fetch of all of this repository's
	// branches into refs/remotes/origin/* of the clone at clonePath (run
	// inside the clone, pulling from the source).
	FetchAllFrom(ctx context.Context, clonePath string) error
}

// Opener opens git repositories.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/opener.go . Opener
type Opener interface {
	// Open opens the git repository containing the given path.
	// Returns ErrNotRepository if the path is not inside a git repository.
	Open(ctx context.Context, path string) (Repository, error)
}

// Clone is a per-run local clone of a source repository.
type Clone struct {
	Path   string
	Branch string
}
