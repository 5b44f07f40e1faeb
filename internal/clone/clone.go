// Package clone implements the CloneManager (§4.5): creating per-run local
// clones of worktree-enabled repos, moving branches between a clone and its
// host source, and tearing clones down at run cleanup.
package clone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/eventlog"
	"github.com/jmgilman/scad/internal/gitrepo"
	"github.com/jmgilman/scad/internal/layout"
)

// sortedRepoKeys returns cfg.Repos' keys in a stable order, used wherever an
// operation must visit repos in a deterministic sequence (e.g. branch
// collision checks, which short-circuit at the first collision found).
func sortedRepoKeys(cfg *config.ProjectConfig) []string {
	keys := make([]string, 0, len(cfg.Repos))
	for k := range cfg.Repos {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sentinel errors for clone operations.
var (
	ErrBranchExists    = errors.New("branch already exists in a source repository")
	ErrCloneSetMissing = errors.New("run has no worktrees directory")
)

// FetchResult describes one repo's branch having been fetched back to its
// host source.
type FetchResult struct {
	Repo   string
	Branch string
	Source string
}

// SyncResult describes one repo's clone having pulled refs from its host
// source.
type SyncResult struct {
	Repo   string
	Source string
}

// Manager implements the CloneManager operations against a set of source
// repositories named by a project config.
type Manager struct {
	opener   gitrepo.Opener
	cloneOps gitrepo.CloneOps
	paths    layout.Paths
}

// New creates a clone Manager.
func New(opener gitrepo.Opener, cloneOps gitrepo.CloneOps, paths layout.Paths) *Manager {
	return &Manager{opener: opener, cloneOps: cloneOps, paths: paths}
}

// CreateClones creates one local clone per worktree-enabled repo in cfg,
// checked out to branch, and returns the working path for every repo
// (cloned or directly mounted). It also seeds the run's agent-state
// directory and config document.
func (m *Manager) CreateClones(ctx context.Context, cfg *config.ProjectConfig, branch, runID string) (map[string]string, error) {
	paths := make(map[string]string, len(cfg.Repos))

	for key, repo := range cfg.Repos {
		if !repo.WorktreeEnabled() {
			paths[key] = repo.Path
			continue
		}

		source, err := m.opener.Open(ctx, repo.Path)
		if err != nil {
			return nil, fmt.Errorf("open source repo %s: %w", key, err)
		}

		dest := m.paths.WorktreePath(runID, key)
		if _, err := source.CloneLocal(ctx, dest, branch); err != nil {
			return nil, fmt.Errorf("clone repo %s: %w", key, err)
		}
		paths[key] = dest
	}

	if err := m.seedClaudeState(runID); err != nil {
		return nil, err
	}

	return paths, nil
}

func (m *Manager) seedClaudeState(runID string) error {
	if _, err := m.paths.EnsureRunDir(runID); err != nil {
		return err
	}
	if err := ensureDir(m.paths.ClaudeDir(runID)); err != nil {
		return fmt.Errorf("create claude state dir: %w", err)
	}
	if err := writeIfAbsent(m.paths.ClaudeJSONPath(runID), []byte("{}\n")); err != nil {
		return fmt.Errorf("seed claude.json: %w", err)
	}
	return nil
}

// FetchToHost fetches each cloned repo's branch back onto the matching
// source repository, by detaching the clone's HEAD, fetching "<branch>:
// <branch>" from the clone into the source, then re-attaching the clone to
// branch. Returns ErrCloneSetMissing if the run has no worktrees directory.
func (m *Manager) FetchToHost(ctx context.Context, cfg *config.ProjectConfig, runID string, events *eventlog.Writer) ([]FetchResult, error) {
	if !m.paths.HasWorktrees(runID) {
		return nil, ErrCloneSetMissing
	}

	var results []FetchResult
	for key, repo := range cfg.Repos {
		if !repo.WorktreeEnabled() {
			continue
		}

		clonePath := m.paths.WorktreePath(runID, key)

		branch, err := m.cloneOps.CurrentBranch(ctx, clonePath)
		if err != nil {
			return nil, fmt.Errorf("read current branch for %s: %w", key, err)
		}

		source, err := m.opener.Open(ctx, repo.Path)
		if err != nil {
			return nil, fmt.Errorf("open source repo %s: %w", key, err)
		}

		if err := m.cloneOps.DetachHead(ctx, clonePath); err != nil {
			return nil, fmt.Errorf("detach HEAD for %s: %w", key, err)
		}
		if err := source.FetchFrom(ctx, clonePath, branch); err != nil {
			return nil, fmt.Errorf("fetch %s into source: %w", key, err)
		}
		if err := m.cloneOps.CheckoutBranch(ctx, clonePath, branch); err != nil {
			return nil, fmt.Errorf("re-checkout branch for %s: %w", key, err)
		}

		results = append(results, FetchResult{Repo: key, Branch: branch, Source: repo.Path})
	}

	if events != nil {
		if err := events.Append(time.Now(), eventlog.VerbFetch, fetchDetails(results)); err != nil {
			return nil, fmt.Errorf("record fetch event: %w", err)
		}
	}

	return results, nil
}

// fetchDetails formats fetch results as space-separated repo=branch pairs,
// sorted by repo key for a deterministic event log line (§3.3).
func fetchDetails(results []FetchResult) string {
	pairs := make([]string, len(results))
	for i, r := range results {
		pairs[i] = r.Repo + "=" + r.Branch
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}

// SyncFromHost force-fetches every ref from each repo's host source into its
// clone's refs/remotes/origin/*, without touching the clone's checked-out
// branch.
func (m *Manager) SyncFromHost(ctx context.Context, cfg *config.ProjectConfig, runID string, events *eventlog.Writer) ([]SyncResult, error) {
	if !m.paths.HasWorktrees(runID) {
		return nil, ErrCloneSetMissing
	}

	var results []SyncResult
	for key, repo := range cfg.Repos {
		if !repo.WorktreeEnabled() {
			continue
		}

		clonePath := m.paths.WorktreePath(runID, key)
		source, err := m.opener.Open(ctx, repo.Path)
		if err != nil {
			return nil, fmt.Errorf("open source repo %s: %w", key, err)
		}

		if err := source.FetchAllFrom(ctx, clonePath); err != nil {
			return nil, fmt.Errorf("sync %s from source: %w", key, err)
		}

		results = append(results, SyncResult{Repo: key, Source: repo.Path})
	}

	if events != nil {
		if err := events.Append(time.Now(), eventlog.VerbSync, syncDetails(results)); err != nil {
			return nil, fmt.Errorf("record sync event: %w", err)
		}
	}

	return results, nil
}

// syncDetails formats sync results as space-separated repo=source pairs,
// sorted by repo key for a deterministic event log line (§3.3).
func syncDetails(results []SyncResult) string {
	pairs := make([]string, len(results))
	for i, r := range results {
		pairs[i] = r.Repo + "=" + r.Source
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}

// Cleanup removes only the run's worktrees/ subdirectory, preserving the
// event log and agent state.
func (m *Manager) Cleanup(runID string) error {
	return m.paths.RemoveWorktreesDir(runID)
}

// ResolveBranch returns the branch name a new run should use. An
// operator-supplied name is rejected with ErrBranchExists if any source repo
// in cfg already has it; otherwise a deterministic name is generated and
// disambiguated with a numeric suffix on collision, checking repos in sorted
// repo-key order (the config's declaration order is not kept) and stopping at
// the first collision found.
func (m *Manager) ResolveBranch(ctx context.Context, cfg *config.ProjectConfig, configName, tag string, operatorBranch string, now time.Time) (string, error) {
	if operatorBranch != "" {
		if err := m.checkCollision(ctx, cfg, operatorBranch); err != nil {
			return "", err
		}
		return operatorBranch, nil
	}

	base := fmt.Sprintf("scad-%s-%s-%s", configName, tag, now.UTC().Format("Jan02-1504"))
	candidate := base
	for suffix := 2; ; suffix++ {
		err := m.checkCollision(ctx, cfg, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrBranchExists) {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func (m *Manager) checkCollision(ctx context.Context, cfg *config.ProjectConfig, branch string) error {
	for _, key := range sortedRepoKeys(cfg) {
		repo := cfg.Repos[key]
		source, err := m.opener.Open(ctx, repo.Path)
		if err != nil {
			return fmt.Errorf("open source repo %s: %w", key, err)
		}
		exists, err := source.BranchExists(ctx, branch)
		if err != nil {
			return fmt.Errorf("check branch in %s: %w", key, err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrBranchExists, branch)
		}
	}
	return nil
}
