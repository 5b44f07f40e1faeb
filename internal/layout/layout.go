// Package layout defines the on-disk persisted state layout rooted at a
// single injected base directory, shared by every component that reads or
// writes host-side state (§6.3).
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths resolves every well-known path under a base directory. The base
// directory defaults to the operator's home subdirectory but is always an
// explicit parameter, never read from a global, so tests can substitute a
// temp directory.
type Paths struct {
	Base string
}

// New returns a Paths rooted at base.
func New(base string) Paths {
	return Paths{Base: base}
}

// ConfigsDir is the directory holding one YAML file per registered
// configuration.
func (p Paths) ConfigsDir() string {
	return filepath.Join(p.Base, "configs")
}

// ConfigPath returns the path of a configuration's store file.
func (p Paths) ConfigPath(name string) string {
	return filepath.Join(p.ConfigsDir(), name+".yml")
}

// RunsDir is the directory holding one subdirectory per run.
func (p Paths) RunsDir() string {
	return filepath.Join(p.Base, "runs")
}

// RunDir returns the per-run state directory.
func (p Paths) RunDir(runID string) string {
	return filepath.Join(p.RunsDir(), runID)
}

// EventsLogPath returns the path of a run's append-only event log.
func (p Paths) EventsLogPath(runID string) string {
	return filepath.Join(p.RunDir(runID), "events.log")
}

// WorktreesDir returns the directory holding a run's per-repo local clones.
func (p Paths) WorktreesDir(runID string) string {
	return filepath.Join(p.RunDir(runID), "worktrees")
}

// WorktreePath returns the clone path for a single repo within a run.
func (p Paths) WorktreePath(runID, repoKey string) string {
	return filepath.Join(p.WorktreesDir(runID), repoKey)
}

// ClaudeDir returns the run's opaque agent session data directory.
func (p Paths) ClaudeDir(runID string) string {
	return filepath.Join(p.RunDir(runID), "claude")
}

// ClaudeJSONPath returns the run's seeded opaque agent config file.
func (p Paths) ClaudeJSONPath(runID string) string {
	return filepath.Join(p.RunDir(runID), "claude.json")
}

// LogsDir is the directory holding setup and stream log files, named by
// run ID rather than nested per-run (§6.3).
func (p Paths) LogsDir() string {
	return filepath.Join(p.Base, "logs")
}

// SetupLogPath returns the setup-phase capture log for a run.
func (p Paths) SetupLogPath(runID string) string {
	return filepath.Join(p.LogsDir(), runID+".log")
}

// StreamLogPath returns the agent stream log for a run.
func (p Paths) StreamLogPath(runID string) string {
	return filepath.Join(p.LogsDir(), runID+".stream.jsonl")
}

// EnsureRunDir creates a run's state directory if missing.
func (p Paths) EnsureRunDir(runID string) (string, error) {
	dir := p.RunDir(runID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// EnsureLogsDir creates the logs directory if missing.
func (p Paths) EnsureLogsDir() (string, error) {
	dir := p.LogsDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create logs directory: %w", err)
	}
	return dir, nil
}

// EnsureConfigsDir creates the configs directory if missing.
func (p Paths) EnsureConfigsDir() (string, error) {
	dir := p.ConfigsDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create configs directory: %w", err)
	}
	return dir, nil
}

// RunDirExists reports whether a run directory exists on disk.
func (p Paths) RunDirExists(runID string) bool {
	_, err := os.Stat(p.RunDir(runID))
	return err == nil
}

// HasWorktrees reports whether a run has any clone subdirectories.
func (p Paths) HasWorktrees(runID string) bool {
	entries, err := os.ReadDir(p.WorktreesDir(runID))
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// RemoveWorktreesDir removes only a run's worktrees/ subdirectory,
// preserving the event log and agent state (CloneManager.cleanup).
func (p Paths) RemoveWorktreesDir(runID string) error {
	if err := os.RemoveAll(p.WorktreesDir(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove worktrees: %w", err)
	}
	return nil
}

// RemoveRunDir removes the entire run directory (SessionManager.clean).
func (p Paths) RemoveRunDir(runID string) error {
	if err := os.RemoveAll(p.RunDir(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run directory: %w", err)
	}
	return nil
}

// RemoveRunLogs removes a run's setup and stream logs.
func (p Paths) RemoveRunLogs(runID string) error {
	for _, path := range []string{p.SetupLogPath(runID), p.StreamLogPath(runID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove log %s: %w", path, err)
		}
	}
	return nil
}

// ListRunIDs returns the run IDs that have a directory under runs/.
func (p Paths) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(p.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// ListConfigNames returns the names of registered configurations (files
// under configs/ with a .yml extension), in os.ReadDir's filename order.
func (p Paths) ListConfigNames() ([]string, error) {
	entries, err := os.ReadDir(p.ConfigsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read configs directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yml" || ext == ".yaml" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	return names, nil
}
