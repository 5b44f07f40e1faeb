// Package session implements the SessionManager (§4.7): the run lifecycle
// (start/stop/clean), enumeration across the filesystem and the live
// container set, and the handful of read-side queries (info, usage,
// project status) built on top of them.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmgilman/scad/internal/buildctx"
	"github.com/jmgilman/scad/internal/clone"
	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/creds"
	"github.com/jmgilman/scad/internal/eventlog"
	"github.com/jmgilman/scad/internal/imagebuild"
	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/mount"
	"github.com/jmgilman/scad/internal/runtime"
	"github.com/jmgilman/scad/internal/slogger"
	"github.com/jmgilman/scad/internal/tzresolve"
)

// Sentinel errors for session operations.
var ErrUnknownRun = errors.New("unknown run")

// usageToolTimeout bounds the external usage-reporting subprocess (§5).
const usageToolTimeout = 30 * time.Second

// State is a run's derived lifecycle state (§3.2); never stored directly.
type State string

// Lifecycle states.
const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateRemoved State = "removed"
	StateCleaned State = "cleaned"
)

// Info describes one run.
type Info struct {
	RunID      string
	ConfigName string
	Branch     string
	State      State
	StartedAt  time.Time
	Usage      *Usage // populated only when requested, e.g. by ProjectStatus(includeCost=true)
}

// Usage summarizes an agent's reported usage for a run.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Manager implements session lifecycle and enumeration.
type Manager struct {
	paths    layout.Paths
	configs  *config.Store
	runtime  runtime.Runtime
	clones   *clone.Manager
	images   *imagebuild.Builder
	creds    *creds.Prober
	stageDir func(configName string) string // where BuildContext-staged assets for a config's image live
}

// New creates a session Manager.
func New(paths layout.Paths, configs *config.Store, rt runtime.Runtime, clones *clone.Manager, images *imagebuild.Builder, credsProbe *creds.Prober, stageDir func(string) string) *Manager {
	return &Manager{paths: paths, configs: configs, runtime: rt, clones: clones, images: images, creds: credsProbe, stageDir: stageDir}
}

// Start runs the full session startup sequence (§4.7): verify credentials,
// allocate a run ID, ensure the config's image is built, create clones,
// plan mounts, create the container, and record the start event — in that
// order, so a cancellation never leaves a running container without an
// event log.
func (m *Manager) Start(ctx context.Context, configName, branch, tag, prompt string, rebuild bool) (string, error) {
	if tag == "" {
		tag = "notag"
	}

	cfg, err := m.configs.Load(configName)
	if err != nil {
		return "", err
	}

	status := m.creds.Check()
	if !status.Valid {
		return "", creds.ErrCredentialsInvalid
	}
	if status.Low() {
		slogger.L(ctx).Warn("credentials expire soon", "hoursRemaining", status.HoursRemaining)
	}

	now := time.Now()
	resolvedBranch, err := m.clones.ResolveBranch(ctx, cfg, configName, tag, branch, now)
	if err != nil {
		return "", err
	}

	runID, err := m.generateRunID(configName, tag, now)
	if err != nil {
		return "", err
	}

	stagingDir := m.stageDir(configName)
	if err := buildctx.Write(cfg, stagingDir); err != nil {
		return "", fmt.Errorf("stage build context: %w", err)
	}
	if rebuild {
		if err := m.images.Build(ctx, configName, stagingDir, io.Discard); err != nil {
			return "", err
		}
	} else if _, err := m.images.BuildIfMissing(ctx, configName, stagingDir, io.Discard); err != nil {
		return "", err
	}

	repoPaths, err := m.clones.CreateClones(ctx, cfg, resolvedBranch, runID)
	if err != nil {
		return "", err
	}

	cloned := make(map[string]bool, len(cfg.Repos))
	for key, repo := range cfg.Repos {
		cloned[key] = repo.WorktreeEnabled()
	}

	plan, err := mount.Plan(cfg, mount.Options{
		Paths:             m.paths,
		RepoPaths:         repoPaths,
		ClonedRepos:       cloned,
		RunID:             runID,
		ConfigName:        configName,
		Branch:            resolvedBranch,
		StartedAt:         now.UTC().Format(time.RFC3339),
		HostTimezone:      tzresolve.Resolve(),
		Prompt:            prompt,
		UpstreamAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		HostGitConfigPath: hostGitConfigPath(),
		InstructionsPath:  resolveInstructionsPath(cfg.Agent.Instructions),
		CredentialsPath:   m.creds.Path(),
	})
	if err != nil {
		return "", err
	}

	if _, err := m.paths.EnsureRunDir(runID); err != nil {
		return "", err
	}

	if _, err := m.runtime.Run(ctx, &runtime.RunConfig{
		Name:   containerName(runID),
		Image:  imagebuild.Tag(configName),
		Mounts: plan.Mounts,
		Env:    plan.Env,
		Labels: plan.Labels,
	}); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	events := eventlog.NewWriter(m.paths.EventsLogPath(runID))
	if err := events.Append(now, eventlog.VerbStart, "branch="+resolvedBranch+" config="+configName); err != nil {
		return "", fmt.Errorf("record start event: %w", err)
	}

	return runID, nil
}

// Stop stops a run's container without removing it.
func (m *Manager) Stop(ctx context.Context, runID string) (bool, error) {
	if err := m.ValidateRunID(ctx, runID); err != nil {
		return false, err
	}

	if err := m.runtime.Stop(ctx, containerName(runID)); err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("stop container: %w", err)
	}

	events := eventlog.NewWriter(m.paths.EventsLogPath(runID))
	if err := events.Append(time.Now(), eventlog.VerbStop, ""); err != nil {
		return false, fmt.Errorf("record stop event: %w", err)
	}
	return true, nil
}

// Clean stops and removes a run's container if present, then removes the
// entire run directory — the only operation that deletes agent state.
// Idempotent: tolerates an already-absent container or run directory.
func (m *Manager) Clean(ctx context.Context, runID string) error {
	name := containerName(runID)

	if err := m.runtime.Stop(ctx, name); err != nil && !errors.Is(err, runtime.ErrNotFound) {
		return fmt.Errorf("stop container: %w", err)
	}
	if err := m.runtime.Remove(ctx, name); err != nil && !errors.Is(err, runtime.ErrNotFound) {
		return fmt.Errorf("remove container: %w", err)
	}

	if err := m.paths.RemoveRunDir(runID); err != nil {
		return err
	}
	return m.paths.RemoveRunLogs(runID)
}

// ListRunning returns every run with a live container.
func (m *Manager) ListRunning(ctx context.Context) ([]Info, error) {
	containers, err := m.runtime.List(ctx, runtime.ListFilter{Label: "managed=true"})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	infos := make([]Info, 0, len(containers))
	for _, c := range containers {
		if c.Status != runtime.StatusRunning {
			continue
		}
		infos = append(infos, infoFromContainer(c))
	}
	return infos, nil
}

// AllSessions reconciles the on-disk runs directory with the live container
// set, with runtime state taking precedence when both exist.
func (m *Manager) AllSessions(ctx context.Context) ([]Info, error) {
	containers, err := m.runtime.List(ctx, runtime.ListFilter{Label: "managed=true"})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	byRunID := make(map[string]Info, len(containers))
	for _, c := range containers {
		info := infoFromContainer(c)
		byRunID[info.RunID] = info
	}

	runIDs, err := m.paths.ListRunIDs()
	if err != nil {
		return nil, fmt.Errorf("list run directories: %w", err)
	}

	for _, runID := range runIDs {
		if _, ok := byRunID[runID]; ok {
			continue
		}
		configName, _ := m.ConfigForRun(runID)
		state := StateRemoved
		if !m.paths.HasWorktrees(runID) {
			state = StateCleaned
		}
		byRunID[runID] = Info{RunID: runID, ConfigName: configName, State: state}
	}

	result := make([]Info, 0, len(byRunID))
	for _, info := range byRunID {
		result = append(result, info)
	}
	return result, nil
}

// Info returns a single run's state, merging container and event-log data.
func (m *Manager) Info(ctx context.Context, runID string) (*Info, error) {
	if err := m.ValidateRunID(ctx, runID); err != nil {
		return nil, err
	}

	c, err := m.runtime.Get(ctx, containerName(runID))
	if err == nil {
		info := infoFromContainer(*c)
		return &info, nil
	}
	if !errors.Is(err, runtime.ErrNotFound) {
		return nil, fmt.Errorf("get container: %w", err)
	}

	configName, _ := m.ConfigForRun(runID)
	state := StateRemoved
	if !m.paths.HasWorktrees(runID) {
		state = StateCleaned
	}
	return &Info{RunID: runID, ConfigName: configName, State: state}, nil
}

// ConfigForRun returns the config name a run was started from. The event
// log is authoritative; if it's unreadable or lacks a start record, the
// first dash-separated segment of the run ID is used instead.
func (m *Manager) ConfigForRun(runID string) (string, error) {
	records, err := eventlog.ReadAll(m.paths.EventsLogPath(runID))
	if err == nil {
		if rec, ok := eventlog.Last(records, eventlog.VerbStart); ok {
			if name := fieldValue(rec.Details, "config"); name != "" {
				return name, nil
			}
		}
	}

	parts := strings.SplitN(runID, "-", 2)
	if parts[0] == "" {
		return "", fmt.Errorf("cannot derive config name from run ID %s", runID)
	}
	return parts[0], nil
}

// ValidateRunID raises ErrUnknownRun unless a run directory or container
// exists for runID. Every run-ID-taking operation calls this first.
func (m *Manager) ValidateRunID(ctx context.Context, runID string) error {
	if m.paths.RunDirExists(runID) {
		return nil
	}
	if _, err := m.runtime.Get(ctx, containerName(runID)); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
}

// UsageFor reports a run's agent usage. It tries an external usage-reporting
// subprocess first (bounded to usageToolTimeout), then falls back to
// parsing the final record of the run's agent stream log. All failures
// resolve to nil rather than an error — usage is best-effort.
func (m *Manager) UsageFor(ctx context.Context, runID, usageTool string) *Usage {
	if usageTool != "" {
		if u := m.usageFromTool(ctx, usageTool, runID); u != nil {
			return u
		}
	}
	return m.usageFromStreamLog(runID)
}

func (m *Manager) usageFromTool(ctx context.Context, usageTool, runID string) *Usage {
	toolCtx, cancel := context.WithTimeout(ctx, usageToolTimeout)
	defer cancel()

	out, err := exec.CommandContext(toolCtx, usageTool, runID).Output() //nolint:gosec // G204: usageTool is operator-configured
	if err != nil {
		return nil
	}

	u, ok := parseUsageLine(strings.TrimSpace(string(out)))
	if !ok {
		return nil
	}
	return &u
}

func (m *Manager) usageFromStreamLog(runID string) *Usage {
	path := m.paths.StreamLogPath(runID)
	f, err := os.Open(path) //nolint:gosec // G304: path derived from run ID, not user input
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var last string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if last == "" {
		return nil
	}

	u, ok := parseUsageLine(last)
	if !ok {
		return nil
	}
	return &u
}

// ProjectStatus summarizes every run belonging to configName. When
// includeCost is set, each run's Usage is populated via UsageFor.
func (m *Manager) ProjectStatus(ctx context.Context, configName string, includeCost bool, usageTool string) ([]Info, error) {
	all, err := m.AllSessions(ctx)
	if err != nil {
		return nil, err
	}

	var result []Info
	for _, info := range all {
		if info.ConfigName != configName {
			continue
		}
		if includeCost {
			info.Usage = m.UsageFor(ctx, info.RunID, usageTool)
		}
		result = append(result, info)
	}
	return result, nil
}

func (m *Manager) generateRunID(configName, tag string, now time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s-%s", configName, tag, now.UTC().Format("Jan02-1504"))
	candidate := base
	for suffix := 2; ; suffix++ {
		if !m.paths.RunDirExists(candidate) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func containerName(runID string) string {
	return "scad-" + runID
}

// resolveInstructionsPath turns the config's 3-way instructions sum into a
// concrete host path, or "" if none should be mounted. Auto looks for a
// conventional file in the operator's home directory; a missing file in
// either Auto or Explicit mode is treated as absent, not an error, matching
// the "missing optional input" contract used elsewhere (§4.2).
func resolveInstructionsPath(instr config.Instructions) string {
	switch instr.Mode {
	case config.InstructionsDisabled:
		return ""
	case config.InstructionsExplicit:
		path := expandHome(instr.Path)
		if _, err := os.Stat(path); err != nil {
			return ""
		}
		return path
	default: // InstructionsAuto
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path := filepath.Join(home, "INSTRUCTIONS.md")
		if _, err := os.Stat(path); err != nil {
			return ""
		}
		return path
	}
}

// hostGitConfigPath returns the operator's personal gitconfig if present, so
// it can be mounted alongside the unconditional /etc/gitconfig mount.
func hostGitConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".gitconfig")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// expandHome resolves a leading "~" against the operator's home directory.
func expandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func infoFromContainer(c runtime.Container) Info {
	state := StateRunning
	if c.Status == runtime.StatusStopped {
		state = StateStopped
	}
	return Info{
		RunID:      c.Labels["runId"],
		ConfigName: c.Labels["config"],
		Branch:     c.Labels["branch"],
		State:      state,
		StartedAt:  parseStarted(c.Labels["started"]),
	}
}

func parseStarted(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func fieldValue(details, key string) string {
	for _, field := range strings.Fields(details) {
		if v, ok := strings.CutPrefix(field, key+"="); ok {
			return v
		}
	}
	return ""
}
