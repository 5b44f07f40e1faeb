// Package gc implements the GarbageCollector (§4.8): finding and, when
// asked, removing state left behind by runs whose container or directory
// outlived the other half of the pair.
package gc

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/runtime"
)

// managedLabel marks every container this module creates.
const managedLabel = "managed=true"

// imageTagPrefix matches imagebuild's managed image namespace.
const imageTagPrefix = "scad-"

// Report lists what GC found (or removed, when run with force).
type Report struct {
	OrphanContainers []string // container names with no matching run directory, or exited
	DeadRunDirs      []string // run directories with no container and no worktrees
	UnusedImages     []string // managed-tagged images referenced only by orphan containers
}

// Collector finds and removes orphaned session state.
type Collector struct {
	paths   layout.Paths
	runtime runtime.Runtime
}

// New creates a Collector.
func New(paths layout.Paths, rt runtime.Runtime) *Collector {
	return &Collector{paths: paths, runtime: rt}
}

// Collect scans for orphaned containers, dead run directories, and unused
// images. If force is true, each finding is removed best-effort — an
// individual removal failure is swallowed and the item still appears in the
// report, but never aborts the rest of the sweep. Without force, Collect is
// read-only.
//
// runtime.Runtime has no call to enumerate images directly, so an "unused"
// image is inferred rather than observed: a managed-tagged image is unused
// if it's referenced only by containers this sweep classified as orphans,
// and by no surviving container.
func (c *Collector) Collect(ctx context.Context, force bool) (*Report, error) {
	containers, err := c.runtime.List(ctx, runtime.ListFilter{Label: managedLabel})
	if err != nil {
		return nil, fmt.Errorf("list managed containers: %w", err)
	}

	runIDs, err := c.paths.ListRunIDs()
	if err != nil {
		return nil, fmt.Errorf("list run directories: %w", err)
	}
	hasRunDir := make(map[string]bool, len(runIDs))
	for _, id := range runIDs {
		hasRunDir[id] = true
	}

	report := &Report{}
	runIDsWithContainer := make(map[string]bool, len(containers))
	liveImages := make(map[string]bool, len(containers))
	orphanImages := make(map[string]bool)

	for _, container := range containers {
		runID := container.Labels["runId"]
		runIDsWithContainer[runID] = true

		if container.Status != runtime.StatusStopped && hasRunDir[runID] {
			liveImages[container.Image] = true
			continue
		}

		report.OrphanContainers = append(report.OrphanContainers, container.Name)
		orphanImages[container.Image] = true
		if force {
			_ = c.runtime.Remove(ctx, container.Name) //nolint:errcheck // best-effort, reported regardless
		}
	}

	for _, runID := range runIDs {
		if runIDsWithContainer[runID] || c.paths.HasWorktrees(runID) {
			continue
		}
		report.DeadRunDirs = append(report.DeadRunDirs, runID)
		if force {
			_ = c.paths.RemoveRunDir(runID)  //nolint:errcheck // best-effort
			_ = c.paths.RemoveRunLogs(runID) //nolint:errcheck // best-effort
		}
	}

	for image := range orphanImages {
		if liveImages[image] || !strings.HasPrefix(image, imageTagPrefix) {
			continue
		}
		report.UnusedImages = append(report.UnusedImages, image)
		if force {
			_ = c.runtime.RemoveImage(ctx, image) //nolint:errcheck // best-effort
		}
	}

	return report, nil
}
