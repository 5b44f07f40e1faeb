package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/layout"
)

func TestPlanBuildsRepoMountsAndLabels(t *testing.T) {
	cfg := &config.ProjectConfig{
		Name: "demo",
		Repos: map[string]config.RepoSpec{
			"main": {Path: "/src/main", Workdir: true},
			"docs": {Path: "/src/docs"},
		},
		Mounts: []config.Mount{{HostPath: "/host/data", ContainerPath: "/data"}},
	}

	opts := Options{
		Paths:       layout.New("/base"),
		RepoPaths:   map[string]string{"main": "/runs/r1/worktrees/main", "docs": "/src/docs"},
		ClonedRepos: map[string]bool{"main": true, "docs": false},
		RunID:       "demo-notag-Mar05-0930",
		ConfigName:  "demo",
		Branch:      "feature-x",
		StartedAt:   "2026-03-05T09:30:00Z",
	}

	plan, err := Plan(cfg, opts)
	require.NoError(t, err)

	byTarget := map[string]bool{}
	for _, m := range plan.Mounts {
		byTarget["/workspace/main"] = byTarget["/workspace/main"]
		if m.Target == "/workspace/main" {
			assert.False(t, m.ReadOnly)
		}
		if m.Target == "/workspace/docs" {
			assert.True(t, m.ReadOnly)
		}
		if m.Target == "/data" {
			assert.Equal(t, "/host/data", m.Source)
		}
	}

	assert.Equal(t, "true", plan.Labels["managed"])
	assert.Equal(t, "demo", plan.Labels["config"])
	assert.Equal(t, "feature-x", plan.Labels["branch"])
	assert.Contains(t, plan.Env, "RUN_ID=demo-notag-Mar05-0930")
}

func TestPlanMissingRepoPathErrors(t *testing.T) {
	cfg := &config.ProjectConfig{
		Repos: map[string]config.RepoSpec{"main": {Path: "/src/main", Workdir: true}},
	}
	_, err := Plan(cfg, Options{Paths: layout.New("/base"), RepoPaths: map[string]string{}})
	assert.Error(t, err)
}
