package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() ProjectConfig {
	return ProjectConfig{
		Name: "demo",
		Repos: map[string]RepoSpec{
			"main": {Path: "/repo", Workdir: true},
		},
		Agent: AgentConfig{
			Instructions: Instructions{Mode: InstructionsAuto},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNoWorkdir(t *testing.T) {
	cfg := validConfig()
	cfg.Repos = map[string]RepoSpec{"main": {Path: "/repo"}}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestValidateRejectsTwoWorkdirs(t *testing.T) {
	cfg := validConfig()
	cfg.Repos["other"] = RepoSpec{Path: "/other", Workdir: true}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestValidateRejectsExplicitInstructionsWithoutPath(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Instructions = Instructions{Mode: InstructionsExplicit}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestWorktreeEnabledDefaultsTrue(t *testing.T) {
	r := RepoSpec{Path: "/repo"}
	assert.True(t, r.WorktreeEnabled())

	no := false
	r.Worktree = &no
	assert.False(t, r.WorktreeEnabled())
}
