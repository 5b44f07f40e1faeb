package buildctx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/scad/internal/config"
)

func TestWriteProducesExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ProjectConfig{
		Name:        "demo",
		Repos:       map[string]config.RepoSpec{"main": {Path: "/repo", Workdir: true}},
		AptPackages: []string{"ripgrep"},
		Agent:       config.AgentConfig{Plugins: []string{"review-helper"}},
	}

	require.NoError(t, Write(cfg, dir))

	for _, name := range []string{"Dockerfile", "entrypoint.sh", "bootstrap.sh", "tmux.conf", "statusline.sh", "claude.json", "settings.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	dockerfile, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "ripgrep")
	assert.NotContains(t, string(dockerfile), "pyenv install")
}

func TestWriteOmitsAbsentOptionalSections(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ProjectConfig{
		Name:  "demo",
		Repos: map[string]config.RepoSpec{"main": {Path: "/repo", Workdir: true}},
	}

	require.NoError(t, Write(cfg, dir))

	dockerfile, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.NotContains(t, string(dockerfile), "apt-get install")
	assert.NotContains(t, string(dockerfile), "pyenv")
}

func TestWriteBypassAllSetsSkipPrompt(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ProjectConfig{
		Name:  "demo",
		Repos: map[string]config.RepoSpec{"main": {Path: "/repo", Workdir: true}},
		Agent: config.AgentConfig{PermissionMode: config.PermissionBypassAll},
	}

	require.NoError(t, Write(cfg, dir))

	settings, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(settings), "bypassPermissions")
}
