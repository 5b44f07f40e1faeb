package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jmgilman/scad/internal/layout"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// legacyConfigDirName is the pre-rename directory name; on first access in
// a process we migrate it in place to paths.ConfigsDir(), once.
const legacyConfigDirName = "projects"

// template is written by New for an operator to fill in by hand.
const template = `# name: unique identifier for this project, defaults to the filename
name: %s

# repos: one entry per repository participating in the session.
# Exactly one must set workdir: true.
repos:
  main:
    path: /path/to/repo
    workdir: true
    # addDir: false
    # worktree: true
    # focus: subdir/within/repo

# mounts:
#   - hostPath: /host/path
#     containerPath: /container/path

# aptPackages:
#   - ripgrep

# python:
#   version: "3.12"
#   manifest: requirements.txt

agent:
  permissionMode: default
  instructions:
    mode: auto
  # extraFlags: []
  # plugins: []
`

// Store manages project configurations held as one YAML file per project
// under a configs directory.
type Store struct {
	paths layout.Paths
	mu    sync.Mutex
}

// NewStore creates a config Store rooted at paths.ConfigsDir().
func NewStore(paths layout.Paths) *Store {
	return &Store{paths: paths}
}

// MigrateLegacyDir renames a pre-existing "projects" directory sitting next
// to the configs directory into place, once per process. It is a no-op if
// the legacy directory is absent or the target already exists.
func (s *Store) MigrateLegacyDir() error {
	legacy := filepath.Join(s.paths.Base, legacyConfigDirName)
	target := s.paths.ConfigsDir()

	if _, err := os.Stat(legacy); err != nil {
		return nil
	}
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return fmt.Errorf("prepare configs parent dir: %w", err)
	}
	if err := os.Rename(legacy, target); err != nil {
		return fmt.Errorf("migrate legacy config directory: %w", err)
	}
	return nil
}

// List returns the names of all registered project configs.
func (s *Store) List() ([]string, error) {
	names, err := s.paths.ListConfigNames()
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return names, nil
}

// Load reads and validates a project config by name.
func (s *Store) Load(name string) (*ProjectConfig, error) {
	path := s.paths.ConfigPath(name)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		return nil, fmt.Errorf("read config %s: %w", name, err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrConfigInvalid, name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Register symlinks an externally-located config file into the store under
// a derived name (its base filename, minus extension). Re-registering the
// same external path under the same name is a no-op; registering a
// different path under a name already in use returns ErrConfigNameTaken.
func (s *Store) Register(externalPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	absExternal, err := filepath.Abs(externalPath)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(absExternal), filepath.Ext(absExternal))
	if _, err := s.paths.EnsureConfigsDir(); err != nil {
		return "", fmt.Errorf("prepare configs dir: %w", err)
	}

	linkPath := s.paths.ConfigPath(name)

	if existingTarget, err := os.Readlink(linkPath); err == nil {
		if existingTarget == absExternal {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrConfigNameTaken, name)
	} else if _, statErr := os.Stat(linkPath); statErr == nil {
		// A regular (non-symlink) file already occupies this name.
		return "", fmt.Errorf("%w: %s", ErrConfigNameTaken, name)
	}

	if err := os.Symlink(absExternal, linkPath); err != nil {
		return "", fmt.Errorf("link config %s: %w", name, err)
	}

	return name, nil
}

// Remove deletes the store entry for name (the symlink or file under
// configs/), leaving any externally-registered file untouched.
func (s *Store) Remove(name string) error {
	path := s.paths.ConfigPath(name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		return fmt.Errorf("remove config %s: %w", name, err)
	}
	return nil
}

// New writes a commented template config for name, failing if one already
// exists.
func (s *Store) New(name string) error {
	if _, err := s.paths.EnsureConfigsDir(); err != nil {
		return fmt.Errorf("prepare configs dir: %w", err)
	}

	path := s.paths.ConfigPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigNameTaken, name)
	}

	return s.writeAtomic(path, fmt.Appendf(nil, template, name))
}

// ViewPath returns the on-disk path for name, for commands that shell out to
// $EDITOR or just print the file.
func (s *Store) ViewPath(name string) (string, error) {
	path := s.paths.ConfigPath(name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return path, nil
}

// writeAtomic writes data to path via a temp file plus rename, so a crash
// never leaves a partially written file at path.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.yml.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename config file: %w", err)
	}
	tmpPath = ""
	return nil
}
