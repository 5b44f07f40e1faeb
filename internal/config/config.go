// Package config manages per-project session configuration: one YAML
// document per project, validated with go-playground/validator, addressed
// by name through a directory-backed store.
package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for configuration operations.
var (
	ErrConfigNotFound  = errors.New("config not found")
	ErrConfigInvalid   = errors.New("config invalid")
	ErrConfigNameTaken = errors.New("config name already registered to a different path")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("instructionsmode", validateInstructionsMode); err != nil {
		panic(fmt.Sprintf("register instructionsmode validator: %v", err))
	}
	v.RegisterStructValidation(validateProjectConfig, ProjectConfig{})
	return v
}

// PermissionMode controls how the agent's permission prompts behave inside
// the container.
type PermissionMode string

// Permission mode values.
const (
	PermissionBypassAll PermissionMode = "bypassAll"
	PermissionDefault    PermissionMode = "default"
)

// InstructionsMode selects how the agent's instructions file is sourced.
type InstructionsMode string

// Instructions mode values.
const (
	InstructionsAuto     InstructionsMode = "auto"     // mount <home>/INSTRUCTIONS.md when it exists
	InstructionsDisabled InstructionsMode = "disabled" // no instructions file is mounted
	InstructionsExplicit InstructionsMode = "explicit" // Path names the file to mount
)

// Instructions is a 3-way sum: Auto, Disabled, or Explicit(Path).
type Instructions struct {
	Mode InstructionsMode `yaml:"mode" validate:"instructionsmode"`
	Path string           `yaml:"path,omitempty" validate:"required_if=Mode explicit,excluded_unless=Mode explicit"`
}

func validateInstructionsMode(fl validator.FieldLevel) bool {
	switch InstructionsMode(fl.Field().String()) {
	case InstructionsAuto, InstructionsDisabled, InstructionsExplicit:
		return true
	default:
		return false
	}
}

// RepoSpec describes how a single repository participates in a session.
type RepoSpec struct {
	Path     string `yaml:"path" validate:"required"`
	Workdir  bool   `yaml:"workdir,omitempty"`
	AddDir   bool   `yaml:"addDir,omitempty"`
	Worktree *bool  `yaml:"worktree,omitempty"`
	Focus    string `yaml:"focus,omitempty"`
}

// WorktreeEnabled reports whether this repo should be cloned for the run
// (true) or bind-mounted directly from the host path (false). Defaults to
// true when unset.
func (r RepoSpec) WorktreeEnabled() bool {
	if r.Worktree == nil {
		return true
	}
	return *r.Worktree
}

// Mount is a single host-to-container bind mount, in declaration order.
type Mount struct {
	HostPath      string `yaml:"hostPath" validate:"required"`
	ContainerPath string `yaml:"containerPath" validate:"required"`
}

// PythonSpec configures the Python toolchain staged into the image.
type PythonSpec struct {
	Version  string `yaml:"version" validate:"required"`
	Manifest string `yaml:"manifest,omitempty"`
}

// AgentConfig configures agent behavior inside the container.
type AgentConfig struct {
	PermissionMode PermissionMode `yaml:"permissionMode" validate:"omitempty,oneof=bypassAll default"`
	ExtraFlags     []string       `yaml:"extraFlags,omitempty"`
	Instructions   Instructions   `yaml:"instructions"`
	Plugins        []string       `yaml:"plugins,omitempty"`
}

// ProjectConfig is the full configuration for one project, one YAML
// document at configs/<name>.yml.
type ProjectConfig struct {
	Name         string              `yaml:"name" validate:"required"`
	Repos        map[string]RepoSpec `yaml:"repos" validate:"required,dive"`
	Mounts       []Mount             `yaml:"mounts,omitempty" validate:"dive"`
	AptPackages  []string            `yaml:"aptPackages,omitempty"`
	Python       *PythonSpec         `yaml:"python,omitempty"`
	Agent        AgentConfig         `yaml:"agent"`
}

// Validate checks struct tags plus the workdir-uniqueness invariant: exactly
// one repo must be marked as the workdir.
func (c *ProjectConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, err)
	}
	return nil
}

// validateProjectConfig enforces exactly-one-workdir across c.Repos, a
// cross-field invariant struct tags can't express.
func validateProjectConfig(sl validator.StructLevel) {
	c := sl.Current().Interface().(ProjectConfig)

	workdirs := 0
	for key, repo := range c.Repos {
		if repo.Path == "" {
			sl.ReportError(c.Repos, "Repos", "Repos", "required", key)
		}
		if repo.Workdir {
			workdirs++
		}
	}

	if workdirs != 1 {
		sl.ReportError(c.Repos, "Repos", "Repos", "exactly_one_workdir", fmt.Sprintf("%d", workdirs))
	}
}
