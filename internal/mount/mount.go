// Package mount implements the MountPlanner (§4.6): a pure function mapping
// a project config and run ID to the volume, environment, and label tables a
// session's container is created with.
package mount

import (
	"fmt"

	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/runtime"
)

// containerWorkspace is the root under which every repo is mounted.
const containerWorkspace = "/workspace"

// containerHome is the agent's home directory inside the container.
const containerHome = "/home/agent"

// Telemetry-disable environment variables set on every session container.
var telemetryDisableEnv = []string{
	"DISABLE_TELEMETRY=1",
	"DISABLE_ERROR_REPORTING=1",
	"DISABLE_AUTOUPDATER=1",
}

// Plan is the output of planning a run's container: the mounts, env, and
// labels it should be created with.
type Plan struct {
	Mounts []runtime.Mount
	Env    []string
	Labels map[string]string
}

// Options carries the inputs a planner needs beyond the project config and
// run ID: paths resolved from clone creation, and host-specific facts that
// aren't part of the config.
type Options struct {
	Paths             layout.Paths
	RepoPaths         map[string]string // repoKey -> host or clone path, from CloneManager
	ClonedRepos       map[string]bool   // repoKey -> true if RepoPaths[key] is a clone (rw), false if direct mount (ro)
	RunID             string
	ConfigName        string
	Branch            string
	StartedAt         string // ISO UTC, set by the caller so this stays pure
	HostTimezone      string
	Prompt            string
	UpstreamAPIKey    string // passed through as-is if non-empty
	HostGitConfigPath string
	InstructionsPath  string // resolved host path, empty if instructions are disabled
	CredentialsPath   string // host staging path for the credentials file
}

// Plan computes the mount table, environment, and labels for a run.
func Plan(cfg *config.ProjectConfig, opts Options) (*Plan, error) {
	paths := opts.Paths

	var mounts []runtime.Mount
	for key, repo := range cfg.Repos {
		hostPath, ok := opts.RepoPaths[key]
		if !ok {
			return nil, fmt.Errorf("mount plan: no resolved path for repo %s", key)
		}
		target := containerWorkspace + "/" + key
		mounts = append(mounts, runtime.Mount{
			Source:   hostPath,
			Target:   target,
			ReadOnly: !opts.ClonedRepos[key],
		})
	}

	for _, m := range cfg.Mounts {
		mounts = append(mounts, runtime.Mount{Source: m.HostPath, Target: m.ContainerPath, ReadOnly: false})
	}

	mounts = append(mounts,
		runtime.Mount{Source: paths.LogsDir(), Target: "/var/log/scad", ReadOnly: false},
		runtime.Mount{Source: "/etc/gitconfig", Target: "/etc/gitconfig", ReadOnly: true},
		runtime.Mount{Source: paths.ClaudeDir(opts.RunID), Target: containerHome + "/.agent-state", ReadOnly: false},
		runtime.Mount{Source: paths.ClaudeJSONPath(opts.RunID), Target: containerHome + "/.agent-config.json", ReadOnly: false},
		runtime.Mount{Source: "/etc/localtime", Target: "/etc/localtime", ReadOnly: true},
	)

	if opts.HostGitConfigPath != "" {
		mounts = append(mounts, runtime.Mount{Source: opts.HostGitConfigPath, Target: containerHome + "/.gitconfig", ReadOnly: true})
	}
	if opts.CredentialsPath != "" {
		mounts = append(mounts, runtime.Mount{Source: opts.CredentialsPath, Target: containerHome + "/.credentials.json", ReadOnly: true})
	}
	if opts.InstructionsPath != "" {
		mounts = append(mounts, runtime.Mount{Source: opts.InstructionsPath, Target: containerHome + "/INSTRUCTIONS.md", ReadOnly: true})
	}

	env := []string{"RUN_ID=" + opts.RunID}
	if opts.HostTimezone != "" {
		env = append(env, "TZ="+opts.HostTimezone)
	}
	if opts.Prompt != "" {
		env = append(env, "SCAD_PROMPT="+opts.Prompt)
	}
	if opts.UpstreamAPIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+opts.UpstreamAPIKey)
	}
	env = append(env, telemetryDisableEnv...)

	labels := map[string]string{
		"managed": "true",
		"config":  opts.ConfigName,
		"branch":  opts.Branch,
		"runId":   opts.RunID,
		"started": opts.StartedAt,
	}

	return &Plan{Mounts: mounts, Env: env, Labels: labels}, nil
}
