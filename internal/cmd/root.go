// Package cmd implements the scad CLI using Cobra: a tool for running
// isolated coding-agent sessions in per-run containers, each wired to a
// dedicated git clone.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmgilman/scad/internal/clone"
	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/creds"
	"github.com/jmgilman/scad/internal/gc"
	"github.com/jmgilman/scad/internal/gitrepo"
	"github.com/jmgilman/scad/internal/imagebuild"
	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/prompt"
	"github.com/jmgilman/scad/internal/registry"
	"github.com/jmgilman/scad/internal/runtime"
	hjexec "github.com/jmgilman/scad/internal/exec"
	"github.com/jmgilman/scad/internal/session"
	"github.com/jmgilman/scad/internal/slogger"
)

// baseDeps lists the external binaries scad always requires.
var baseDeps = []string{"git", "docker"}

// defaultBaseDirName is the operator home subdirectory holding all scad state.
const defaultBaseDirName = ".scad"

// credentialsFileName is the well-known host credentials file (§3.6).
const credentialsFileName = "credentials.json"

var rootCmd = &cobra.Command{
	Use:   "scad",
	Short: "Run isolated coding-agent sessions in disposable containers",
	Long: `scad spawns CLI coding agents in per-run containers, each given a
dedicated local git clone so parallel runs never collide on a working tree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDependencies(); err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}

		verbosity, _ := cmd.Flags().GetCount("log-level")
		logger := slogger.New(slogger.Config{Verbosity: verbosity})

		ctx := slogger.WithLogger(cmd.Context(), logger)
		cmd.SetContext(WithDeps(ctx, deps))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountP("log-level", "l", "increase logging verbosity (-l info, -ll debug)")
}

func checkDependencies() error {
	var missing []string
	for _, dep := range baseDeps {
		if _, err := exec.LookPath(dep); err != nil {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required dependencies: %v", missing)
	}
	return nil
}

func defaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, defaultBaseDirName), nil
}

// buildDeps wires every component into a ready-to-use Manager set.
func buildDeps() (*Deps, error) {
	base, err := defaultBaseDir()
	if err != nil {
		return nil, err
	}
	paths := layout.New(base)

	store := config.NewStore(paths)
	if err := store.MigrateLegacyDir(); err != nil {
		return nil, fmt.Errorf("migrate legacy config directory: %w", err)
	}

	executor := hjexec.New()
	rt := runtime.NewDockerRuntime(executor)
	opener := gitrepo.NewOpener(executor)
	cloneOps := gitrepo.NewCloneOps(executor)
	cloneMgr := clone.New(opener, cloneOps, paths)

	regClient := registry.NewClient(registry.ClientConfig{})
	builder := imagebuild.New(rt, regClient)

	credsPath := filepath.Join(base, credentialsFileName)
	prober := creds.New(credsPath, rt)

	stageDir := func(configName string) string {
		return filepath.Join(paths.Base, "build", configName)
	}

	sessions := session.New(paths, store, rt, cloneMgr, builder, prober, stageDir)
	collector := gc.New(paths, rt)

	return &Deps{
		Paths:    paths,
		Configs:  store,
		Runtime:  rt,
		Clones:   cloneMgr,
		Images:   builder,
		Creds:    prober,
		Sessions: sessions,
		GC:       collector,
		Prompt:   prompt.New(),
	}, nil
}

var errDepsNotInitialized = errors.New("dependencies not initialized")
