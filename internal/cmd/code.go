package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/scad/internal/clone"
	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/eventlog"
	"github.com/jmgilman/scad/internal/session"
)

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Move code between a run's clones and its source repositories",
}

var codeFetchCmd = &cobra.Command{
	Use:   "fetch <runId>",
	Short: "Push a run's clone changes back into its source repos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCodeOp(cmd, args[0], func(deps *Deps, cfg *config.ProjectConfig, runID string, events *eventlog.Writer) error {
			results, err := deps.Clones.FetchToHost(cmd.Context(), cfg, runID, events)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("fetched %s (%s) from %s\n", r.Repo, r.Branch, r.Source)
			}
			return nil
		})
	},
}

var codeSyncCmd = &cobra.Command{
	Use:   "sync <runId>",
	Short: "Pull upstream changes from the source repos into a run's clones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCodeOp(cmd, args[0], func(deps *Deps, cfg *config.ProjectConfig, runID string, events *eventlog.Writer) error {
			results, err := deps.Clones.SyncFromHost(cmd.Context(), cfg, runID, events)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("synced %s to %s\n", r.Repo, r.Source)
			}
			return nil
		})
	},
}

var codeRefreshCmd = &cobra.Command{
	Use:   "refresh <runId>",
	Short: "Copy fresh host credentials into a run's running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		runID := args[0]

		if err := deps.Sessions.ValidateRunID(cmd.Context(), runID); err != nil {
			if errors.Is(err, session.ErrUnknownRun) {
				return fmt.Errorf("%w %q", session.ErrUnknownRun, runID)
			}
			return err
		}

		hours, err := deps.Creds.Refresh(cmd.Context(), "scad-"+runID)
		if err != nil {
			return fmt.Errorf("refresh credentials: %w", err)
		}

		events := eventlog.NewWriter(deps.Paths.EventsLogPath(runID))
		if err := events.Append(time.Now(), eventlog.VerbRefresh, ""); err != nil {
			return fmt.Errorf("record refresh event: %w", err)
		}

		fmt.Printf("Credentials refreshed, %.1fh remaining\n", hours)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(codeCmd)
	codeCmd.AddCommand(codeFetchCmd, codeSyncCmd, codeRefreshCmd)
}

// runCodeOp resolves runId to its config, validates the run exists, and
// runs fn with the loaded config and a writer for the run's event log.
func runCodeOp(cmd *cobra.Command, runID string, fn func(deps *Deps, cfg *config.ProjectConfig, runID string, events *eventlog.Writer) error) error {
	deps, err := requireDeps(cmd.Context())
	if err != nil {
		return err
	}

	if err := deps.Sessions.ValidateRunID(cmd.Context(), runID); err != nil {
		if errors.Is(err, session.ErrUnknownRun) {
			return fmt.Errorf("%w %q", session.ErrUnknownRun, runID)
		}
		return err
	}

	configName, err := deps.Sessions.ConfigForRun(runID)
	if err != nil {
		return fmt.Errorf("resolve config for run: %w", err)
	}
	cfg, err := deps.Configs.Load(configName)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configName, err)
	}

	events := eventlog.NewWriter(deps.Paths.EventsLogPath(runID))
	if err := fn(deps, cfg, runID, events); err != nil {
		if errors.Is(err, clone.ErrCloneSetMissing) {
			return fmt.Errorf("run %q has no worktrees: %w", runID, clone.ErrCloneSetMissing)
		}
		return err
	}
	return nil
}
