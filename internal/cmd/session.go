package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/scad/internal/logging"
	"github.com/jmgilman/scad/internal/runtime"
	"github.com/jmgilman/scad/internal/session"
	"github.com/jmgilman/scad/internal/slogger"
)

// defaultLogPollInterval is how often `session logs -f` polls for new output.
const defaultLogPollInterval = 100 * time.Millisecond

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage agent run sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <config>",
	Short: "Start a new run from a registered config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		branch, _ := cmd.Flags().GetString("branch")
		tag, _ := cmd.Flags().GetString("tag")
		prompt, _ := cmd.Flags().GetString("prompt")
		rebuild, _ := cmd.Flags().GetBool("rebuild")
		if tag == "" {
			return fmt.Errorf("--tag is required")
		}

		slogger.L(cmd.Context()).Info("starting session", "config", args[0], "tag", tag, "rebuild", rebuild)

		runID, err := deps.Sessions.Start(cmd.Context(), args[0], branch, tag, prompt, rebuild)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}

		fmt.Printf("Started run %s\n", runID)
		return nil
	},
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop [<runId>]",
	Short: "Stop a run's container without removing it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		runIDs, err := selectedRunIDs(cmd, deps, args)
		if err != nil {
			return err
		}
		if !confirmBulk(cmd, "stop") {
			return nil
		}

		for _, runID := range runIDs {
			stopped, err := deps.Sessions.Stop(cmd.Context(), runID)
			if err != nil {
				if errors.Is(err, session.ErrUnknownRun) {
					return fmt.Errorf("%w %q", session.ErrUnknownRun, runID)
				}
				return fmt.Errorf("stop session %s: %w", runID, err)
			}
			if !stopped {
				fmt.Printf("Run %s has no running container\n", runID)
				continue
			}
			fmt.Printf("Stopped run %s\n", runID)
		}
		return nil
	},
}

var sessionCleanCmd = &cobra.Command{
	Use:   "clean [<runId>]",
	Short: "Stop, remove, and delete all state for a run",
	Long: `Clean stops and removes a run's container if present, then deletes
the run's entire state directory. This is the only operation that deletes
agent state; it is idempotent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")

		runIDs, err := selectedRunIDs(cmd, deps, args)
		if err != nil {
			return err
		}
		if !confirmBulk(cmd, "clean") {
			return nil
		}

		for _, runID := range runIDs {
			if !force {
				info, err := deps.Sessions.Info(cmd.Context(), runID)
				if err == nil && info.State == session.StateRunning {
					return fmt.Errorf("run %s is still running; pass --force to clean anyway", runID)
				}
			}
			if err := deps.Sessions.Clean(cmd.Context(), runID); err != nil {
				return fmt.Errorf("clean session %s: %w", runID, err)
			}
			fmt.Printf("Cleaned run %s\n", runID)
		}
		return nil
	},
}

// selectedRunIDs resolves the runId-or-(--all/--config) argument group
// shared by `stop` and `clean`: exactly one of a positional run ID or
// one of the bulk-selection flags must be given.
func selectedRunIDs(cmd *cobra.Command, deps *Deps, args []string) ([]string, error) {
	all, _ := cmd.Flags().GetBool("all")
	configName, _ := cmd.Flags().GetString("config")

	hasRunID := len(args) == 1
	hasBulk := all || configName != ""

	switch {
	case hasRunID == hasBulk:
		return nil, fmt.Errorf("specify exactly one of a run ID or --all/--config")
	case hasRunID:
		return args, nil
	}

	infos, err := deps.Sessions.AllSessions(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var runIDs []string
	for _, info := range infos {
		if configName != "" && info.ConfigName != configName {
			continue
		}
		runIDs = append(runIDs, info.RunID)
	}
	return runIDs, nil
}

// confirmBulk prompts for confirmation before a multi-run operation
// unless --yes was passed or only a single run was selected directly.
func confirmBulk(cmd *cobra.Command, verb string) bool {
	yes, _ := cmd.Flags().GetBool("yes")
	all, _ := cmd.Flags().GetBool("all")
	configName, _ := cmd.Flags().GetString("config")
	if yes || (!all && configName == "") {
		return true
	}

	fmt.Printf("Proceed to %s matching runs? [y/N] ", verb)
	var reply string
	fmt.Fscanln(cmd.InOrStdin(), &reply)
	return reply == "y" || reply == "Y"
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List running runs (every run with --all) and their derived state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")

		var infos []session.Info
		if all {
			infos, err = deps.Sessions.AllSessions(cmd.Context())
		} else {
			infos, err = deps.Sessions.ListRunning(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tCONFIG\tBRANCH\tSTATE")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.RunID, info.ConfigName, info.Branch, info.State)
		}
		return w.Flush()
	},
}

var sessionInfoCmd = &cobra.Command{
	Use:   "info <runId>",
	Short: "Show a single run's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		info, err := deps.Sessions.Info(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, session.ErrUnknownRun) {
				return fmt.Errorf("%w %q", session.ErrUnknownRun, args[0])
			}
			return fmt.Errorf("get session info: %w", err)
		}

		fmt.Printf("Run:    %s\n", info.RunID)
		fmt.Printf("Config: %s\n", info.ConfigName)
		fmt.Printf("Branch: %s\n", info.Branch)
		fmt.Printf("State:  %s\n", info.State)
		return nil
	},
}

var sessionLogsCmd = &cobra.Command{
	Use:   "logs <runId>",
	Short: "View a run's setup log (the agent stream log with --stream)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionLogsCmd,
}

func runSessionLogsCmd(cmd *cobra.Command, args []string) error {
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

	follow, _ := cmd.Flags().GetBool("follow")
	lines, _ := cmd.Flags().GetInt("lines")
	full, _ := cmd.Flags().GetBool("full")
	stream, _ := cmd.Flags().GetBool("stream")

	logPath := deps.Paths.SetupLogPath(runID)
	if stream {
		logPath = deps.Paths.StreamLogPath(runID)
	}
	reader := logging.NewReader(logPath)

	if follow {
		return reader.FollowWithHistory(cmd.Context(), os.Stdout, lines, defaultLogPollInterval)
	}

	var logLines []string
	if full {
		logLines, err = reader.ReadAll()
	} else {
		logLines, err = reader.ReadLastN(lines)
	}
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	for _, line := range logLines {
		fmt.Println(line)
	}
	return nil
}

var sessionAttachCmd = &cobra.Command{
	Use:   "attach <runId>",
	Short: "Attach to a run's multiplexer session",
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

		return deps.Runtime.Exec(cmd.Context(), "scad-"+runID, &runtime.ExecConfig{
			Command:     []string{"tmux", "attach-session", "-t", multiplexerSessionName + "-" + runID},
			Interactive: true,
		})
	},
}

// multiplexerSessionName is the prefix of the tmux session every container
// entrypoint creates: the full session name is "scad-<runId>".
const multiplexerSessionName = "scad"

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd, sessionStopCmd, sessionCleanCmd, sessionStatusCmd, sessionInfoCmd, sessionLogsCmd, sessionAttachCmd)

	sessionStartCmd.Flags().String("branch", "", "branch name (auto-generated when omitted)")
	sessionStartCmd.Flags().String("tag", "", "short tag folded into the auto-generated run ID and branch (required)")
	sessionStartCmd.Flags().String("prompt", "", "initial prompt passed to the agent")
	sessionStartCmd.Flags().Bool("rebuild", false, "force a fresh image build even if one already exists")

	sessionStopCmd.Flags().Bool("all", false, "stop every run")
	sessionStopCmd.Flags().String("config", "", "stop every run started from this config")
	sessionStopCmd.Flags().Bool("yes", false, "skip the confirmation prompt for bulk operations")

	sessionCleanCmd.Flags().Bool("all", false, "clean every run")
	sessionCleanCmd.Flags().String("config", "", "clean every run started from this config")
	sessionCleanCmd.Flags().Bool("yes", false, "skip the confirmation prompt for bulk operations")
	sessionCleanCmd.Flags().Bool("force", false, "clean a run even if its container is still running")

	sessionStatusCmd.Flags().Bool("all", false, "include stopped and cleaned runs, not just running ones")

	sessionLogsCmd.Flags().BoolP("follow", "f", false, "follow log output in real-time")
	sessionLogsCmd.Flags().IntP("lines", "n", logging.DefaultTailLines, "number of lines to show")
	sessionLogsCmd.Flags().Bool("full", false, "show the entire log from session start")
	sessionLogsCmd.Flags().Bool("stream", false, "show the agent stream log instead of the setup log")
}
