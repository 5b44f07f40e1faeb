package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage registered project configs",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		names, err := deps.Configs.List()
		if err != nil {
			return fmt.Errorf("list configs: %w", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view <name>",
	Short: "Print a config's raw YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		path, err := deps.Configs.ViewPath(args[0])
		if err != nil {
			return fmt.Errorf("view config: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Open a config in $EDITOR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		path, err := deps.Configs.ViewPath(args[0])
		if err != nil {
			return fmt.Errorf("view config: %w", err)
		}
		return openInEditor(path)
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register an existing config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		name, err := deps.Configs.Register(args[0])
		if err != nil {
			return fmt.Errorf("add config: %w", err)
		}
		fmt.Printf("Registered config %q\n", name)
		return nil
	},
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		if err := deps.Configs.Remove(args[0]); err != nil {
			return fmt.Errorf("remove config: %w", err)
		}
		fmt.Printf("Removed config %q\n", args[0])
		return nil
	},
}

var configNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new config from the template, optionally opening it in $EDITOR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		if err := deps.Configs.New(args[0]); err != nil {
			return fmt.Errorf("create config: %w", err)
		}
		path, err := deps.Configs.ViewPath(args[0])
		if err != nil {
			return fmt.Errorf("view config: %w", err)
		}
		fmt.Printf("Created config %q at %s\n", args[0], path)

		edit, _ := cmd.Flags().GetBool("edit")
		if !edit {
			if os.Getenv("EDITOR") == "" {
				return nil
			}
			edit, err = deps.Prompt.Confirm("Open now?", "Edit the new config in $EDITOR before finishing")
			if err != nil {
				return nil
			}
		}
		if !edit {
			return nil
		}
		return openInEditor(path)
	},
}

// openInEditor launches $EDITOR on path, wiring its stdio directly to the
// terminal so the operator edits interactively.
func openInEditor(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return fmt.Errorf("EDITOR is not set")
	}
	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c.Run()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configViewCmd, configEditCmd, configAddCmd, configRemoveCmd, configNewCmd)
	configNewCmd.Flags().Bool("edit", false, "open the new config in $EDITOR immediately")
}
