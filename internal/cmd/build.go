package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmgilman/scad/internal/buildctx"
	"github.com/jmgilman/scad/internal/spinner"
)

var buildCmd = &cobra.Command{
	Use:   "build <config>",
	Short: "Build (or rebuild) a config's image and prune the superseded one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}
		configName := args[0]

		cfg, err := deps.Configs.Load(configName)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")

		previous, err := deps.Images.Info(cmd.Context(), configName)
		if err != nil {
			return fmt.Errorf("inspect existing image: %w", err)
		}
		previousTag := ""
		if previous != nil {
			previousTag = previous.Tag
		}

		stagingDir := filepath.Join(deps.Paths.Base, "build", configName)
		if err := buildctx.Write(cfg, stagingDir); err != nil {
			return fmt.Errorf("stage build context: %w", err)
		}

		if verbose {
			if err := deps.Images.Build(cmd.Context(), configName, stagingDir, os.Stdout); err != nil {
				return fmt.Errorf("build image: %w", err)
			}
		} else {
			spin := spinner.New(os.Stderr)
			buildErr := make(chan error, 1)
			go func() {
				buildErr <- deps.Images.Build(cmd.Context(), configName, stagingDir, spin.Writer())
				spin.Stop()
			}()
			_ = spin.Start()
			if err := <-buildErr; err != nil {
				return fmt.Errorf("build image: %w", err)
			}
		}

		current, err := deps.Images.Info(cmd.Context(), configName)
		if err != nil {
			return fmt.Errorf("inspect new image: %w", err)
		}
		if current != nil {
			deps.Images.PruneOld(cmd.Context(), previousTag, current.Tag)
		}

		fmt.Printf("Built image for config %q\n", configName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolP("verbose", "v", false, "stream build progress to stdout")
}
