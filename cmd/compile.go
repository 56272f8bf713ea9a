package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployspec/internal/engine"
)

var compileCmd = &cobra.Command{
	Use:   "compile <package>",
	Short: "Compile a package and write actions and state to the artefact store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPackage(cmd, args[0], engine.ModeRun)
	},
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <package>",
	Short: "Compile a package and render facts without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPackage(cmd, args[0], engine.ModeDryRun)
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <package>",
	Short: "Describe the actions a package compiles to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPackage(cmd, args[0], engine.ModeExplain)
	},
}

func init() {
	for _, c := range []*cobra.Command{compileCmd, dryRunCmd, explainCmd} {
		addDeploymentFlags(c)
		rootCmd.AddCommand(c)
	}
}
