package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployspec/internal/spec"
)

var validateCmd = &cobra.Command{
	Use:   "validate <spec>",
	Short: "Validate a spec file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ds, err := spec.LoadFile(args[0])
		if err == nil {
			err = newCompiler().Check(ds)
		}
		if err != nil {
			if jsonOutput {
				_ = json.NewEncoder(out).Encode(map[string]any{"valid": false, "error": err.Error()})
			}
			return fmt.Errorf("validation failed: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(out).Encode(map[string]any{"valid": true, "actions": len(ds.Actions)})
		}
		fmt.Fprintf(out, "Spec is valid: %d action(s).\n", len(ds.Actions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
