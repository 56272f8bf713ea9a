package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployspec/internal/config"
	"github.com/stevehiehn/deployspec/internal/logger"
)

var (
	jsonOutput bool
	cfg        *config.Config
)

// flagPaths maps persistent flags to the configuration keys they override.
var flagPaths = map[string]string{
	"region":       "region",
	"mode":         "mode",
	"local-root":   "local_root",
	"artifact-url": "artifact_url",
	"redis-addr":   "facts.redis_addr",
	"log-level":    "log.level",
	"log-json":     "log.json",
	"metrics-file": "metrics_file",
}

var rootCmd = &cobra.Command{
	Use:           "deployspec",
	Short:         "Compile deployspec packages into deployment actions",
	Long:          "Compile deployment specs into concrete actions, one per account and region.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		overrides := map[string]any{}
		for flag, path := range flagPaths {
			f := cmd.Flags().Lookup(flag)
			if f != nil && f.Changed {
				overrides[path] = f.Value.String()
			}
		}
		loaded, err := config.Load(overrides)
		if err != nil {
			return err
		}
		cfg = loaded

		logger.Init(&logger.Config{
			Level:      logger.ParseLevel(cfg.Log.Level),
			Output:     cmd.ErrOrStderr(),
			JSON:       cfg.Log.JSON,
			TimeFormat: "15:04:05",
		})
		cmd.SetContext(logger.ContextWithLogger(cmd.Context(), logger.GetDefault()))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	pf.String("region", "", "Default region for actions that name none")
	pf.String("mode", "", "Artefact store mode: s3 or local")
	pf.String("local-root", "", "Artefact root directory in local mode")
	pf.String("artifact-url", "", "Bucket URL compiled output is written to, e.g. s3://bucket?region=us-east-1 or file:///tmp/artefacts")
	pf.String("redis-addr", "", "Redis address of the facts store")
	pf.String("log-level", "", "Log level: debug, info, warn, error or disabled")
	pf.Bool("log-json", false, "Log as JSON")
	pf.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
