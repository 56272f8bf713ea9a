package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/compiler"
	"github.com/stevehiehn/deployspec/internal/deployment"
	"github.com/stevehiehn/deployspec/internal/engine"
	"github.com/stevehiehn/deployspec/internal/facts"
	"github.com/stevehiehn/deployspec/internal/logger"
	"github.com/stevehiehn/deployspec/internal/metrics"
)

var errCompileFailed = errors.New("compilation failed")

// deploymentFlags describe the deployment a package is compiled for.
type deploymentFlags struct {
	payloadFile  string
	client       string
	portfolio    string
	app          string
	branch       string
	build        string
	environment  string
	scope        string
	tags         []string
	bucketName   string
	bucketRegion string
}

var deployFlags deploymentFlags

func addDeploymentFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&deployFlags.payloadFile, "payload", "", "Task payload file (YAML or JSON); flags override its fields")
	f.StringVar(&deployFlags.client, "client", "", "Deployment client; defaults to the configured client")
	f.StringVar(&deployFlags.portfolio, "portfolio", "", "Deployment portfolio")
	f.StringVar(&deployFlags.app, "app", "", "Deployment app")
	f.StringVar(&deployFlags.branch, "branch", "", "Deployment branch")
	f.StringVar(&deployFlags.build, "build", "", "Deployment build")
	f.StringVar(&deployFlags.environment, "environment", "", "Deployment environment")
	f.StringVar(&deployFlags.scope, "scope", "", "Deployment scope: portfolio, app, branch or build")
	f.StringArrayVar(&deployFlags.tags, "tag", nil, "Deployment tag (key=value)")
	f.StringVar(&deployFlags.bucketName, "bucket", "", "Artefact bucket name")
	f.StringVar(&deployFlags.bucketRegion, "bucket-region", "", "Artefact bucket region")
}

// parseTags converts ["key=value", ...] to a map.
func parseTags(raw []string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	m := map[string]string{}
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}

// payload merges the payload file, the configured client and the deployment flags.
func (f deploymentFlags) payload() (deployment.TaskPayload, error) {
	var p deployment.TaskPayload
	if f.payloadFile != "" {
		data, err := os.ReadFile(f.payloadFile)
		if err != nil {
			return p, fmt.Errorf("reading payload: %w", err)
		}
		// JSON is a subset of YAML
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("parsing payload: %w", err)
		}
	}
	d := &p.DeploymentDetails
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if d.Client == "" && cfg != nil {
		d.Client = cfg.Client
	}
	set(&d.Client, f.client)
	set(&d.Portfolio, f.portfolio)
	set(&d.App, f.app)
	set(&d.Branch, f.branch)
	set(&d.Build, f.build)
	set(&d.Environment, f.environment)
	set(&p.Package.BucketName, f.bucketName)
	set(&p.Package.BucketRegion, f.bucketRegion)
	if f.scope != "" {
		sc, err := deployment.ParseScope(f.scope)
		if err != nil {
			return p, err
		}
		d.Scope = sc
	}
	for k, v := range parseTags(f.tags) {
		if d.Tags == nil {
			d.Tags = map[string]string{}
		}
		d.Tags[k] = v
	}
	if d.Portfolio == "" {
		return p, fmt.Errorf("a portfolio is required: pass --portfolio or --payload")
	}
	return p, nil
}

func newCompiler() *compiler.Compiler {
	c := compiler.New(cfg.Region)
	c.Mode = cfg.Mode
	c.LocalRoot = cfg.LocalRoot
	return c
}

func openArtefacts(cmd *cobra.Command) (*artifact.Store, error) {
	if cfg.ArtifactURL == "" {
		return nil, nil
	}
	return artifact.Open(cmd.Context(), cfg.ArtifactURL, artifact.WithRetry(cfg.Retry.Attempts, cfg.Retry.BaseDelay))
}

// runPackage compiles the package at path in mode and prints the result.
func runPackage(cmd *cobra.Command, path string, mode engine.Mode) error {
	ctx := cmd.Context()
	p, err := deployFlags.payload()
	if err != nil {
		return err
	}

	opts := engine.LocalOptions{Package: path, Payload: p, Compiler: newCompiler()}
	if mode == engine.ModeRun {
		store, err := openArtefacts(cmd)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("compile needs an artefact store: pass --artifact-url or set DEPLOYSPEC_ARTIFACT_URL")
		}
		defer store.Close()
		opts.Artefacts = store
	}

	rc, closeFn, err := engine.NewLocalRun(opts)
	if err != nil {
		return err
	}
	defer closeFn()
	rc.Metrics = metrics.New()

	if cfg.Facts.RedisAddr != "" {
		r := facts.NewRedis(cfg.Facts.RedisAddr, cfg.Facts.Prefix, engine.StaticFacts(rc))
		defer r.Close()
		rc.Facts = r
	}

	result, err := engine.Execute(ctx, rc, mode)
	if err != nil {
		return err
	}
	if err := rc.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.FromContext(ctx).Warn("Writing metrics failed", "path", cfg.MetricsFile, "error", err)
	}

	if err := printResult(cmd.OutOrStdout(), result, mode); err != nil {
		return err
	}
	if !result.Success() {
		return errCompileFailed
	}
	return nil
}

func printResult(w io.Writer, r *engine.Result, mode engine.Mode) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(r)
	}

	for _, tr := range r.Tasks {
		switch tr.Status {
		case engine.TaskFailed:
			fmt.Fprintf(w, "[%s] failed\n", tr.Task)
		case engine.TaskExplained:
			fmt.Fprintf(w, "[%s] %d action(s)\n", tr.Task, len(tr.Actions))
			for _, line := range tr.Explain {
				fmt.Fprintf(w, "  %s\n", line)
			}
		default:
			fmt.Fprintf(w, "[%s] %d action(s)", tr.Task, len(tr.Actions))
			if tr.ActionsKey != "" {
				fmt.Fprintf(w, " written to %s", tr.ActionsKey)
			}
			fmt.Fprintln(w)
			if mode == engine.ModeDryRun {
				data, err := yaml.Marshal(tr.Actions)
				if err != nil {
					return err
				}
				for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
		}
	}

	fmt.Fprintln(w, r.Message)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  Error: %s\n", e.Error())
		if e.Hint != "" {
			fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
		}
	}
	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
	return nil
}
