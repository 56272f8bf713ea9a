package cmd

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehiehn/deployspec/internal/engine"
)

const deploySpec = `
- label: vpc
  kind: create_stack
  params:
    account: "111"
    stack_name: "{{ core.App }}-vpc"
    template_url: templates/vpc.yaml
- label: user
  kind: create_user
  depends_on: [vpc]
  params: {account: "111", user_name: bob}
`

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	deployFlags.tags = nil
	t.Setenv("DEPLOYSPEC_LOG_LEVEL", "disabled")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writePackage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"deployspec.yaml":    deploySpec,
		"templates/vpc.yaml": "Resources: {}\n",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return writeFile(t, t.TempDir(), "package.zip", buf.String())
}

var deploymentArgs = []string{"--client", "c", "--portfolio", "p", "--app", "a", "--branch", "main", "--build", "3"}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "validate", writeFile(t, dir, "deployspec.yaml", deploySpec))
	require.NoError(t, err)
	assert.Equal(t, "Spec is valid: 2 action(s).\n", out)

	_, err = run(t, "validate", writeFile(t, dir, "bad.yaml", "- label: x\n  kind: AWS::Nope\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNKNOWN_ACTION_KIND")

	out, err = run(t, "validate", "--json", writeFile(t, dir, "cycle.yaml", `
- {label: a, kind: delete_stack, depends_on: [b], params: {account: "1", stack_name: a}}
- {label: b, kind: delete_stack, depends_on: [a], params: {account: "1", stack_name: b}}
`))
	require.Error(t, err)
	assert.Contains(t, out, `"valid":false`)
}

func TestExplainCommand(t *testing.T) {
	args := append([]string{"explain", writePackage(t), "--region", "eu-west-1"}, deploymentArgs...)
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "[deploy] 2 action(s)")
	assert.Contains(t, out, "vpc-111-eu-west-1: create stack {{ core.App }}-vpc")
	assert.Contains(t, out, "Successfully compiled 1 deployspec(s)")
}

func TestDryRunCommandJSON(t *testing.T) {
	args := append([]string{"dry-run", writePackage(t), "--json"}, deploymentArgs...)
	out, err := run(t, args...)
	require.NoError(t, err)

	var result engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, engine.StatusComplete, result.Status)
	assert.Equal(t, 2, result.TotalActionsGenerated)
	assert.Equal(t, "a-vpc", result.Tasks[0].Actions[0].Params["StackName"])
}

func TestDryRunRequiresPortfolio(t *testing.T) {
	_, err := run(t, "dry-run", writePackage(t), "--client", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portfolio")
}

func TestDryRunReadsPayloadFile(t *testing.T) {
	payload := writeFile(t, t.TempDir(), "payload.yaml", `
task: deploy
deployment_details:
  client: c
  portfolio: p
  app: fromfile
  branch: main
  build: "9"
`)
	out, err := run(t, "dry-run", writePackage(t), "--payload", payload, "--json")
	require.NoError(t, err)

	var result engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "fromfile-vpc", result.Tasks[0].Actions[0].Params["StackName"])
}

func TestCompileCommand(t *testing.T) {
	_, err := run(t, append([]string{"compile", writePackage(t)}, deploymentArgs...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artefact store")

	artefacts := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "deployspec.prom")
	args := append([]string{"compile", writePackage(t), "--artifact-url", "file://" + artefacts, "--metrics-file", metricsFile}, deploymentArgs...)
	out, err := run(t, args...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "written to artefacts/p/a/main/3/deploy.actions")

	_, err = os.Stat(filepath.Join(artefacts, "artefacts", "p", "a", "main", "3", "deploy.actions"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(artefacts, "artefacts", "p", "a", "main", "3", "templates", "vpc.yaml"))
	assert.NoError(t, err)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "deployspec_actions_compiled_total")
}

func TestSchemaAndKindsCommands(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "depends_on")

	out, err = run(t, "kinds", "--json")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Contains(t, names, "AWS::DeleteUser")
}

func TestParseTags(t *testing.T) {
	assert.Nil(t, parseTags(nil))
	assert.Equal(t, map[string]string{"team": "core", "cost": "a=b"}, parseTags([]string{"team=core", "cost=a=b", "junk"}))
}
