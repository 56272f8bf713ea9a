package main

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/deployspec/internal/action"
	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/compiler"
	"github.com/stevehiehn/deployspec/internal/deployment"
	"github.com/stevehiehn/deployspec/internal/engine"
	"github.com/stevehiehn/deployspec/internal/facts"
	"github.com/stevehiehn/deployspec/internal/logger"
	"github.com/stevehiehn/deployspec/internal/metrics"
)

const deploySpec = `
- label: vpc
  kind: create_stack
  params:
    account: "111"
    region: us-east-1
    stack_name: "{{ core.Portfolio }}-{{ core.App }}-vpc"
    template_url: templates/vpc.yaml
    stack_parameters:
      Owner: "{{ core.Owner | upper }}"
      BucketName: "{{ portfolio.name }}"
- label: users
  kind: delete_user
  depends_on: [vpc]
  params:
    accounts: ["111", "222", "333"]
    region: us-east-1
    user_names: [alice]
- label: old
  kind: delete_stack
  params:
    accounts: ["111", "222"]
    regions: [us-east-1, us-west-2]
    stack_name: old-stack
`

func payload() deployment.TaskPayload {
	return deployment.TaskPayload{
		Task: deployment.TaskDeploy,
		DeploymentDetails: deployment.Details{
			Client:    "test_client",
			Portfolio: "test_portfolio",
			App:       "test_app",
			Branch:    "feature/Login-Page",
			Build:     "42",
		},
		Package: deployment.Location{
			BucketName:   "test_client-core-automation-ap-southeast-1",
			BucketRegion: "ap-southeast-1",
			Key:          "packages/test_portfolio/test_app/42/package.zip",
		},
	}
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func setup(t *testing.T) (*engine.RunContext, *artifact.Store) {
	t.Helper()
	ctx := context.Background()
	store := artifact.New(memblob.OpenBucket(nil))
	t.Cleanup(func() { _ = store.Close() })

	p := payload()
	_, err := store.Put(ctx, p.Package.Key, zipOf(t, map[string]string{
		"deployspec.yaml":    deploySpec,
		"templates/vpc.yaml": "Resources: {}\n",
	}))
	require.NoError(t, err)

	rc := engine.NewRunContext(p, compiler.New("us-east-1"), nil, store)
	rc.Metrics = metrics.New()

	mr := miniredis.RunT(t)
	r := facts.NewRedis(mr.Addr(), "", engine.StaticFacts(rc))
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Put(ctx, p.DeploymentDetails, deployment.ScopePortfolio, facts.Facts{"Owner": "platform"}))
	rc.Facts = r
	return rc, store
}

func TestCompilePackageE2E(t *testing.T) {
	rc, store := setup(t)
	ctx := logger.ContextWithLogger(context.Background(), logger.NewLogger(logger.TestConfig()))

	result, err := engine.Execute(ctx, rc, engine.ModeRun)
	require.NoError(t, err)
	require.True(t, result.Success(), result.Message)
	assert.Equal(t, 8, result.TotalActionsGenerated)

	data, err := store.Get(ctx, "artefacts/test_portfolio/test_app/feature-login-page/42/deploy.actions")
	require.NoError(t, err)
	var actions []action.Compiled
	require.NoError(t, yaml.Unmarshal(data, &actions))
	require.Len(t, actions, 8)

	vpc := actions[0]
	assert.Equal(t, "vpc-111-us-east-1", vpc.Name)
	assert.Equal(t, "test_portfolio-test_app-vpc", vpc.Params["StackName"])
	assert.Equal(t,
		"https://s3-ap-southeast-1.amazonaws.com/test_client-core-automation-ap-southeast-1/artefacts/test_portfolio/test_app/vpc.yaml",
		vpc.Params["TemplateUrl"])
	stackParams := vpc.Params["StackParameters"].(map[string]any)
	assert.Equal(t, "PLATFORM", stackParams["Owner"])
	assert.Equal(t, "{{ 'portfolio/name' | lookup }}", stackParams["BucketName"])

	var users []string
	for _, a := range actions[1:4] {
		assert.Equal(t, action.KindDeleteUser, a.Kind)
		assert.Equal(t, []string{"vpc-111-us-east-1"}, a.DependsOn)
		users = append(users, a.Name)
	}
	assert.Equal(t, []string{"users-111-us-east-1", "users-222-us-east-1", "users-333-us-east-1"}, users)
	assert.Equal(t, "old-111-us-east-1", actions[4].Name)
	assert.Equal(t, "old-222-us-west-2", actions[7].Name)

	// the template travelled with the package
	tpl, err := store.Get(ctx, "artefacts/test_portfolio/test_app/feature-login-page/42/templates/vpc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Resources: {}\n", string(tpl))

	ok, err := store.Exists(ctx, "artefacts/test_portfolio/test_app/feature-login-page/42/deploy.state")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileIsDeterministicE2E(t *testing.T) {
	var outputs [][]byte
	for i := 0; i < 2; i++ {
		rc, store := setup(t)
		result, err := engine.Execute(context.Background(), rc, engine.ModeRun)
		require.NoError(t, err)
		require.True(t, result.Success(), result.Message)
		data, err := store.Get(context.Background(), result.Tasks[0].ActionsKey)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
}
