package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetails() Details {
	return Details{
		Client:    "acme",
		Portfolio: "test_portfolio",
		App:       "test_app",
		Branch:    "test_branch",
		Build:     "test_build",
	}
}

func TestArtefactsKeyPerScope(t *testing.T) {
	d := testDetails()
	tests := []struct {
		scope Scope
		want  string
	}{
		{ScopePortfolio, "artefacts/test_portfolio/vpc.yaml"},
		{ScopeApp, "artefacts/test_portfolio/test_app/vpc.yaml"},
		{ScopeBranch, "artefacts/test_portfolio/test_app/test-branch/vpc.yaml"},
		{ScopeBuild, "artefacts/test_portfolio/test_app/test-branch/test_build/vpc.yaml"},
		{"", "artefacts/test_portfolio/test_app/test-branch/test_build/vpc.yaml"},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			assert.Equal(t, tt.want, d.ArtefactsKey("vpc.yaml", tt.scope))
		})
	}
}

func TestArtefactsKeyUsesDeploymentScope(t *testing.T) {
	d := testDetails()
	d.Scope = ScopeApp
	assert.Equal(t, "artefacts/test_portfolio/test_app", d.ArtefactsKey("", ""))
}

func TestBranchShortName(t *testing.T) {
	d := Details{Branch: "Feature/JIRA_123-a-very-long-branch-name"}
	assert.Equal(t, "feature-jira-123-a-v", d.BranchShortName())
	d.Branch = "main"
	assert.Equal(t, "main", d.BranchShortName())
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope(" App ")
	require.NoError(t, err)
	assert.Equal(t, ScopeApp, s)

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, Scope(""), s)

	_, err = ParseScope("galaxy")
	assert.Error(t, err)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "acme:test_portfolio:test_app:test-branch:test_build", testDetails().Identity())
	assert.Equal(t, "p", Details{Portfolio: "p"}.Identity())
}

func TestWithTaskCopiesTags(t *testing.T) {
	p := TaskPayload{Task: TaskDeploy, DeploymentDetails: Details{Tags: map[string]string{"a": "1"}}}
	q := p.WithTask(TaskTeardown)
	q.DeploymentDetails.Tags["a"] = "2"
	assert.Equal(t, TaskTeardown, q.Task)
	assert.Equal(t, "1", p.DeploymentDetails.Tags["a"])
}
