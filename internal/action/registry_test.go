package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

func TestDefaultRegistryKnowsBuiltins(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range []string{
		"create_stack", "AWS::CreateStack", "delete_stack", "create_change_set",
		"apply_change_set", "delete_change_set", "create_user", "delete_user", "aws::deleteuser",
	} {
		assert.True(t, r.IsValid(id), id)
	}
	assert.False(t, r.IsValid("launch_rocket"))
	assert.Len(t, r.Kinds(), 7)
}

func TestLookupMultipleStacksMetadata(t *testing.T) {
	r := DefaultRegistry()
	tests := map[string]bool{
		"create_stack":      true,
		"delete_stack":      true,
		"delete_user":       true,
		"create_user":       false,
		"create_change_set": false,
		"apply_change_set":  false,
		"delete_change_set": false,
	}
	for id, multi := range tests {
		k, err := r.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, multi, k.AllowMultipleStacks(), id)
	}
}

func TestLookupUnknownKind(t *testing.T) {
	_, err := DefaultRegistry().ValidateAndBuild("launch_rocket", Input{Label: "x"})
	require.Error(t, err)
	assert.True(t, dserrors.IsUnknownActionKind(err))
	assert.Contains(t, err.Error(), "action x")
}

func TestNewRegistryRejectsClashingIdentifiers(t *testing.T) {
	b := Builtins()
	_, err := NewRegistry(b[0], b[0])
	assert.Error(t, err)
}

func TestBuildCreateStack(t *testing.T) {
	in := Input{
		Name:      "vpc-111-us-east-1",
		Label:     "vpc",
		Account:   "111",
		Region:    "us-east-1",
		Scope:     "app",
		DependsOn: []string{"net-111-us-east-1"},
		Tags:      map[string]string{"Portfolio": "p"},
		Params: map[string]any{
			"StackName":        "{{ core.Portfolio }}-vpc",
			"TemplateUrl":      "https://s3-us-east-1.amazonaws.com/b/artefacts/p/vpc.yaml",
			"StackParameters":  map[string]any{"Cidr": "10.0.0.0/16"},
			"StackPolicy":      map[string]any{"Statement": []any{map[string]any{"Effect": "Allow"}}},
			"TimeoutInMinutes": "30",
			"Accounts":         []any{"111"},
		},
	}
	c, err := DefaultRegistry().ValidateAndBuild("create_stack", in)
	require.NoError(t, err)
	assert.Equal(t, "vpc-111-us-east-1", c.Name)
	assert.Equal(t, KindCreateStack, c.Kind)
	assert.Equal(t, "app", c.Scope)
	assert.Equal(t, []string{"net-111-us-east-1"}, c.DependsOn)
	assert.Equal(t, "111", c.Params["Account"])
	assert.Equal(t, "us-east-1", c.Params["Region"])
	assert.Equal(t, 30, c.Params["TimeoutInMinutes"])
	assert.Equal(t, `{"Statement":[{"Effect":"Allow"}]}`, c.Params["StackPolicy"])
	assert.Equal(t, map[string]string{"Portfolio": "p"}, c.Params["Tags"])
	assert.NotContains(t, c.Params, "Accounts")
}

func TestBuildMissingRequiredField(t *testing.T) {
	_, err := DefaultRegistry().ValidateAndBuild("create_stack", Input{
		Label:  "vpc",
		Params: map[string]any{"StackName": "s"},
	})
	require.Error(t, err)
	assert.True(t, dserrors.IsParameterValidation(err))
	var ce *dserrors.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "TemplateUrl", ce.Field)
	assert.Equal(t, "vpc", ce.Label)
}

func TestBuildRejectsBadOnFailure(t *testing.T) {
	_, err := DefaultRegistry().ValidateAndBuild("create_stack", Input{
		Params: map[string]any{"StackName": "s", "TemplateUrl": "t", "OnFailure": "EXPLODE"},
	})
	var ce *dserrors.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "OnFailure", ce.Field)
}

func TestBuildDeleteUserFoldsUserName(t *testing.T) {
	c, err := DefaultRegistry().ValidateAndBuild("delete_user", Input{
		Params: map[string]any{"UserName": "bob", "UserNames": []any{"alice"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, c.Params["UserNames"])
	assert.Equal(t, []string{}, c.DependsOn)

	_, err = DefaultRegistry().ValidateAndBuild("delete_user", Input{Params: map[string]any{}})
	assert.True(t, dserrors.IsParameterValidation(err))
}

func TestBuildChangeSetKinds(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range []string{"apply_change_set", "delete_change_set"} {
		_, err := r.ValidateAndBuild(id, Input{Params: map[string]any{"StackName": "s"}})
		var ce *dserrors.CompileError
		require.ErrorAs(t, err, &ce, id)
		assert.Equal(t, "ChangeSetName", ce.Field)
	}
	c, err := r.ValidateAndBuild("create_change_set", Input{
		Params: map[string]any{"StackName": "s", "ChangeSetName": "cs", "TemplateUrl": "t"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindCreateChangeSet, c.Kind)
	assert.NotContains(t, c.Params, "Tags")
}

func TestDescribe(t *testing.T) {
	r := DefaultRegistry()
	k, err := r.Lookup("delete_stack")
	require.NoError(t, err)
	c, err := k.Build(Input{Account: "1", Region: "r", Params: map[string]any{"StackName": "s"}})
	require.NoError(t, err)
	assert.Equal(t, "delete stack s in 1/r", k.Describe(c))
}

func TestCloneIsDeep(t *testing.T) {
	c := &Compiled{Name: "n", Params: map[string]any{"Tags": map[string]any{"A": "1"}}, DependsOn: []string{"x"}}
	d := c.Clone()
	d.Params["Tags"].(map[string]any)["A"] = "2"
	d.DependsOn[0] = "y"
	assert.Equal(t, "1", c.Params["Tags"].(map[string]any)["A"])
	assert.Equal(t, "x", c.DependsOn[0])
}
