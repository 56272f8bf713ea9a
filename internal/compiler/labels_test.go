package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehiehn/deployspec/internal/action"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/spec"
)

func TestResolveLabelsOrder(t *testing.T) {
	ds := &spec.DeploySpec{Actions: []spec.ActionSpec{
		{Label: "vpc", Kind: "create_stack", Params: map[string]any{"accounts": []any{"a1", "a2"}, "regions": []any{"r1", "r2"}}},
		{Label: "user", Kind: "create_user", Params: map[string]any{"Account": 123456789012}},
	}}
	lm, err := ResolveLabels(ds, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vpc-a1-r1", "vpc-a1-r2", "vpc-a2-r1", "vpc-a2-r2"}, lm["vpc"])
	assert.Equal(t, []string{"user-123456789012-us-east-1"}, lm["user"])
}

func TestResolveLabelsRejects(t *testing.T) {
	tests := map[string][]spec.ActionSpec{
		"duplicate": {
			{Label: "a", Kind: "delete_stack"},
			{Label: "a", Kind: "delete_stack"},
		},
		"placeholder label": {
			{Label: "{{ core.App }}-vpc", Kind: "delete_stack"},
		},
		"placeholder reference": {
			{Label: "a", Kind: "delete_stack", DependsOn: []string{"{{ core.App }}-vpc"}},
		},
		"cycle": {
			{Label: "a", Kind: "delete_stack", DependsOn: []string{"b"}},
			{Label: "b", Kind: "delete_stack", DependsOn: []string{"c"}},
			{Label: "c", Kind: "delete_stack", DependsOn: []string{"a"}},
		},
		"self": {
			{Label: "a", Kind: "delete_stack", DependsOn: []string{"a"}},
		},
	}
	for name, actions := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveLabels(&spec.DeploySpec{Actions: actions}, "us-east-1")
			require.Error(t, err)
			assert.True(t, dserrors.IsDependencyResolution(err), err.Error())
		})
	}
}

func TestTranslate(t *testing.T) {
	lm := LabelMap{"a": {"a-1-r"}, "b": {"b-1-r", "b-2-r"}}
	deps, err := lm.Translate("x", []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1-r", "b-2-r", "a-1-r"}, deps)

	deps, err = lm.Translate("x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, deps)

	_, err = lm.Translate("x", []string{"c"})
	assert.True(t, dserrors.IsDependencyResolution(err))
}

func TestExpandTemplatesOwnTheirParams(t *testing.T) {
	k, err := action.DefaultRegistry().Lookup("delete_stack")
	require.NoError(t, err)
	as := spec.ActionSpec{Label: "s", Params: map[string]any{
		"accounts":   []any{"1", "2"},
		"stack_name": "s",
		"tags":       map[string]any{"A": "x"},
	}}
	tpls, err := Expand(as, k, "r")
	require.NoError(t, err)
	require.Len(t, tpls, 2)
	assert.NotContains(t, tpls[0].Params, "Accounts")
	tpls[0].Params["Tags"].(map[string]any)["A"] = "changed"
	assert.Equal(t, "x", tpls[1].Params["Tags"].(map[string]any)["A"])
	assert.Equal(t, "x", as.Params["tags"].(map[string]any)["A"])
}

func TestTargetsOfDedup(t *testing.T) {
	tg := TargetsOf(map[string]any{
		"Accounts": []any{"1", "2", "1"},
		"Account":  "2",
		"Region":   "r",
	}, "default")
	assert.Equal(t, []string{"1", "2"}, tg.Accounts)
	assert.Equal(t, []string{"r"}, tg.Regions)
}
