package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMinimalSpec(t *testing.T) {
	data := []byte(`
- label: vpc
  kind: create_stack
  params:
    account: "111"
    stack_name: "{{ core.Portfolio }}-vpc"
`)
	ds, err := Load(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, ds.Actions, 1)
	a := ds.Actions[0]
	assert.Equal(t, "vpc", a.Label)
	assert.Equal(t, "create_stack", a.Kind)
	assert.Equal(t, "111", a.Params["account"])
	assert.Empty(t, a.DependsOn)
}

func TestLoadKeepsTargetScalarsAsText(t *testing.T) {
	data := []byte(`
- label: vpc
  kind: create_stack
  params:
    account: 012345678901
    accounts: [123456789012, 0777]
    timeout_in_minutes: 5
`)
	ds, err := Load(data, FormatYAML)
	require.NoError(t, err)
	p := ds.Actions[0].Params
	assert.Equal(t, "012345678901", p["account"])
	assert.Equal(t, []any{"123456789012", "0777"}, p["accounts"])
	assert.Equal(t, 5, p["timeout_in_minutes"])
}

func TestLoadActionsMapWithAliases(t *testing.T) {
	data := []byte(`
actions:
  - Label: user
    type: create_user
    Params:
      UserName: bob
    DependsOn: vpc
    Scope: app
  - label: vpc
    action: AWS::CreateStack
`)
	ds, err := Load(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, ds.Actions, 2)
	assert.Equal(t, "create_user", ds.Actions[0].Kind)
	assert.Equal(t, []string{"vpc"}, ds.Actions[0].DependsOn)
	assert.Equal(t, "app", ds.Actions[0].Scope)
	assert.Equal(t, "AWS::CreateStack", ds.Actions[1].Kind)
	assert.Equal(t, []string{"user", "vpc"}, ds.Labels())
}

func TestLoadJSONSpec(t *testing.T) {
	data := []byte(`[
	{"label": "vpc", "kind": "create_stack", "params": {"accounts": ["1", "2"], "timeout_in_minutes": 30}, "depends_on": []}
]`)
	ds, err := Load(data, FormatJSON)
	require.NoError(t, err)
	require.Len(t, ds.Actions, 1)
	assert.Equal(t, []any{"1", "2"}, ds.Actions[0].Params["accounts"])
	assert.Equal(t, 30, ds.Actions[0].Params["timeout_in_minutes"])
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	_, err := Load([]byte(`:::not valid yaml[[[`), FormatYAML)
	assert.Error(t, err)
}

func TestLoadRejectsEmptySpec(t *testing.T) {
	_, err := Load([]byte(`actions: []`), FormatYAML)
	assert.Error(t, err)
	_, err = Load([]byte(``), FormatYAML)
	assert.Error(t, err)
}

func TestLoadRejectsScalarDocument(t *testing.T) {
	_, err := Load([]byte(`hello`), FormatYAML)
	assert.Error(t, err)
}

func TestLoadRejectsNonStringDependsOn(t *testing.T) {
	_, err := Load([]byte(`
- label: a
  kind: create_stack
  depends_on: [1]
`), FormatYAML)
	assert.Error(t, err)
}

func TestLoadFileUsesExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployspec.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"actions":[{"label":"a","kind":"delete_stack"}]}`), 0o644))
	ds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "delete_stack", ds.Actions[0].Kind)
}

func TestMarshalRoundTrip(t *testing.T) {
	ds := &DeploySpec{Actions: []ActionSpec{{Label: "a", Kind: "delete_stack", DependsOn: []string{"b"}}}}
	out, err := Marshal(ds)
	require.NoError(t, err)
	back, err := Load(out, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, ds.Actions, back.Actions)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("a/b/deployspec.yml"))
	assert.Equal(t, FormatJSON, FormatOf("planspec.JSON"))
	assert.Equal(t, Format(""), FormatOf("package.zip"))
}

func TestJSONSchemaMentionsFields(t *testing.T) {
	out, err := JSONSchema()
	require.NoError(t, err)
	assert.Contains(t, string(out), "depends_on")
	assert.Contains(t, string(out), "deployspec")
}
