package spec

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// DeploySpec is the ordered list of actions declared for one task type.
type DeploySpec struct {
	Actions []ActionSpec `yaml:"actions" json:"actions"`
}

// ActionSpec is one declared unit of intent, before fan-out.
// Params is open; aliases such as account/accounts or stack_name/StackName are
// normalized by the compiler, not here.
type ActionSpec struct {
	Label     string         `yaml:"label" json:"label" jsonschema:"required"`
	Kind      string         `yaml:"kind" json:"kind" jsonschema:"required"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Scope     string         `yaml:"scope,omitempty" json:"scope,omitempty" jsonschema:"enum=portfolio,enum=app,enum=branch,enum=build"`
}

// Labels returns the declared labels in order.
func (d *DeploySpec) Labels() []string {
	out := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		out = append(out, a.Label)
	}
	return out
}

// JSONSchema returns the JSON schema of a spec document.
func JSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&DeploySpec{})
	s.Title = "deployspec"
	s.Description = "Declarative deployment specification: a list of actions fanned out over accounts and regions"
	return json.MarshalIndent(s, "", "  ")
}
