package action

import (
	"github.com/mohae/deepcopy"

	"github.com/stevehiehn/deployspec/internal/deployment"
)

// Compiled is one fully resolved action bound to exactly one account and one region.
// DependsOn holds compiled names, never labels.
type Compiled struct {
	Name      string         `yaml:"name" json:"name"`
	Kind      string         `yaml:"kind" json:"kind"`
	DependsOn []string       `yaml:"depends_on" json:"depends_on"`
	Params    map[string]any `yaml:"params" json:"params"`
	Scope     string         `yaml:"scope" json:"scope"`
}

// Clone returns a deep copy of c.
func (c *Compiled) Clone() *Compiled {
	if c == nil {
		return nil
	}
	out := &Compiled{
		Name:   c.Name,
		Kind:   c.Kind,
		Scope:  c.Scope,
		Params: deepcopy.Copy(c.Params).(map[string]any),
	}
	if c.DependsOn != nil {
		out.DependsOn = append([]string{}, c.DependsOn...)
	}
	return out
}

// Input is what a kind needs to build one compiled action. Params are already
// canonicalized, rewritten and URL-resolved.
type Input struct {
	Name      string
	Label     string
	Account   string
	Region    string
	Scope     deployment.Scope
	DependsOn []string
	Params    map[string]any
	Tags      map[string]string
}
