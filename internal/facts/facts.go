// Package facts supplies the deployment context the renderer substitutes under the "core" root.
package facts

import (
	"context"

	"dario.cat/mergo"
	"github.com/mohae/deepcopy"

	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Root is the name facts are published under in templates.
const Root = "core"

// Facts is the hierarchical deployment context.
type Facts map[string]any

// Provider returns the facts for one deployment. It is queried once per compilation run.
type Provider interface {
	GetFacts(ctx context.Context, details deployment.Details) (Facts, error)
}

// Clone returns a deep copy of f.
func (f Facts) Clone() Facts {
	if f == nil {
		return nil
	}
	return deepcopy.Copy(f).(Facts)
}

// Merge overlays each layer on base, later layers winning, nested maps merged key by key.
func Merge(base Facts, layers ...Facts) (Facts, error) {
	out := map[string]any(base.Clone())
	if out == nil {
		out = map[string]any{}
	}
	for _, l := range layers {
		if len(l) == 0 {
			continue
		}
		src := map[string]any(l.Clone())
		if err := mergo.Merge(&out, src, mergo.WithOverride); err != nil {
			return nil, dserrors.NewFactsError("merging facts", err)
		}
	}
	return Facts(out), nil
}
