package action

import (
	"fmt"
	"sort"
	"strings"

	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Registry maps kind identifiers, canonical or route name, to kinds. It is built once
// and read-only afterwards.
type Registry struct {
	kinds []Kind
	byID  map[string]Kind
}

// NewRegistry builds a registry over kinds. A later kind claiming an identifier
// already taken is an error.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{byID: map[string]Kind{}}
	for _, k := range kinds {
		for _, id := range append([]string{k.Name()}, k.Aliases()...) {
			key := normalizeID(id)
			if prev, ok := r.byID[key]; ok {
				return nil, fmt.Errorf("kind identifier %q claimed by both %s and %s", id, prev.Name(), k.Name())
			}
			r.byID[key] = k
		}
		r.kinds = append(r.kinds, k)
	}
	return r, nil
}

// DefaultRegistry returns a registry of the builtin kinds.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

func normalizeID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// IsValid returns true if id names a registered kind.
func (r *Registry) IsValid(id string) bool {
	_, ok := r.byID[normalizeID(id)]
	return ok
}

// Lookup returns the kind for id.
func (r *Registry) Lookup(id string) (Kind, error) {
	k, ok := r.byID[normalizeID(id)]
	if !ok {
		return nil, dserrors.NewUnknownKindError("", id, r.Names())
	}
	return k, nil
}

// ValidateAndBuild looks up id and builds one compiled action from in.
func (r *Registry) ValidateAndBuild(id string, in Input) (*Compiled, error) {
	k, err := r.Lookup(id)
	if err != nil {
		if ce, ok := err.(*dserrors.CompileError); ok {
			ce.Label = in.Label
		}
		return nil, err
	}
	return k.Build(in)
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

// Names returns every accepted identifier, sorted.
func (r *Registry) Names() []string {
	var out []string
	for _, k := range r.kinds {
		out = append(out, k.Name())
		out = append(out, k.Aliases()...)
	}
	sort.Strings(out)
	return out
}
