package compiler

import (
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/stevehiehn/deployspec/internal/action"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/params"
	"github.com/stevehiehn/deployspec/internal/spec"
)

// Template is one spec entry bound to a single account and region, not yet built by its kind.
type Template struct {
	Label   string
	Name    string
	Account string
	Region  string
	// Params are canonical and carry no target keys; each template owns its copy.
	Params map[string]any
}

// Expand fans a spec entry out over its target set. Kinds that do not allow multiple stacks
// must resolve to exactly one account and one region.
func Expand(as spec.ActionSpec, kind action.Kind, defaultRegion string) ([]Template, error) {
	p, err := params.Canonicalize(as.Params)
	if err != nil {
		return nil, withLabel(err, as.Label)
	}
	t := TargetsOf(p, defaultRegion)

	if len(t.Accounts) == 0 || len(t.Regions) == 0 {
		return nil, dserrors.NewCardinalityError(as.Label,
			fmt.Sprintf("%s needs at least one account and one region, got %d accounts and %d regions",
				kind.Name(), len(t.Accounts), len(t.Regions)))
	}
	if !kind.AllowMultipleStacks() && (len(t.Accounts) > 1 || len(t.Regions) > 1) {
		return nil, dserrors.NewCardinalityError(as.Label,
			fmt.Sprintf("%s targets a single stack, got %d accounts and %d regions",
				kind.Name(), len(t.Accounts), len(t.Regions)))
	}

	for _, k := range []string{keyAccount, keyAccounts, keyRegion, keyRegions} {
		delete(p, k)
	}

	out := make([]Template, 0, len(t.Accounts)*len(t.Regions))
	for _, a := range t.Accounts {
		for _, r := range t.Regions {
			cp, _ := deepcopy.Copy(p).(map[string]any)
			if cp == nil {
				cp = map[string]any{}
			}
			out = append(out, Template{
				Label:   as.Label,
				Name:    ActionName(as.Label, a, r),
				Account: a,
				Region:  r,
				Params:  cp,
			})
		}
	}
	return out, nil
}
