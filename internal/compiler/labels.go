package compiler

import (
	"fmt"
	"strings"

	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/params"
	"github.com/stevehiehn/deployspec/internal/spec"
)

// LabelMap maps a spec label to the compiled names it expands to.
type LabelMap map[string][]string

// ResolveLabels computes the label map of a whole spec. It must run over every entry before
// any depends_on is translated, since references may point forward.
//
// Labels are resolved before the context is rendered, so a label or reference holding a
// placeholder could never match. Such labels are rejected instead of silently mismatching.
func ResolveLabels(ds *spec.DeploySpec, defaultRegion string) (LabelMap, error) {
	lm := make(LabelMap, len(ds.Actions))
	for _, as := range ds.Actions {
		if strings.Contains(as.Label, "{{") {
			return nil, dserrors.NewDependencyError(as.Label, "label contains a template placeholder and cannot be referenced")
		}
		if _, dup := lm[as.Label]; dup {
			return nil, dserrors.NewDependencyError(as.Label, "duplicate label")
		}
		for _, dep := range as.DependsOn {
			if strings.Contains(dep, "{{") {
				return nil, dserrors.NewDependencyError(as.Label, fmt.Sprintf("depends_on %q contains a template placeholder", dep))
			}
		}
		p, err := params.Canonicalize(as.Params)
		if err != nil {
			return nil, withLabel(err, as.Label)
		}
		lm[as.Label] = TargetsOf(p, defaultRegion).Names(as.Label)
	}
	if err := checkCycles(ds); err != nil {
		return nil, err
	}
	return lm, nil
}

// Translate expands depends_on labels into compiled names, in reference order.
func (lm LabelMap) Translate(label string, dependsOn []string) ([]string, error) {
	out := []string{}
	for _, dep := range dependsOn {
		names, ok := lm[dep]
		if !ok {
			return nil, &dserrors.CompileError{
				Type:    dserrors.DependencyResolution,
				Label:   label,
				Field:   "depends_on",
				Message: fmt.Sprintf("depends_on references unknown label %q", dep),
			}
		}
		out = append(out, names...)
	}
	return out, nil
}

// checkCycles rejects specs whose labels depend on each other in a loop. Unknown
// references are left for Translate to report.
func checkCycles(ds *spec.DeploySpec) error {
	deps := make(map[string][]string, len(ds.Actions))
	for _, as := range ds.Actions {
		deps[as.Label] = as.DependsOn
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(deps))
	var visit func(label string, path []string) error
	visit = func(label string, path []string) error {
		switch state[label] {
		case visiting:
			return dserrors.NewDependencyError(label, "dependency cycle: "+strings.Join(append(path, label), " -> "))
		case done:
			return nil
		}
		state[label] = visiting
		for _, d := range deps[label] {
			if _, known := deps[d]; !known {
				continue
			}
			if err := visit(d, append(path, label)); err != nil {
				return err
			}
		}
		state[label] = done
		return nil
	}
	for _, as := range ds.Actions {
		if err := visit(as.Label, nil); err != nil {
			return err
		}
	}
	return nil
}
