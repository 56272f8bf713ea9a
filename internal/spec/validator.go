package spec

import (
	"fmt"

	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Validate checks a spec for structural correctness. Kinds, scopes and dependency
// references are checked later by the compiler, which knows the registry and the label map.
func Validate(d *DeploySpec) error {
	if d == nil || len(d.Actions) == 0 {
		return dserrors.NewPackagingError("spec has no actions", nil)
	}
	for i, a := range d.Actions {
		if a.Label == "" {
			return &dserrors.CompileError{
				Type:    dserrors.PackagingError,
				Message: fmt.Sprintf("action at index %d has no label", i),
				Hint:    "Every action needs a label unique within the spec",
			}
		}
		if a.Kind == "" {
			return &dserrors.CompileError{
				Type:    dserrors.PackagingError,
				Label:   a.Label,
				Message: "action has no kind",
				Field:   "kind",
			}
		}
		for _, dep := range a.DependsOn {
			if dep == "" {
				return &dserrors.CompileError{
					Type:    dserrors.PackagingError,
					Label:   a.Label,
					Message: "depends_on contains an empty label",
					Field:   "depends_on",
				}
			}
		}
	}
	return nil
}
