// Package scope decides which deployment scope an action belongs to and the ownership
// tags that scope implies.
package scope

import (
	"fmt"
	"regexp"
	"strings"

	"dario.cat/mergo"

	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Tag keys, cumulative from portfolio down to build.
const (
	TagPortfolio = "Portfolio"
	TagApp       = "App"
	TagBranch    = "Branch"
	TagBuild     = "Build"
)

var placeholderSpan = regexp.MustCompile(`\{\{.*?\}\}`)

// markers in priority order; the first scope whose marker appears in a placeholder wins.
var markers = []struct {
	scope  deployment.Scope
	tokens []string
}{
	{deployment.ScopeBuild, []string{"Build"}},
	{deployment.ScopeBranch, []string{"Branch"}},
	{deployment.ScopeApp, []string{"App"}},
	{deployment.ScopePortfolio, []string{"Portfolio", "Project"}},
}

// Resolve returns the scope of an action. An explicit scope on the action wins, then
// the deployment default, then inference from the stack name.
func Resolve(explicit, deploymentDefault, stackName string) (deployment.Scope, error) {
	s, err := deployment.ParseScope(explicit)
	if err != nil {
		return "", &dserrors.CompileError{
			Type:    dserrors.ParameterValidationError,
			Field:   "scope",
			Message: err.Error(),
		}
	}
	if s != "" {
		return s, nil
	}
	if s, err = deployment.ParseScope(deploymentDefault); err == nil && s != "" {
		return s, nil
	}
	return Infer(stackName), nil
}

// Infer reads the scope from the deployment placeholders in a stack name. Only text
// inside "{{ }}" counts, so a literal "App" in a name does not change the scope.
func Infer(stackName string) deployment.Scope {
	spans := strings.Join(placeholderSpan.FindAllString(stackName, -1), " ")
	if spans == "" {
		return deployment.ScopeBuild
	}
	for _, m := range markers {
		for _, tok := range m.tokens {
			if strings.Contains(spans, tok) {
				return m.scope
			}
		}
	}
	return deployment.ScopeBuild
}

// Tags computes the ownership tags for scope and merges userTags over them. It returns nil
// when no tag could be computed.
func Tags(scope deployment.Scope, details deployment.Details, userTags map[string]string) map[string]string {
	if scope == "" {
		scope = deployment.ScopeBuild
	}
	tags := map[string]string{}
	if details.Portfolio != "" {
		tags[TagPortfolio] = details.Portfolio
	}
	if details.App != "" && scope != deployment.ScopePortfolio {
		tags[TagApp] = details.App
	}
	if details.Branch != "" && (scope == deployment.ScopeBranch || scope == deployment.ScopeBuild) {
		tags[TagBranch] = details.Branch
	}
	if details.Build != "" && scope == deployment.ScopeBuild {
		tags[TagBuild] = details.Build
	}
	for _, extra := range []map[string]string{details.Tags, userTags} {
		if len(extra) == 0 {
			continue
		}
		// merging two string maps cannot fail
		_ = mergo.Merge(&tags, extra, mergo.WithOverride)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// UserTags extracts a string tag map from a parameter value. Non-string values are
// formatted with their default representation.
func UserTags(v any) map[string]string {
	switch t := v.(type) {
	case map[string]string:
		return t
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, e := range t {
			out[k] = fmt.Sprint(e)
		}
		return out
	}
	return nil
}
