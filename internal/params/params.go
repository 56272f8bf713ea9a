// Package params normalizes the open parameter maps of spec entries into their single
// canonical representation.
package params

import (
	"fmt"
	"maps"
	"path"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/mohae/deepcopy"

	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// ContextRoot is the reserved namespace resolved by the context renderer in the same
// compile pass. Placeholders under any other namespace are deferred to the execution engine.
const ContextRoot = "core"

// legacyPattern matches "{{ ns.path }}". ns must be an identifier, so the deferred form
// "{{ 'ns/path' | lookup }}" never matches and the rewrite is idempotent.
var legacyPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w-]*)\.([\w.\-]+)\s*\}\}`)

// aliases maps spellings that case conversion alone does not reach to their canonical key.
var aliases = map[string]string{
	"Template":    "TemplateUrl",
	"TemplateURL": "TemplateUrl",
	"Parameters":  "StackParameters",
}

// targetKeys are collected into a list when more than one spelling is given.
var targetKeys = map[string]bool{"Account": true, "Accounts": true, "Region": true, "Regions": true}

// canonicalKey is the PascalCase form of a parameter key, aliases applied.
func canonicalKey(k string) string {
	ck := strcase.ToCamel(k)
	if a, ok := aliases[ck]; ok {
		return a
	}
	return ck
}

// Canonicalize returns a copy of p whose top-level keys are canonical. Spellings of an
// account or region key that collide are merged into one list; any other collision must
// carry equal values. Nested maps are copied but keep their keys, since stack parameters
// and tags are user-named.
func Canonicalize(p map[string]any) (map[string]any, error) {
	if p == nil {
		return nil, nil
	}
	out := make(map[string]any, len(p))
	for _, k := range slices.Sorted(maps.Keys(p)) {
		ck := canonicalKey(k)
		v := deepcopy.Copy(p[k])
		prev, taken := out[ck]
		switch {
		case !taken:
			out[ck] = v
		case targetKeys[ck]:
			out[ck] = append(asList(prev), asList(v)...)
		case !reflect.DeepEqual(prev, v):
			return nil, dserrors.NewValidationError("", ck,
				fmt.Sprintf("parameter %s is given more than once with different values", ck))
		}
	}
	return out, nil
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// RewriteLegacy returns a copy of p with every legacy "{{ ns.path }}" placeholder in a
// string leaf rewritten to the deferred "{{ 'ns/path' | lookup }}" form. Placeholders under
// the context root are left alone. Non-string values are never rewritten.
func RewriteLegacy(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out, _ := rewriteValue(deepcopy.Copy(p)).(map[string]any)
	return out
}

// Normalize canonicalizes keys and rewrites legacy placeholders. It is idempotent.
func Normalize(p map[string]any) (map[string]any, error) {
	c, err := Canonicalize(p)
	if err != nil {
		return nil, err
	}
	return RewriteLegacy(c), nil
}

// RewriteString applies the legacy rewrite to a single value.
func RewriteString(s string) string {
	return legacyPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := legacyPattern.FindStringSubmatch(m)
		if sub[1] == ContextRoot {
			return m
		}
		return fmt.Sprintf("{{ '%s/%s' | lookup }}", sub[1], sub[2])
	})
}

func rewriteValue(v any) any {
	switch t := v.(type) {
	case string:
		return RewriteString(t)
	case map[string]any:
		for k, e := range t {
			t[k] = rewriteValue(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = rewriteValue(e)
		}
		return t
	}
	return v
}

// Store describes where compiled artefacts live.
type Store struct {
	Mode         string
	BucketName   string
	BucketRegion string
	LocalRoot    string
}

// Volume is the URL root of the store: the regional S3 endpoint in s3 mode, the local root
// directory otherwise.
func (s Store) Volume() string {
	if s.Mode == deployment.ModeLocal {
		return strings.TrimRight(s.LocalRoot, "/")
	}
	return fmt.Sprintf("https://s3-%s.amazonaws.com", s.BucketRegion)
}

// ArtifactURL resolves a template reference to its location in the artefact store. Only the
// basename of key is kept; it is placed under the deployment's artefact prefix for scope.
func ArtifactURL(store Store, details deployment.Details, key string, scope deployment.Scope) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if strings.Contains(key, "://") {
		return key
	}
	name := path.Base(strings.ReplaceAll(key, "\\", "/"))
	return strings.Join([]string{store.Volume(), store.BucketName, details.ArtefactsKey(name, scope)}, "/")
}
