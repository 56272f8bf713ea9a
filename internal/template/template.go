// Package template renders the deployment context into compiled actions.
//
// Every string field is scanned for "{{ ... }}" spans. Spans under the core root are
// evaluated against the facts; deferred lookups ("{{ 'ns/path' | lookup }}") are left for
// the execution engine; anything else is an undefined variable.
package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/stevehiehn/deployspec/internal/action"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/facts"
)

// ErrorKind classifies a render failure.
type ErrorKind string

const (
	ErrSyntax    ErrorKind = "syntax"
	ErrUndefined ErrorKind = "undefined"
	ErrRuntime   ErrorKind = "runtime"
)

// RenderError is the cause carried by a TEMPLATE_RENDER_ERROR.
type RenderError struct {
	Kind     ErrorKind
	Action   string
	Field    string
	Expr     string
	Variable string
	Err      error
}

func (e *RenderError) Error() string {
	switch e.Kind {
	case ErrUndefined:
		return fmt.Sprintf("undefined variable %q in %q", e.Variable, e.Expr)
	case ErrSyntax:
		return fmt.Sprintf("syntax error in %q: %v", e.Expr, e.Err)
	}
	return fmt.Sprintf("error evaluating %q: %v", e.Expr, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

var (
	spanRe     = regexp.MustCompile(`\{\{-?\s*(.*?)\s*-?\}\}`)
	deferredRe = regexp.MustCompile(`^'[^']*'\s*\|\s*lookup$`)
	identRe    = regexp.MustCompile(`^[A-Za-z_][\w.]*`)
)

// Renderer substitutes facts into strings. It caches parsed expressions and is not safe
// for concurrent use.
type Renderer struct {
	funcs template.FuncMap
	cache map[string]*template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{
		funcs: sprig.TxtFuncMap(),
		cache: map[string]*template.Template{},
	}
}

// Render returns rendered copies of actions. The inputs are not modified.
func Render(actions []*action.Compiled, f facts.Facts) ([]*action.Compiled, error) {
	return NewRenderer().Render(actions, f)
}

func (r *Renderer) Render(actions []*action.Compiled, f facts.Facts) ([]*action.Compiled, error) {
	data := map[string]any{facts.Root: map[string]any(f)}
	out := make([]*action.Compiled, 0, len(actions))
	for _, a := range actions {
		c := a.Clone()
		w := &walker{r: r, data: data, action: a.Name}
		c.Name = w.str("name", c.Name)
		c.Kind = w.str("kind", c.Kind)
		c.Scope = w.str("scope", c.Scope)
		for i, d := range c.DependsOn {
			c.DependsOn[i] = w.str(fmt.Sprintf("depends_on[%d]", i), d)
		}
		for k, v := range c.Params {
			c.Params[k] = w.value("params."+k, v)
		}
		if w.err != nil {
			return nil, w.err
		}
		out = append(out, c)
	}
	return out, nil
}

type walker struct {
	r      *Renderer
	data   map[string]any
	action string
	err    error
}

func (w *walker) value(field string, v any) any {
	switch t := v.(type) {
	case string:
		return w.str(field, t)
	case map[string]any:
		for k, e := range t {
			t[k] = w.value(field+"."+k, e)
		}
		return t
	case map[string]string:
		for k, e := range t {
			t[k] = w.str(field+"."+k, e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = w.value(fmt.Sprintf("%s[%d]", field, i), e)
		}
		return t
	case []string:
		for i, e := range t {
			t[i] = w.str(fmt.Sprintf("%s[%d]", field, i), e)
		}
		return t
	}
	return v
}

// str renders every span in s. After the first error it returns its input unchanged.
func (w *walker) str(field, s string) string {
	if w.err != nil || !strings.Contains(s, "{{") {
		return s
	}
	return spanRe.ReplaceAllStringFunc(s, func(span string) string {
		if w.err != nil {
			return span
		}
		expr := spanRe.FindStringSubmatch(span)[1]
		out, rerr := w.r.eval(expr, w.data)
		if rerr != nil {
			rerr.Action = w.action
			rerr.Field = field
			w.err = &dserrors.CompileError{
				Type:    dserrors.TemplateRenderError,
				Label:   w.action,
				Field:   field,
				Message: rerr.Error(),
				Err:     rerr,
			}
			return span
		}
		if out == nil {
			return span
		}
		return *out
	})
}

// eval returns nil when the span is a deferred lookup to be kept verbatim.
func (r *Renderer) eval(expr string, data map[string]any) (*string, *RenderError) {
	if deferredRe.MatchString(expr) {
		return nil, nil
	}
	root, _, _ := strings.Cut(identRe.FindString(expr), ".")
	if root != facts.Root {
		variable := identRe.FindString(expr)
		if variable == "" {
			variable = expr
		}
		return nil, &RenderError{Kind: ErrUndefined, Expr: expr, Variable: variable}
	}

	tmpl, ok := r.cache[expr]
	if !ok {
		var err error
		tmpl, err = template.New("expr").Option("missingkey=error").Funcs(r.funcs).Parse("{{ ." + expr + " }}")
		if err != nil {
			return nil, &RenderError{Kind: ErrSyntax, Expr: expr, Err: err}
		}
		r.cache[expr] = tmpl
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		variable, _, _ := strings.Cut(strings.TrimSpace(expr), "|")
		variable = strings.TrimSpace(variable)
		if isMissingKey(err) {
			return nil, &RenderError{Kind: ErrUndefined, Expr: expr, Variable: variable, Err: err}
		}
		return nil, &RenderError{Kind: ErrRuntime, Expr: expr, Variable: variable, Err: err}
	}
	out := buf.String()
	return &out, nil
}

func isMissingKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "map has no entry for key") || strings.Contains(msg, "nil pointer evaluating")
}
