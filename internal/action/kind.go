package action

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Kind is one action implementation known to the compiler.
type Kind interface {
	// Name is the canonical identifier written to compiled actions, e.g. AWS::CreateStack.
	Name() string
	// Aliases are the route names spec documents may use instead, e.g. create_stack.
	Aliases() []string
	// AllowMultipleStacks reports whether one entry may fan out over several accounts or regions.
	AllowMultipleStacks() bool
	// Build validates the kind-specific parameters and emits the compiled action.
	Build(in Input) (*Compiled, error)
	// Describe is a one-line human summary of a compiled action of this kind.
	Describe(c *Compiled) string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// typedKind implements Kind over a parameter struct P carrying mapstructure and validate tags.
type typedKind[P any] struct {
	name     string
	aliases  []string
	multi    bool
	prepare  func(params map[string]any)
	emit     func(p *P, in Input) map[string]any
	describe func(c *Compiled) string
}

func (k *typedKind[P]) Name() string              { return k.name }
func (k *typedKind[P]) Aliases() []string         { return k.aliases }
func (k *typedKind[P]) AllowMultipleStacks() bool { return k.multi }

func (k *typedKind[P]) Build(in Input) (*Compiled, error) {
	raw := make(map[string]any, len(in.Params))
	for key, v := range in.Params {
		raw[key] = v
	}
	if k.prepare != nil {
		k.prepare(raw)
	}

	var p P
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: building decoder: %w", k.name, err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &dserrors.CompileError{
			Type:    dserrors.ParameterValidationError,
			Label:   in.Label,
			Message: fmt.Sprintf("%s: %v", k.name, err),
			Err:     err,
		}
	}
	if err := validate.Struct(&p); err != nil {
		return nil, validationError(k.name, in.Label, err)
	}

	params := k.emit(&p, in)
	params["Account"] = in.Account
	params["Region"] = in.Region

	deps := in.DependsOn
	if deps == nil {
		deps = []string{}
	}
	return &Compiled{
		Name:      in.Name,
		Kind:      k.name,
		DependsOn: deps,
		Params:    params,
		Scope:     string(in.Scope),
	}, nil
}

func (k *typedKind[P]) Describe(c *Compiled) string {
	if k.describe != nil {
		return k.describe(c)
	}
	return fmt.Sprintf("%s in %v/%v", k.name, c.Params["Account"], c.Params["Region"])
}

func validationError(kind, label string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dserrors.NewValidationError(label, "", fmt.Sprintf("%s: %v", kind, err))
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s: missing required parameter %s", kind, fe.Field())
	case "oneof":
		msg = fmt.Sprintf("%s: %s must be one of [%s]", kind, fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s: %s failed %q validation", kind, fe.Field(), fe.Tag())
	}
	ce := dserrors.NewValidationError(label, fe.Field(), msg)
	ce.Err = err
	return ce
}
