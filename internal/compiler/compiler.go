// Package compiler turns a parsed spec into compiled actions: one per spec entry, account
// and region, with dependencies expressed as compiled names.
package compiler

import (
	"context"
	"fmt"

	"github.com/stevehiehn/deployspec/internal/action"
	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/logger"
	"github.com/stevehiehn/deployspec/internal/params"
	"github.com/stevehiehn/deployspec/internal/scope"
	"github.com/stevehiehn/deployspec/internal/spec"
)

// Compiler holds what stays fixed across compilation runs.
type Compiler struct {
	Registry      *action.Registry
	DefaultRegion string
	// Mode is the artefact store mode, s3 or local. LocalRoot is used in local mode.
	Mode      string
	LocalRoot string
}

// New returns a compiler over the builtin kinds.
func New(defaultRegion string) *Compiler {
	return &Compiler{
		Registry:      action.DefaultRegistry(),
		DefaultRegion: defaultRegion,
		Mode:          deployment.ModeS3,
	}
}

// Compile expands ds into compiled actions for the deployment in payload. Output order is
// spec entry order, then accounts, then regions. Any error aborts the whole run.
func (c *Compiler) Compile(ctx context.Context, payload deployment.TaskPayload, ds *spec.DeploySpec) ([]*action.Compiled, error) {
	log := logger.FromContext(ctx).With("task", payload.Task)

	if err := spec.Validate(ds); err != nil {
		return nil, err
	}

	// every kind must be known before anything is expanded
	kinds := make([]action.Kind, len(ds.Actions))
	for i, as := range ds.Actions {
		k, err := c.Registry.Lookup(as.Kind)
		if err != nil {
			return nil, withLabel(err, as.Label)
		}
		kinds[i] = k
	}

	lm, err := ResolveLabels(ds, c.DefaultRegion)
	if err != nil {
		return nil, err
	}
	log.Debug("Resolved labels", "labels", len(lm))

	details := payload.DeploymentDetails
	store := params.Store{
		Mode:         c.Mode,
		BucketName:   payload.Package.BucketName,
		BucketRegion: payload.Package.BucketRegion,
		LocalRoot:    c.LocalRoot,
	}

	var out []*action.Compiled
	for i, as := range ds.Actions {
		entry := as
		if entry.Params, err = params.Normalize(as.Params); err != nil {
			return nil, withLabel(err, as.Label)
		}

		templates, err := Expand(entry, kinds[i], c.DefaultRegion)
		if err != nil {
			return nil, err
		}
		deps, err := lm.Translate(as.Label, as.DependsOn)
		if err != nil {
			return nil, err
		}

		for _, tpl := range templates {
			stackName, _ := tpl.Params["StackName"].(string)
			sc, err := scope.Resolve(as.Scope, string(details.Scope), stackName)
			if err != nil {
				return nil, withLabel(err, as.Label)
			}
			if ref, ok := tpl.Params["TemplateUrl"].(string); ok {
				tpl.Params["TemplateUrl"] = params.ArtifactURL(store, details, ref, sc)
			}
			compiled, err := kinds[i].Build(action.Input{
				Name:      tpl.Name,
				Label:     as.Label,
				Account:   tpl.Account,
				Region:    tpl.Region,
				Scope:     sc,
				DependsOn: append([]string{}, deps...),
				Params:    tpl.Params,
				Tags:      scope.Tags(sc, details, scope.UserTags(tpl.Params["Tags"])),
			})
			if err != nil {
				return nil, err
			}
			out = append(out, compiled)
		}
		log.Debug("Compiled entry", "label", as.Label, "kind", kinds[i].Name(), "actions", len(templates))
	}
	return out, nil
}

// Check validates ds without a deployment: structure, kinds and the label graph.
func (c *Compiler) Check(ds *spec.DeploySpec) error {
	if err := spec.Validate(ds); err != nil {
		return err
	}
	for _, as := range ds.Actions {
		if _, err := c.Registry.Lookup(as.Kind); err != nil {
			return withLabel(err, as.Label)
		}
	}
	lm, err := ResolveLabels(ds, c.DefaultRegion)
	if err != nil {
		return err
	}
	for _, as := range ds.Actions {
		if _, err := lm.Translate(as.Label, as.DependsOn); err != nil {
			return err
		}
	}
	return nil
}

// Explain returns one human-readable line per compiled action.
func (c *Compiler) Explain(actions []*action.Compiled) []string {
	lines := make([]string, 0, len(actions))
	for _, a := range actions {
		k, err := c.Registry.Lookup(a.Kind)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s: %s", a.Name, a.Kind))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", a.Name, k.Describe(a)))
	}
	return lines
}

func withLabel(err error, label string) error {
	if ce, ok := err.(*dserrors.CompileError); ok && ce.Label == "" {
		ce.Label = label
	}
	return err
}
