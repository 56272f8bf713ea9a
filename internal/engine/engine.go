// Package engine runs a compilation: it loads the package, compiles every task's spec
// concurrently, renders facts into the result and, in run mode, persists it.
package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stevehiehn/deployspec/internal/action"
	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/compiler"
	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/facts"
	"github.com/stevehiehn/deployspec/internal/logger"
	"github.com/stevehiehn/deployspec/internal/params"
	"github.com/stevehiehn/deployspec/internal/spec"
	"github.com/stevehiehn/deployspec/internal/template"
)

// Mode controls how far a run goes.
type Mode int

const (
	ModeExplain Mode = iota // compile only
	ModeDryRun              // compile and render
	ModeRun                 // compile, render and persist
)

func (m Mode) String() string {
	switch m {
	case ModeExplain:
		return "explain"
	case ModeDryRun:
		return "dry-run"
	case ModeRun:
		return "run"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Task statuses.
const (
	TaskCompiled  = "compiled"
	TaskExplained = "explained"
	TaskFailed    = "failed"
)

// Execute compiles every spec in the run's package. Compilation failures are reported
// in the result; the returned error is reserved for a misconfigured run context.
func Execute(ctx context.Context, rc *RunContext, mode Mode) (*Result, error) {
	if rc == nil || rc.Loader == nil || rc.Compiler == nil {
		return nil, fmt.Errorf("run context needs a loader and a compiler")
	}
	details := rc.Payload.DeploymentDetails
	log := logger.FromContext(ctx).With("run_id", rc.RunID, "deployment", details.Identity())
	ctx = logger.ContextWithLogger(ctx, log)

	result := &Result{
		RunID:             rc.RunID,
		DeploymentDetails: details,
		SpecsFound:        []deployment.Task{},
		SpecsCompiled:     []deployment.Task{},
	}
	log.Info("Compilation started", "mode", mode)

	specs, err := rc.Loader.Load(ctx, rc.Payload)
	if err != nil {
		return result.fail(log, err), nil
	}
	for _, t := range deployment.Tasks {
		if _, ok := specs[t]; ok {
			result.SpecsFound = append(result.SpecsFound, t)
		}
	}

	var f facts.Facts
	if mode != ModeExplain {
		if f, err = providerOf(rc).GetFacts(ctx, details); err != nil {
			return result.fail(log, err), nil
		}
	}

	tasks := make([]TaskResult, len(result.SpecsFound))
	errs := make([]error, len(result.SpecsFound))
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range result.SpecsFound {
		g.Go(func() error {
			tasks[i], errs[i] = compileTask(gctx, rc, mode, task, specs[task], f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, tr := range tasks {
		result.Tasks = append(result.Tasks, tr)
		if errs[i] != nil {
			ce := dserrors.From(errs[i])
			result.Errors = append(result.Errors, *ce)
			rc.Metrics.ObserveError(string(tr.Task), ce.Type)
			log.Error("Task failed", "task", tr.Task, "error", ce.Error())
			log.Debug("Task failure cause", "task", tr.Task, "cause", ce.Err)
			continue
		}
		result.SpecsCompiled = append(result.SpecsCompiled, tr.Task)
		result.TotalActionsGenerated += len(tr.Actions)
	}

	if len(result.Errors) > 0 {
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("Deployspec compilation failed: %s", result.Errors[0].Error())
	} else {
		result.Status = StatusComplete
		result.Message = fmt.Sprintf("Successfully compiled %d deployspec(s)", len(result.SpecsCompiled))
	}
	log.Info("Compilation finished",
		"status", result.Status,
		"specs_compiled", len(result.SpecsCompiled),
		"actions", result.TotalActionsGenerated,
	)
	return result, nil
}

func (r *Result) fail(log logger.Logger, err error) *Result {
	ce := dserrors.From(err)
	r.Status = StatusFailed
	r.Message = fmt.Sprintf("Deployspec compilation failed: %s", ce.Error())
	r.Errors = append(r.Errors, *ce)
	log.Error("Compilation failed", "error", ce.Error())
	log.Debug("Compilation failure cause", "cause", ce.Err)
	return r
}

func providerOf(rc *RunContext) facts.Provider {
	if rc.Facts != nil {
		return rc.Facts
	}
	return StaticFacts(rc)
}

// StaticFacts derives facts from the run's deployment and artefact bucket alone.
func StaticFacts(rc *RunContext) *facts.Static {
	return &facts.Static{Store: params.Store{
		Mode:         rc.Compiler.Mode,
		BucketName:   rc.Payload.Package.BucketName,
		BucketRegion: rc.Payload.Package.BucketRegion,
		LocalRoot:    rc.Compiler.LocalRoot,
	}}
}

func compileTask(ctx context.Context, rc *RunContext, mode Mode, task deployment.Task, ds *spec.DeploySpec, f facts.Facts) (TaskResult, error) {
	start := time.Now()
	payload := rc.Payload.WithTask(task)
	log := logger.FromContext(ctx).With("task", task)
	tr := TaskResult{Task: task, Status: TaskFailed}

	actions, err := rc.Compiler.Compile(ctx, payload, ds)
	if err != nil {
		return tr, err
	}

	if mode == ModeExplain {
		lm, err := compiler.ResolveLabels(ds, rc.Compiler.DefaultRegion)
		if err != nil {
			return tr, err
		}
		tr.Status = TaskExplained
		tr.Actions = actions
		tr.Labels = lm
		tr.Explain = rc.Compiler.Explain(actions)
		log.Info("Task explained", "actions", len(actions))
		return tr, nil
	}

	rendered, err := template.NewRenderer().Render(actions, f)
	if err != nil {
		return tr, err
	}
	tr.Actions = rendered

	if mode == ModeRun {
		if err := persist(ctx, rc, payload, rendered, f, &tr); err != nil {
			tr.Actions = nil
			return tr, err
		}
	}

	tr.Status = TaskCompiled
	rc.Metrics.ObserveCompile(string(task), kindsOf(rendered), time.Since(start))
	log.Info("Task compiled", "actions", len(rendered), "took", time.Since(start).Round(time.Millisecond))
	return tr, nil
}

// persist writes {prefix}/{task}.actions as YAML and {prefix}/{task}.state as JSON.
func persist(ctx context.Context, rc *RunContext, payload deployment.TaskPayload, actions []*action.Compiled, f facts.Facts, tr *TaskResult) error {
	if rc.Artefacts == nil {
		return dserrors.NewStorageError("no artefact store configured", nil)
	}
	d := payload.DeploymentDetails

	var err error
	tr.ActionsKey = d.ArtefactsKey(string(payload.Task)+".actions", "")
	if tr.Version, err = artifact.PutYAML(ctx, rc.Artefacts, tr.ActionsKey, actions); err != nil {
		return err
	}

	tr.StateKey = d.ArtefactsKey(string(payload.Task)+".state", "")
	if _, err := artifact.PutJSON(ctx, rc.Artefacts, tr.StateKey, f); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Persisted task", "actions_key", tr.ActionsKey, "state_key", tr.StateKey)
	return nil
}

func kindsOf(actions []*action.Compiled) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}
