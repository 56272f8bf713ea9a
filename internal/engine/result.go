package engine

import (
	"github.com/stevehiehn/deployspec/internal/action"
	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Run statuses.
const (
	StatusComplete = "COMPILE_COMPLETE"
	StatusFailed   = "COMPILE_FAILED"
)

// Result is the structured output of a compilation run.
type Result struct {
	RunID                 string                  `json:"run_id"`
	Status                string                  `json:"status"`
	Message               string                  `json:"message"`
	DeploymentDetails     deployment.Details      `json:"deployment_details"`
	SpecsFound            []deployment.Task       `json:"specs_found"`
	SpecsCompiled         []deployment.Task       `json:"specs_compiled"`
	TotalActionsGenerated int                     `json:"total_actions_generated"`
	Tasks                 []TaskResult            `json:"tasks,omitempty"`
	Errors                []dserrors.CompileError `json:"errors,omitempty"`
}

// TaskResult describes the outcome of compiling one task's spec.
type TaskResult struct {
	Task       deployment.Task     `json:"task"`
	Status     string              `json:"status"` // compiled, explained, failed
	Actions    []*action.Compiled  `json:"actions,omitempty"`
	Explain    []string            `json:"explain,omitempty"`
	Labels     map[string][]string `json:"labels,omitempty"`
	ActionsKey string              `json:"actions_key,omitempty"`
	StateKey   string              `json:"state_key,omitempty"`
	Version    string              `json:"version,omitempty"`
}

// Success reports whether every spec found compiled.
func (r *Result) Success() bool { return r.Status == StatusComplete }
