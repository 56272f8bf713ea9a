// Package deployment holds the identity of a deployment and the artefact key layout
// derived from it.
package deployment

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Task is the kind of work a spec describes.
type Task string

const (
	TaskDeploy   Task = "deploy"
	TaskPlan     Task = "plan"
	TaskApply    Task = "apply"
	TaskTeardown Task = "teardown"
)

// Tasks lists every task type in a stable order.
var Tasks = []Task{TaskDeploy, TaskPlan, TaskApply, TaskTeardown}

// Scope is the tag-and-naming granularity an action belongs to.
type Scope string

const (
	ScopePortfolio Scope = "portfolio"
	ScopeApp       Scope = "app"
	ScopeBranch    Scope = "branch"
	ScopeBuild     Scope = "build"
)

// ParseScope validates a scope string. The empty string yields ("", nil).
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case ScopePortfolio:
		return ScopePortfolio, nil
	case ScopeApp:
		return ScopeApp, nil
	case ScopeBranch:
		return ScopeBranch, nil
	case ScopeBuild:
		return ScopeBuild, nil
	}
	return "", fmt.Errorf("invalid scope %q: want one of portfolio, app, branch, build", s)
}

// Storage modes.
const (
	ModeS3    = "s3"
	ModeLocal = "local"
)

// ArtefactsRoot is the first segment of every artefact key.
const ArtefactsRoot = "artefacts"

// Details identifies one deployment.
type Details struct {
	Client      string            `json:"client" yaml:"client"`
	Portfolio   string            `json:"portfolio" yaml:"portfolio"`
	App         string            `json:"app,omitempty" yaml:"app,omitempty"`
	Branch      string            `json:"branch,omitempty" yaml:"branch,omitempty"`
	Build       string            `json:"build,omitempty" yaml:"build,omitempty"`
	Environment string            `json:"environment,omitempty" yaml:"environment,omitempty"`
	Scope       Scope             `json:"scope,omitempty" yaml:"scope,omitempty"`
	Tags        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

var branchUnsafe = regexp.MustCompile(`[^a-z0-9-]`)

// BranchShortName is the branch reduced to a key-safe form: lower case, anything outside
// [a-z0-9-] replaced by '-', at most 20 characters, no trailing '-'.
func (d Details) BranchShortName() string {
	s := branchUnsafe.ReplaceAllString(strings.ToLower(d.Branch), "-")
	if len(s) > 20 {
		s = s[:20]
	}
	return strings.TrimRight(s, "-")
}

// Identity is a stable, human-readable deployment identifier.
func (d Details) Identity() string {
	parts := []string{d.Portfolio}
	for _, p := range []string{d.App, d.BranchShortName(), d.Build} {
		if p == "" {
			break
		}
		parts = append(parts, p)
	}
	if d.Client != "" {
		parts = append([]string{d.Client}, parts...)
	}
	return strings.Join(parts, ":")
}

// ArtefactsKey returns the artefact key for name at the given scope. An empty scope
// means the deployment's own scope, falling back to build.
func (d Details) ArtefactsKey(name string, scope Scope) string {
	if scope == "" {
		scope = d.Scope
	}
	if scope == "" {
		scope = ScopeBuild
	}
	segs := []string{ArtefactsRoot, d.Portfolio}
	add := func(s string) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	switch scope {
	case ScopeApp:
		add(d.App)
	case ScopeBranch:
		add(d.App)
		add(d.BranchShortName())
	case ScopeBuild:
		add(d.App)
		add(d.BranchShortName())
		add(d.Build)
	}
	if name != "" {
		segs = append(segs, name)
	}
	return path.Join(segs...)
}

// Location names a bucket.
type Location struct {
	BucketName   string `json:"bucket_name" yaml:"bucket_name"`
	BucketRegion string `json:"bucket_region" yaml:"bucket_region"`
	Key          string `json:"key,omitempty" yaml:"key,omitempty"`
	Mode         string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// TaskPayload is the input of one compilation invocation.
type TaskPayload struct {
	Task              Task     `json:"task" yaml:"task"`
	DeploymentDetails Details  `json:"deployment_details" yaml:"deployment_details"`
	Package           Location `json:"package" yaml:"package"`
	Actions           Location `json:"actions" yaml:"actions"`
	State             Location `json:"state" yaml:"state"`
}

// WithTask returns a copy of the payload bound to task t.
func (p TaskPayload) WithTask(t Task) TaskPayload {
	p.Task = t
	if p.DeploymentDetails.Tags != nil {
		tags := make(map[string]string, len(p.DeploymentDetails.Tags))
		for k, v := range p.DeploymentDetails.Tags {
			tags[k] = v
		}
		p.DeploymentDetails.Tags = tags
	}
	return p
}

// DefaultBucketName is the automation bucket naming convention for a client.
func DefaultBucketName(client, region string) string {
	return fmt.Sprintf("%s-core-automation-%s", client, region)
}
