package engine

import (
	"github.com/google/uuid"

	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/compiler"
	"github.com/stevehiehn/deployspec/internal/deployment"
	"github.com/stevehiehn/deployspec/internal/facts"
	"github.com/stevehiehn/deployspec/internal/loader"
	"github.com/stevehiehn/deployspec/internal/metrics"
)

// RunContext holds everything one compilation run needs.
type RunContext struct {
	RunID     string
	Payload   deployment.TaskPayload
	Loader    *loader.Loader
	Compiler  *compiler.Compiler
	Facts     facts.Provider
	Artefacts artifact.Sink // compiled actions and state are written here in ModeRun
	Metrics   *metrics.Metrics
}

// NewRunContext creates a new run context reading packages from and writing artefacts
// to store.
func NewRunContext(payload deployment.TaskPayload, c *compiler.Compiler, f facts.Provider, store artifact.Sink) *RunContext {
	return &RunContext{
		RunID:     uuid.New().String(),
		Payload:   payload,
		Loader:    loader.New(store, store),
		Compiler:  c,
		Facts:     f,
		Artefacts: store,
	}
}
