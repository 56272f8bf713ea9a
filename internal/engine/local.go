package engine

import (
	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/compiler"
	"github.com/stevehiehn/deployspec/internal/deployment"
	"github.com/stevehiehn/deployspec/internal/facts"
	"github.com/stevehiehn/deployspec/internal/loader"
)

// LocalOptions describe a run over a package on the local filesystem.
type LocalOptions struct {
	Package  string // a package archive or a single spec file
	Payload  deployment.TaskPayload
	Compiler *compiler.Compiler
	Facts    facts.Provider
	// Artefacts receives package files and, in ModeRun, the compiled output. When nil
	// nothing is written.
	Artefacts artifact.Sink
}

// NewLocalRun builds a run context reading the package from disk. The returned
// function closes the package bucket.
func NewLocalRun(o LocalOptions) (*RunContext, func() error, error) {
	src, key, err := artifact.OpenFile(o.Package)
	if err != nil {
		return nil, nil, err
	}
	payload := o.Payload
	payload.Package.Key = key
	if payload.Package.BucketRegion == "" {
		payload.Package.BucketRegion = o.Compiler.DefaultRegion
	}
	if payload.Package.BucketName == "" {
		payload.Package.BucketName = deployment.DefaultBucketName(payload.DeploymentDetails.Client, payload.Package.BucketRegion)
	}

	rc := NewRunContext(payload, o.Compiler, o.Facts, o.Artefacts)
	rc.Loader = loader.New(src, o.Artefacts)
	return rc, src.Close, nil
}
