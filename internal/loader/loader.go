// Package loader reads a deployment package, classifies the spec files it holds by task
// and copies every file to the artefact store.
package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
	"github.com/stevehiehn/deployspec/internal/logger"
	"github.com/stevehiehn/deployspec/internal/spec"
)

// SpecFiles maps each recognized spec file name to its task.
var SpecFiles = map[string]deployment.Task{
	"deployspec.yaml":   deployment.TaskDeploy,
	"deployspec.yml":    deployment.TaskDeploy,
	"deployspec.json":   deployment.TaskDeploy,
	"planspec.yaml":     deployment.TaskPlan,
	"planspec.json":     deployment.TaskPlan,
	"applyspec.yaml":    deployment.TaskApply,
	"applyspec.json":    deployment.TaskApply,
	"teardownspec.yaml": deployment.TaskTeardown,
	"teardownspec.json": deployment.TaskTeardown,
}

// Loader reads packages from Source and copies their contents to Artefacts. The two
// may be the same store.
type Loader struct {
	Source    artifact.Sink
	Artefacts artifact.Sink
}

func New(source, artefacts artifact.Sink) *Loader {
	return &Loader{Source: source, Artefacts: artefacts}
}

// Load returns the specs of the package named by payload, keyed by task.
func (l *Loader) Load(ctx context.Context, payload deployment.TaskPayload) (map[deployment.Task]*spec.DeploySpec, error) {
	key := payload.Package.Key
	if key == "" {
		return nil, dserrors.NewPackagingError("package key is required", nil)
	}
	log := logger.FromContext(ctx)
	log.Info("Reading package", "bucket", payload.Package.BucketName, "key", key)

	data, err := l.Source.Get(ctx, key)
	if err != nil {
		return nil, dserrors.NewPackagingError(fmt.Sprintf("reading package %s", key), err)
	}

	if spec.FormatOf(key) != "" {
		return l.loadFile(ctx, payload, key, data)
	}
	return l.loadArchive(ctx, payload, data)
}

func (l *Loader) loadFile(ctx context.Context, payload deployment.TaskPayload, key string, data []byte) (map[deployment.Task]*spec.DeploySpec, error) {
	name := path.Base(key)
	task, ok := SpecFiles[strings.ToLower(name)]
	if !ok {
		task = payload.Task
	}
	if task == "" {
		task = deployment.TaskDeploy
	}

	ds, err := parse(name, data)
	if err != nil {
		return nil, err
	}
	if err := l.upload(ctx, payload.DeploymentDetails, name, ds, nil); err != nil {
		return nil, err
	}
	return map[deployment.Task]*spec.DeploySpec{task: ds}, nil
}

func (l *Loader) loadArchive(ctx context.Context, payload deployment.TaskPayload, data []byte) (map[deployment.Task]*spec.DeploySpec, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, dserrors.NewPackagingError("package is not a readable archive", err)
	}
	log := logger.FromContext(ctx)

	specs := map[deployment.Task]*spec.DeploySpec{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		name, err := sanitizeEntryName(f.Name)
		if err != nil {
			return nil, err
		}
		body, err := readEntry(f)
		if err != nil {
			return nil, err
		}

		var ds *spec.DeploySpec
		if task, ok := SpecFiles[name]; ok {
			if _, dup := specs[task]; dup {
				return nil, dserrors.NewPackagingError(fmt.Sprintf("package holds more than one %s spec", task), nil)
			}
			log.Info("Loading spec", "name", name, "task", task)
			if ds, err = parse(name, body); err != nil {
				return nil, err
			}
			specs[task] = ds
		}
		if err := l.upload(ctx, payload.DeploymentDetails, name, ds, body); err != nil {
			return nil, err
		}
	}

	if len(specs) == 0 {
		return nil, dserrors.NewPackagingError("package does not contain any spec files", nil)
	}
	return specs, nil
}

// upload writes a recognized spec re-serialized, anything else byte for byte.
func (l *Loader) upload(ctx context.Context, d deployment.Details, name string, ds *spec.DeploySpec, raw []byte) error {
	if l.Artefacts == nil {
		return nil
	}
	body := raw
	if ds != nil {
		var err error
		if body, err = spec.Encode(ds, spec.FormatOf(name)); err != nil {
			return dserrors.NewPackagingError(fmt.Sprintf("encoding %s", name), err)
		}
	}
	key := d.ArtefactsKey(name, "")
	logger.FromContext(ctx).Debug("Uploading artefact", "key", key)
	if _, err := l.Artefacts.Put(ctx, key, body); err != nil {
		return err
	}
	return nil
}

func parse(name string, data []byte) (*spec.DeploySpec, error) {
	ds, err := spec.Load(data, spec.FormatOf(name))
	if err != nil {
		return nil, dserrors.NewPackagingError(fmt.Sprintf("parsing %s", name), err)
	}
	if err := spec.Validate(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, dserrors.NewPackagingError(fmt.Sprintf("opening %s", f.Name), err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, dserrors.NewPackagingError(fmt.Sprintf("reading %s", f.Name), err)
	}
	return body, nil
}

// sanitizeEntryName keeps entry paths inside the artefact prefix.
func sanitizeEntryName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", dserrors.NewPackagingError(fmt.Sprintf("archive entry %q escapes the package root", name), nil)
	}
	return clean, nil
}
