package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stevehiehn/deployspec/internal/deployment"
	"github.com/stevehiehn/deployspec/internal/engine"
	"github.com/stevehiehn/deployspec/internal/spec"
)

type handlers struct {
	opts Options
}

func packageArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("package", mcp.Required(),
			mcp.Description("Path to a package archive or a single spec file")),
		mcp.WithObject("details", mcp.Required(),
			mcp.Description("Deployment details: client, portfolio, app, branch, build, environment, scope, tags")),
		mcp.WithString("bucket_name", mcp.Description("Artefact bucket; defaults to {client}-core-automation-{region}")),
		mcp.WithString("bucket_region", mcp.Description("Artefact bucket region; defaults to the compiler region")),
	}
}

func (h *handlers) tools() []server.ServerTool {
	withPackage := func(name, desc string, extra ...mcp.ToolOption) mcp.Tool {
		opts := append([]mcp.ToolOption{mcp.WithDescription(desc)}, packageArgs()...)
		return mcp.NewTool(name, append(opts, extra...)...)
	}
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("deployspec.validate",
				mcp.WithDescription("Validate a deployspec file: structure, action kinds and labels"),
				mcp.WithString("file", mcp.Required(), mcp.Description("Path to the spec file")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: h.validate,
		},
		{
			Tool:    withPackage("deployspec.explain", "Compile a package and describe each action without rendering facts", mcp.WithReadOnlyHintAnnotation(true)),
			Handler: h.mode(engine.ModeExplain),
		},
		{
			Tool:    withPackage("deployspec.dry_run", "Compile a package and render facts without writing anything", mcp.WithReadOnlyHintAnnotation(true)),
			Handler: h.mode(engine.ModeDryRun),
		},
		{
			Tool:    withPackage("deployspec.compile", "Compile a package and write the compiled actions and state to the artefact store", mcp.WithDestructiveHintAnnotation(false)),
			Handler: h.mode(engine.ModeRun),
		},
		{
			Tool: mcp.NewTool("deployspec.schema",
				mcp.WithDescription("Return the JSON schema of a deployspec document"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: h.schema,
		},
		{
			Tool: mcp.NewTool("deployspec.kinds",
				mcp.WithDescription("List the registered action kinds"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: h.kinds,
		},
	}
}

func (h *handlers) validate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ds, err := spec.LoadFile(file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.opts.Compiler.Check(ds); err != nil {
		return mcp.NewToolResultError("Validation failed: " + err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Spec is valid: %d action(s).", len(ds.Actions))), nil
}

func (h *handlers) mode(m engine.Mode) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pkg, err := req.RequireString("package")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payload, err := payloadOf(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		opts := engine.LocalOptions{
			Package:  pkg,
			Payload:  payload,
			Compiler: h.opts.Compiler,
			Facts:    h.opts.Facts,
		}
		if m == engine.ModeRun {
			opts.Artefacts = h.opts.Artefacts
		}
		rc, closeFn, err := engine.NewLocalRun(opts)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer closeFn()

		result, err := engine.Execute(ctx, rc, m)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, err
		}
		if !result.Success() {
			return mcp.NewToolResultError(string(data)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func payloadOf(req mcp.CallToolRequest) (deployment.TaskPayload, error) {
	var p deployment.TaskPayload
	args := req.GetArguments()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &p.DeploymentDetails,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(args["details"]); err != nil {
		return p, fmt.Errorf("invalid details: %w", err)
	}
	if p.DeploymentDetails.Portfolio == "" {
		return p, fmt.Errorf("details.portfolio is required")
	}
	p.Package.BucketName = req.GetString("bucket_name", "")
	p.Package.BucketRegion = req.GetString("bucket_region", "")
	return p, nil
}

func (h *handlers) schema(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := spec.JSONSchema()
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handlers) kinds(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(h.opts.Compiler.Registry.Names())
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
