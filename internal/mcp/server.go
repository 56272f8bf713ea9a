// Package mcp exposes the compiler as Model Context Protocol tools over stdio or SSE.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/stevehiehn/deployspec/internal/artifact"
	"github.com/stevehiehn/deployspec/internal/compiler"
	"github.com/stevehiehn/deployspec/internal/facts"
)

const serverName = "deployspec"

// Options configure the tool server.
type Options struct {
	Version  string
	Compiler *compiler.Compiler
	Facts    facts.Provider
	// Artefacts receives compiled output from the compile tool. Without it the tool
	// reports a storage error.
	Artefacts artifact.Sink
}

// NewServer returns an MCP server with every deployspec tool registered.
func NewServer(o Options) *server.MCPServer {
	if o.Compiler == nil {
		o.Compiler = compiler.New("us-east-1")
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	s := server.NewMCPServer(serverName, o.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Compile deployspec packages into deployment actions. Use deployspec.explain before deployspec.compile."),
	)
	h := &handlers{opts: o}
	s.AddTools(h.tools()...)
	return s
}

// Serve runs the server on stdin and stdout until the input closes.
func Serve(o Options) error {
	return server.ServeStdio(NewServer(o))
}
