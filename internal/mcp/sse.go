package mcp

import (
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// NewSSEHandler serves the tools over SSE at /sse and /message, plus a /health probe.
func NewSSEHandler(o Options) http.Handler {
	sse := server.NewSSEServer(NewServer(o))
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "server": serverName})
	})
	mux.Handle("/", sse)
	return mux
}

// ServeSSE listens on addr until the server fails.
func ServeSSE(addr string, o Options) error {
	return http.ListenAndServe(addr, NewSSEHandler(o))
}
