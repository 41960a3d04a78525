// Package api provides the HTTP API for submitting intents and steering the
// tracked conversation.
package api

import (
	"net/http"

	"github.com/papercomputeco/drift/pkg/metrics"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Metrics, when set, is served on GET /metrics.
	Metrics *metrics.Metrics

	// MCPHandler, when set, is mounted on /mcp.
	MCPHandler http.Handler
}
