// Package mcp provides an MCP (Model Context Protocol) server adapter for
// oasis. It lets AI assistants ask grounded questions about the facility
// dataset, run structured queries and read desert analyses.
package mcp

import "errors"

// ErrMissingAnalysisService is returned when the analysis service is not provided.
var ErrMissingAnalysisService = errors.New("mcp: analysis service is required")
