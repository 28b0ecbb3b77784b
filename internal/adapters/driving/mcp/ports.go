package mcp

import (
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Analysis backs region_deserts, facility_stats and the resources.
	Analysis driving.AnalysisService

	// Answer backs the ask tool. Optional.
	Answer driving.AnswerService

	// Query backs the query_facilities tool. Optional.
	Query driving.QueryService

	// Telemetry backs the runs resource. Optional.
	Telemetry driving.TelemetryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Analysis == nil {
		return ErrMissingAnalysisService
	}
	return nil
}
