// Package domain defines the core entities of the facility intelligence engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Facility: an immutable healthcare facility record
//   - StructuredQuery: a validated filter over a whitelisted schema
//   - DesertScore, RegionSummary: derived coverage scores
//   - Turn, Citation, ReasoningStep: conversation and answer trace
//   - RunRecord: an immutable telemetry entry
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
package domain
