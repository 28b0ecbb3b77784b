// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The answer, query and planning pipelines share one call policy for
// remote model calls and report every invocation to the TelemetryRecorder.
// Desert scoring and the embedding index are pure computation over a
// facility snapshot.
package services
