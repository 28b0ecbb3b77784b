// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - FacilityStore: read access to the facility dataset
//   - RunStore: run record persistence
//   - PlanStore: plan persistence
//   - EmbeddingService: text embeddings for the retrieval index
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: without it answers are retrieval-only and translation
//     and planning are unavailable.
//   - PromptStore: without it the built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
