// Package dataset loads the facility dataset file into the facility store
// and keeps the store and the retrieval index current when the file changes.
//
// Supported formats:
//   - JSON array of facility objects
//   - JSON object with a "facilities" array
//   - YAML with either shape (.yaml or .yml extension)
package dataset
