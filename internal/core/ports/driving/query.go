package driving

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// QueryService answers exploratory questions with structured queries.
type QueryService interface {
	// Translate maps free text to a validated structured query and its
	// explanation without touching the facility store.
	Translate(ctx context.Context, request string) (*domain.StructuredQuery, string, error)

	// Query translates and, only when validation passes, executes.
	Query(ctx context.Context, request string) (*domain.QueryResult, error)
}
