package driving

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// TelemetryService lists recorded runs.
type TelemetryService interface {
	// Runs returns up to limit records, newest first.
	Runs(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// IndexService manages the retrieval index.
type IndexService interface {
	// Rebuild embeds the current facility store into a new generation and
	// publishes it.
	Rebuild(ctx context.Context) (domain.IndexStats, error)

	// Stats describes the published generation.
	Stats() domain.IndexStats
}
