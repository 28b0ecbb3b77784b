package driving

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// AnalysisService exposes desert scoring and aggregate statistics.
type AnalysisService interface {
	// Regions scores every region, highest desert score first.
	Regions(ctx context.Context) ([]domain.RegionSummary, error)

	// Facility scores a single facility.
	Facility(ctx context.Context, id string) (*domain.FacilityAssessment, error)

	// Stats aggregates the facility corpus.
	Stats(ctx context.Context) (*domain.Stats, error)
}

// PlanningService drafts resource-allocation plans.
type PlanningService interface {
	Generate(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error)

	// History returns the most recent plans, newest first.
	History(ctx context.Context, limit int) ([]domain.Plan, error)
}
