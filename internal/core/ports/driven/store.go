package driven

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// FacilityStore is the read contract of the facility dataset.
type FacilityStore interface {
	// List returns facilities matching a validated query; nil returns all.
	// Implementations apply the query's sort and limit.
	List(ctx context.Context, query *domain.StructuredQuery) ([]domain.Facility, error)

	// Get returns a facility by id or domain.ErrFacilityNotFound.
	Get(ctx context.Context, id string) (*domain.Facility, error)

	// Count returns the number of facilities.
	Count(ctx context.Context) (int, error)

	// Replace swaps the whole dataset. Used only by the dataset loader.
	Replace(ctx context.Context, facilities []domain.Facility) error
}

// RunStore persists immutable run records.
type RunStore interface {
	// Append writes a run record. Records are never updated.
	Append(ctx context.Context, record domain.RunRecord) error

	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// PlanStore persists generated plans.
type PlanStore interface {
	Save(ctx context.Context, plan domain.Plan) error

	// Get returns a plan by id or domain.ErrPlanNotFound.
	Get(ctx context.Context, id string) (*domain.Plan, error)

	// List returns the newest plans first.
	List(ctx context.Context, limit int) ([]domain.Plan, error)
}
