package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
)

// Ensure AnalysisService implements the interface.
var _ driving.AnalysisService = (*AnalysisService)(nil)

// AnalysisService scores point-in-time snapshots of the facility store.
type AnalysisService struct {
	store  driven.FacilityStore
	scorer *DesertScorer
}

// NewAnalysisService creates an analysis service.
func NewAnalysisService(store driven.FacilityStore, scorer *DesertScorer) *AnalysisService {
	return &AnalysisService{store: store, scorer: scorer}
}

// Regions scores every region in the current snapshot.
func (s *AnalysisService) Regions(ctx context.Context) ([]domain.RegionSummary, error) {
	facilities, err := s.store.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read facilities: %w", err)
	}
	return s.scorer.ScoreRegions(facilities), nil
}

// Facility scores one facility against its type benchmark.
func (s *AnalysisService) Facility(ctx context.Context, id string) (*domain.FacilityAssessment, error) {
	f, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	a := s.scorer.ScoreFacility(*f)
	return &a, nil
}

// Stats aggregates the snapshot. Medical deserts counts flagged facilities.
func (s *AnalysisService) Stats(ctx context.Context) (*domain.Stats, error) {
	facilities, err := s.store.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read facilities: %w", err)
	}

	stats := &domain.Stats{FacilityTypes: map[string]int{}}
	specialties := map[string]bool{}
	for _, f := range facilities {
		stats.TotalFacilities++
		stats.TotalBeds += f.Beds
		stats.TotalStaff += f.StaffCount
		if f.Type != "" {
			stats.FacilityTypes[f.Type]++
		}
		for _, sp := range f.Specialties {
			specialties[strings.ToLower(strings.TrimSpace(sp))] = true
		}
		if s.scorer.ScoreFacility(f).Flagged {
			stats.MedicalDeserts++
		}
	}
	stats.TotalSpecialties = len(specialties)

	regions := s.scorer.ScoreRegions(facilities)
	stats.TotalRegions = len(regions)
	for _, r := range regions {
		if r.Severity == domain.SeverityCritical {
			stats.CriticalRegions++
		}
	}
	return stats, nil
}
