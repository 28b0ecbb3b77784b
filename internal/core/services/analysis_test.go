package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

func newAnalysis(facilities ...domain.Facility) *AnalysisService {
	return NewAnalysisService(memory.NewFacilityStore(facilities...), NewDesertScorer(domain.DefaultScoringConfig()))
}

func TestAnalysisService_Regions(t *testing.T) {
	regions, err := newAnalysis(ghanaFacilities()...).Regions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "North East", regions[0].Region)
	assert.Equal(t, domain.SeverityCritical, regions[0].Severity)
	assert.GreaterOrEqual(t, regions[0].DesertScore, 60.0)
	assert.Equal(t, "Greater Accra", regions[1].Region)
	assert.Equal(t, domain.SeverityLow, regions[1].Severity)
}

func TestAnalysisService_RegionsAreRepeatable(t *testing.T) {
	svc := newAnalysis(ghanaFacilities()...)
	first, err := svc.Regions(context.Background())
	require.NoError(t, err)
	second, err := svc.Regions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalysisService_Stats(t *testing.T) {
	stats, err := newAnalysis(ghanaFacilities()...).Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalFacilities)
	assert.Equal(t, 2420, stats.TotalBeds)
	assert.Equal(t, 4821, stats.TotalStaff)
	assert.Equal(t, 2, stats.TotalRegions)
	assert.Equal(t, 7, stats.TotalSpecialties)
	assert.Equal(t, 2, stats.MedicalDeserts)
	assert.Equal(t, 1, stats.CriticalRegions)
	assert.Equal(t, 1, stats.FacilityTypes["CHPS"])
	assert.Len(t, stats.FacilityTypes, 5)
}

func TestAnalysisService_StatsEmpty(t *testing.T) {
	stats, err := newAnalysis().Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFacilities)
	assert.NotNil(t, stats.FacilityTypes)
}

func TestAnalysisService_Facility(t *testing.T) {
	svc := newAnalysis(ghanaFacilities()...)

	a, err := svc.Facility(context.Background(), " GH-0005 ")
	require.NoError(t, err)
	assert.Equal(t, "GH-0005", a.FacilityID)
	assert.True(t, a.Flagged)
	assert.Equal(t, 1.0, a.BedGap)

	_, err = svc.Facility(context.Background(), "GH-9999")
	assert.ErrorIs(t, err, domain.ErrFacilityNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
