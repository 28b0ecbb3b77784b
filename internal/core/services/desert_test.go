package services

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

func TestDesertScorer_ScoreFacility(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())

	tests := []struct {
		name     string
		facility domain.Facility
		flagged  bool
	}{
		{
			name:     "well resourced teaching hospital",
			facility: ghanaFacilities()[0],
			flagged:  false,
		},
		{
			name: "district hospital with no beds and thin staff",
			facility: domain.Facility{ID: "D", Type: "District Hospital", Beds: 0, StaffCount: 5,
				Services: []string{"Emergency"}},
			flagged: true,
		},
		{
			name: "chps meeting its benchmark",
			facility: domain.Facility{ID: "C", Type: "CHPS", Beds: 0, StaffCount: 3,
				Services: []string{"Immunisation", "Maternity", "Outreach"}},
			flagged: false,
		},
		{
			name:     "unknown type uses default benchmark",
			facility: domain.Facility{ID: "U", Type: "Field Station"},
			flagged:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scorer.ScoreFacility(tt.facility)
			assert.Equal(t, tt.facility.ID, a.FacilityID)
			assert.Equal(t, tt.flagged, a.Flagged, "deficiency %.3f", a.Deficiency)
			assert.GreaterOrEqual(t, a.Deficiency, 0.0)
			assert.LessOrEqual(t, a.Deficiency, 1.0)
		})
	}
}

func TestDesertScorer_ZeroBenchmarkMeansNoGap(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())
	a := scorer.ScoreFacility(domain.Facility{ID: "C", Type: "CHPS", Beds: 0})
	assert.Zero(t, a.BedGap)
}

func TestDesertScorer_ZeroBedsNoSpecialtiesIsCritical(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())

	tests := []struct {
		name       string
		facilities []domain.Facility
	}{
		{
			name:       "barren region",
			facilities: ghanaFacilities()[2:],
		},
		{
			name: "well staffed and equipped but no beds or specialties",
			facilities: []domain.Facility{
				{ID: "X1", Region: "Oti", Type: "Health Centre", Beds: 0, StaffCount: 400,
					Equipment: []string{"CT Scanner", "MRI", "X-Ray"},
					Services:  []string{"Surgery", "ICU", "Blood Bank", "Emergency"}},
				{ID: "X2", Region: "Oti", Type: "Clinic", Beds: 0, StaffCount: 90,
					Equipment: []string{"Ultrasound"}, Services: []string{"Laboratory"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scorer.ScoreRegion("Region", tt.facilities)
			assert.Equal(t, domain.SeverityCritical, s.Severity)
			assert.GreaterOrEqual(t, s.DesertScore, 60.0)
			assert.Zero(t, s.TotalBeds)
			assert.Empty(t, s.Specialties)
		})
	}
}

func TestDesertScorer_WellResourcedRegionIsLow(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())

	s := scorer.ScoreRegion("Greater Accra", ghanaFacilities()[:2])
	assert.Equal(t, domain.SeverityLow, s.Severity)
	assert.Less(t, s.DesertScore, 40.0)
	assert.Equal(t, 2420, s.TotalBeds)
	assert.Equal(t, 4800, s.TotalStaff)
	assert.Empty(t, s.MissingServices)
	assert.Contains(t, s.Specialties, "Cardiology")
}

func TestDesertScorer_MissingEssentials(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())

	s := scorer.ScoreRegion("North East", ghanaFacilities()[2:])
	assert.Equal(t, []string{"Surgery", "ICU", "Blood Bank", "CT Scanner|MRI"}, s.MissingServices)
	assert.Equal(t, 3, s.Facilities)
}

func TestDesertScorer_EmptyRegion(t *testing.T) {
	s := NewDesertScorer(domain.DefaultScoringConfig()).ScoreRegion("Nowhere", nil)
	assert.Equal(t, 100.0, s.DesertScore)
	assert.Equal(t, domain.SeverityCritical, s.Severity)
}

func TestDesertScorer_DeterministicAndBounded(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())
	rng := rand.New(rand.NewSource(42))
	types := []string{"CHPS", "Clinic", "District Hospital", "Teaching Hospital", "Polyclinic", "Mystery"}
	pool := []string{"Surgery", "ICU", "MRI", "Pediatrics", "Blood Bank", "CT Scanner"}

	pick := func() []string {
		var out []string
		for _, v := range pool {
			if rng.Intn(3) == 0 {
				out = append(out, v)
			}
		}
		return out
	}

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(12)
		facilities := make([]domain.Facility, n)
		for i := range facilities {
			facilities[i] = domain.Facility{
				ID: fmt.Sprintf("F-%d", i), Region: "R", Type: types[rng.Intn(len(types))],
				Beds: rng.Intn(400), StaffCount: rng.Intn(900),
				Specialties: pick(), Equipment: pick(), Services: pick(),
			}
		}

		first := scorer.ScoreRegion("R", facilities)
		reversed := make([]domain.Facility, n)
		for i, f := range facilities {
			reversed[n-1-i] = f
		}
		second := scorer.ScoreRegion("R", reversed)

		assert.Equal(t, first, second, "trial %d", trial)
		assert.GreaterOrEqual(t, first.DesertScore, 0.0)
		assert.LessOrEqual(t, first.DesertScore, 100.0)
		assert.Equal(t, domain.SeverityFor(first.DesertScore), first.Severity)
	}
}

func TestDesertScorer_WeightsAreConfiguration(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.RegionWeights = domain.RegionWeights{Services: 1}
	cfg.ZeroCapacityFloor = 0
	scorer := NewDesertScorer(cfg)

	s := scorer.ScoreRegion("North East", ghanaFacilities()[2:])
	assert.Equal(t, 100.0, s.DesertScore, "every essential is missing")

	cfg.EssentialServices = nil
	cfg.EssentialEquipment = nil
	s = NewDesertScorer(cfg).ScoreRegion("North East", ghanaFacilities()[2:])
	assert.Zero(t, s.DesertScore)
}

func TestDesertScorer_ScoreRegions(t *testing.T) {
	scorer := NewDesertScorer(domain.DefaultScoringConfig())
	facilities := append(ghanaFacilities(), domain.Facility{ID: "GH-0099", Type: "Clinic", StaffCount: 3})

	regions := scorer.ScoreRegions(facilities)
	require.Len(t, regions, 3)
	for i := 1; i < len(regions); i++ {
		assert.GreaterOrEqual(t, regions[i-1].DesertScore, regions[i].DesertScore)
	}
	names := []string{regions[0].Region, regions[1].Region, regions[2].Region}
	assert.Contains(t, names, "Unknown")
	assert.Equal(t, "Greater Accra", regions[2].Region)

	d := RegionDesertScore(regions[0])
	assert.Equal(t, regions[0].Region, d.Subject)
	assert.Equal(t, regions[0].Severity == domain.SeverityCritical, d.Flagged)
}
