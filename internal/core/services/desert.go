package services

import (
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// DesertScorer computes deterministic coverage scores from a facility
// snapshot. It holds no state beyond its configuration.
type DesertScorer struct {
	cfg domain.ScoringConfig
}

// NewDesertScorer creates a scorer with the given calibration.
func NewDesertScorer(cfg domain.ScoringConfig) *DesertScorer {
	return &DesertScorer{cfg: cfg}
}

// Config returns the scorer's calibration.
func (s *DesertScorer) Config() domain.ScoringConfig {
	return s.cfg
}

// ScoreFacility measures a facility against its type benchmark.
// Each gap is 1 - min(1, actual/benchmark); deficiency is their weighted mean.
func (s *DesertScorer) ScoreFacility(f domain.Facility) domain.FacilityAssessment {
	b := s.cfg.BenchmarkFor(f.Type)
	w := s.cfg.FacilityWeights

	a := domain.FacilityAssessment{
		FacilityID:    f.ID,
		CapabilityGap: gap(float64(f.CapabilityBreadth()), float64(b.Capabilities)),
		StaffGap:      gap(float64(f.StaffCount), float64(b.Staff)),
		BedGap:        gap(float64(f.Beds), float64(b.Beds)),
	}
	a.Deficiency = weightedMean(
		[]float64{a.CapabilityGap, a.StaffGap, a.BedGap},
		[]float64{w.Capability, w.Staff, w.Beds},
	)
	a.Flagged = a.Deficiency > s.cfg.FacilityThreshold
	return a
}

// ScoreRegion aggregates a region's facilities into a desert score and
// summary. A region without facilities has no coverage and scores 100.
func (s *DesertScorer) ScoreRegion(region string, facilities []domain.Facility) domain.RegionSummary {
	summary := domain.RegionSummary{
		Region:          region,
		Facilities:      len(facilities),
		Specialties:     []string{},
		MissingServices: []string{},
	}
	if len(facilities) == 0 {
		summary.DesertScore = 100
		summary.Severity = domain.SeverityCritical
		return summary
	}

	n := float64(len(facilities))
	var deficiency float64
	specialties := map[string]string{}
	for _, f := range facilities {
		a := s.ScoreFacility(f)
		deficiency += a.Deficiency
		if a.Flagged {
			summary.FlaggedCount++
		}
		summary.TotalBeds += f.Beds
		summary.TotalStaff += f.StaffCount
		for _, sp := range f.Specialties {
			key := strings.ToLower(strings.TrimSpace(sp))
			if _, seen := specialties[key]; !seen && key != "" {
				specialties[key] = strings.TrimSpace(sp)
			}
		}
	}
	for _, sp := range specialties {
		summary.Specialties = append(summary.Specialties, sp)
	}
	sort.Strings(summary.Specialties)

	essentials := len(s.cfg.EssentialServices) + len(s.cfg.EssentialEquipment)
	summary.MissingServices = append(summary.MissingServices, missingEssentials(facilities, s.cfg.EssentialServices, domain.FieldServices)...)
	summary.MissingServices = append(summary.MissingServices, missingEssentials(facilities, s.cfg.EssentialEquipment, domain.FieldEquipment)...)

	var serviceGap float64
	if essentials > 0 {
		serviceGap = float64(len(summary.MissingServices)) / float64(essentials)
	}

	rb := s.cfg.Region
	w := s.cfg.RegionWeights
	score := 100 * weightedMean(
		[]float64{
			float64(summary.FlaggedCount) / n,
			deficiency / n,
			gap(float64(summary.TotalBeds), n*rb.BedsPerFacility),
			gap(float64(summary.TotalStaff), n*rb.StaffPerFacility),
			gap(float64(len(summary.Specialties)), float64(rb.Specialties)),
			serviceGap,
		},
		[]float64{w.Flagged, w.Deficiency, w.Beds, w.Staff, w.Specialties, w.Services},
	)
	if summary.TotalBeds == 0 && len(summary.Specialties) == 0 {
		score = math.Max(score, s.cfg.ZeroCapacityFloor)
	}

	summary.DesertScore = round1(clamp(score, 0, 100))
	summary.Severity = domain.SeverityFor(summary.DesertScore)
	return summary
}

// ScoreRegions groups facilities by region and scores each group,
// highest score first, then by region name.
func (s *DesertScorer) ScoreRegions(facilities []domain.Facility) []domain.RegionSummary {
	groups := map[string][]domain.Facility{}
	for _, f := range facilities {
		groups[regionOf(f)] = append(groups[regionOf(f)], f)
	}

	out := make([]domain.RegionSummary, 0, len(groups))
	for region, fs := range groups {
		out = append(out, s.ScoreRegion(region, fs))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DesertScore != out[j].DesertScore {
			return out[i].DesertScore > out[j].DesertScore
		}
		return out[i].Region < out[j].Region
	})
	return out
}

// regionOf is the grouping key of a facility.
func regionOf(f domain.Facility) string {
	if region := strings.TrimSpace(f.Region); region != "" {
		return region
	}
	return "Unknown"
}

// RegionDesertScore returns the region's score as a standalone record.
func RegionDesertScore(summary domain.RegionSummary) domain.DesertScore {
	return domain.DesertScore{
		Subject:  summary.Region,
		Score:    summary.DesertScore,
		Severity: summary.Severity,
		Flagged:  summary.Severity == domain.SeverityCritical,
	}
}

// missingEssentials lists the essentials no facility in the group provides.
// An essential may name alternatives separated by "|".
func missingEssentials(facilities []domain.Facility, essentials []string, field domain.Field) []string {
	var missing []string
	for _, essential := range essentials {
		alternatives := strings.Split(essential, "|")
		for i := range alternatives {
			alternatives[i] = strings.TrimSpace(alternatives[i])
		}
		found := false
		for _, f := range facilities {
			if domain.HasAny(domain.ListField(f, field), alternatives...) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, essential)
		}
	}
	return missing
}

func gap(actual, benchmark float64) float64 {
	if benchmark <= 0 {
		return 0
	}
	return 1 - math.Min(1, math.Max(0, actual)/benchmark)
}

// weightedMean normalises the weights; negative weights count as zero.
func weightedMean(values, weights []float64) float64 {
	var sum, total float64
	for i, v := range values {
		w := math.Max(0, weights[i])
		sum += w * v
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
