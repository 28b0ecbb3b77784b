package domain

import (
	"fmt"
	"strings"
)

// Severity buckets a desert score.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "Low"
	SeverityModerate Severity = "Moderate"
	SeverityCritical Severity = "Critical"
)

// Severity thresholds on the 0-100 score scale.
const (
	ModerateThreshold = 40.0
	CriticalThreshold = 60.0
)

// SeverityFor maps a score to its bucket: <40 Low, 40-59 Moderate, >=60 Critical.
func SeverityFor(score float64) Severity {
	switch {
	case score >= CriticalThreshold:
		return SeverityCritical
	case score >= ModerateThreshold:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// Rank orders severities from Low (1) to Critical (3); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// ParseSeverity matches a severity name case-insensitively. The empty name
// parses as the zero Severity, which ranks below every level.
func ParseSeverity(name string) (Severity, error) {
	if name == "" {
		return "", nil
	}
	for _, s := range []Severity{SeverityLow, SeverityModerate, SeverityCritical} {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown severity %q", ErrValidation, name)
}

// AtLeast keeps regions whose severity ranks at or above min, in order,
// stopping after limit entries when limit is positive.
func AtLeast(regions []RegionSummary, minimum Severity, limit int) []RegionSummary {
	out := make([]RegionSummary, 0, len(regions))
	for _, r := range regions {
		if r.Severity.Rank() < minimum.Rank() {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// DesertScore is a derived coverage score for a facility or a region.
// It is never authoritative; the same snapshot always yields the same score.
type DesertScore struct {
	// Subject is the facility id or region name.
	Subject  string   `json:"subject"`
	Score    float64  `json:"score"`
	Severity Severity `json:"severity"`
	Flagged  bool     `json:"flagged"`
}

// FacilityAssessment is the per-facility output of the scoring engine.
type FacilityAssessment struct {
	FacilityID    string  `json:"facility_id"`
	CapabilityGap float64 `json:"capability_gap"`
	StaffGap      float64 `json:"staff_gap"`
	BedGap        float64 `json:"bed_gap"`
	Deficiency    float64 `json:"deficiency"`
	Flagged       bool    `json:"flagged"`
}

// RegionSummary is the region analysis row.
type RegionSummary struct {
	Region          string   `json:"region"`
	Facilities      int      `json:"facilities"`
	TotalBeds       int      `json:"total_beds"`
	TotalStaff      int      `json:"total_staff"`
	Specialties     []string `json:"specialties"`
	FlaggedCount    int      `json:"flagged_facilities"`
	MissingServices []string `json:"missing_services"`
	DesertScore     float64  `json:"desert_score"`
	Severity        Severity `json:"severity"`
}

// Benchmark is the expected minimum capacity for a facility type.
type Benchmark struct {
	Beds         int
	Staff        int
	Capabilities int
}

// FacilityWeights weigh the three facility deficiency components.
type FacilityWeights struct {
	Capability float64
	Staff      float64
	Beds       float64
}

// RegionWeights weigh the region score components.
type RegionWeights struct {
	Flagged     float64
	Deficiency  float64
	Beds        float64
	Staff       float64
	Specialties float64
	Services    float64
}

// RegionBenchmark is the expected regional capacity, scaled per facility.
type RegionBenchmark struct {
	BedsPerFacility  float64
	StaffPerFacility float64
	Specialties      int
}

// ScoringConfig holds every tunable of the desert scoring engine.
type ScoringConfig struct {
	// FacilityThreshold flags a facility whose deficiency exceeds it.
	FacilityThreshold float64
	FacilityWeights   FacilityWeights
	RegionWeights     RegionWeights
	Region            RegionBenchmark

	// Benchmarks are keyed by BenchmarkKey(type).
	Benchmarks       map[string]Benchmark
	DefaultBenchmark Benchmark

	// EssentialServices and EssentialEquipment are matched against facility
	// services and equipment respectively; each entry may list alternatives
	// separated by "|".
	EssentialServices  []string
	EssentialEquipment []string

	// ZeroCapacityFloor is the minimum score of a region whose facilities
	// report no beds and no specialties.
	ZeroCapacityFloor float64
}

// BenchmarkKey normalises a facility type into a config key.
func BenchmarkKey(facilityType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(facilityType)), " ", "_")
}

// BenchmarkFor returns the benchmark for a facility type.
func (c ScoringConfig) BenchmarkFor(facilityType string) Benchmark {
	if b, ok := c.Benchmarks[BenchmarkKey(facilityType)]; ok {
		return b
	}
	return c.DefaultBenchmark
}

// DefaultScoringConfig returns the documented default calibration.
// Benchmarks follow the low end of each facility type's expected range.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		FacilityThreshold: 0.5,
		FacilityWeights:   FacilityWeights{Capability: 0.4, Staff: 0.3, Beds: 0.3},
		RegionWeights: RegionWeights{
			Flagged:     0.30,
			Deficiency:  0.20,
			Beds:        0.20,
			Staff:       0.10,
			Specialties: 0.10,
			Services:    0.10,
		},
		Region: RegionBenchmark{BedsPerFacility: 20, StaffPerFacility: 30, Specialties: 5},
		Benchmarks: map[string]Benchmark{
			"teaching_hospital":     {Beds: 500, Staff: 1500, Capabilities: 20},
			"regional_hospital":     {Beds: 150, Staff: 300, Capabilities: 14},
			"metropolitan_hospital": {Beds: 200, Staff: 300, Capabilities: 12},
			"municipal_hospital":    {Beds: 100, Staff: 150, Capabilities: 10},
			"district_hospital":     {Beds: 40, Staff: 50, Capabilities: 10},
			"psychiatric_hospital":  {Beds: 50, Staff: 50, Capabilities: 6},
			"hospital":              {Beds: 30, Staff: 40, Capabilities: 8},
			"polyclinic":            {Beds: 20, Staff: 30, Capabilities: 8},
			"health_centre":         {Beds: 5, Staff: 10, Capabilities: 5},
			"maternity_home":        {Beds: 5, Staff: 5, Capabilities: 4},
			"clinic":                {Beds: 0, Staff: 3, Capabilities: 3},
			"chps":                  {Beds: 0, Staff: 2, Capabilities: 3},
		},
		DefaultBenchmark:   Benchmark{Beds: 10, Staff: 10, Capabilities: 4},
		EssentialServices:  []string{"Surgery", "ICU", "Blood Bank"},
		EssentialEquipment: []string{"CT Scanner|MRI"},
		ZeroCapacityFloor:  CriticalThreshold,
	}
}
