package domain

import "time"

// PlanRequest asks for a resource-allocation plan. All fields are optional.
type PlanRequest struct {
	Region      string `json:"region,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
	Description string `json:"description,omitempty"`
}

// Plan is a generated resource-allocation plan.
type Plan struct {
	ID        string    `json:"plan_id"`
	Region    string    `json:"region"`
	Specialty string    `json:"specialty"`
	Text      string    `json:"plan_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the aggregate view of the facility corpus.
type Stats struct {
	TotalFacilities  int            `json:"total_facilities"`
	TotalBeds        int            `json:"total_beds"`
	TotalStaff       int            `json:"total_staff"`
	TotalRegions     int            `json:"total_regions"`
	TotalSpecialties int            `json:"total_specialties"`
	MedicalDeserts   int            `json:"medical_deserts"`
	CriticalRegions  int            `json:"critical_regions"`
	FacilityTypes    map[string]int `json:"facility_types"`
}

// QueryResult is the structured-query response.
type QueryResult struct {
	Query       *StructuredQuery `json:"structured_filter"`
	Results     []Facility       `json:"results"`
	Explanation string           `json:"explanation"`
	ResultCount int              `json:"result_count"`
	RunID       string           `json:"run_id,omitempty"`
}
