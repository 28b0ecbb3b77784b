package mcp

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// mockAnalysisService is a mock implementation of driving.AnalysisService.
type mockAnalysisService struct {
	regions    []domain.RegionSummary
	assessment *domain.FacilityAssessment
	stats      *domain.Stats
	err        error
}

func (m *mockAnalysisService) Regions(context.Context) ([]domain.RegionSummary, error) {
	return m.regions, m.err
}

func (m *mockAnalysisService) Facility(_ context.Context, id string) (*domain.FacilityAssessment, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.assessment == nil || m.assessment.FacilityID != id {
		return nil, domain.ErrFacilityNotFound
	}
	return m.assessment, nil
}

func (m *mockAnalysisService) Stats(context.Context) (*domain.Stats, error) {
	return m.stats, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer     *domain.Answer
	err        error
	gotSession string
	gotMessage string
}

func (m *mockAnswerService) Answer(_ context.Context, sessionID, message string) (*domain.Answer, error) {
	m.gotSession, m.gotMessage = sessionID, message
	return m.answer, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	err    error
}

func (m *mockQueryService) Translate(context.Context, string) (*domain.StructuredQuery, string, error) {
	if m.result == nil {
		return nil, "", m.err
	}
	return m.result.Query, m.result.Explanation, m.err
}

func (m *mockQueryService) Query(context.Context, string) (*domain.QueryResult, error) {
	return m.result, m.err
}

// mockTelemetryService is a mock implementation of driving.TelemetryService.
type mockTelemetryService struct {
	runs     []domain.RunRecord
	gotLimit int
}

func (m *mockTelemetryService) Runs(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.gotLimit = limit
	return m.runs, nil
}

func testRegions() []domain.RegionSummary {
	return []domain.RegionSummary{
		{Region: "North East", Facilities: 3, DesertScore: 78.5, Severity: domain.SeverityCritical},
		{Region: "Upper West", Facilities: 4, DesertScore: 51.0, Severity: domain.SeverityModerate},
		{Region: "Greater Accra", Facilities: 20, DesertScore: 8.2, Severity: domain.SeverityLow},
	}
}
