package httpapi

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

type mockAnswer struct {
	answer *domain.Answer
	err    error
}

func (m *mockAnswer) Answer(_ context.Context, sessionID, message string) (*domain.Answer, error) {
	if m.err != nil {
		return nil, m.err
	}
	a := *m.answer
	if sessionID != "" {
		a.SessionID = sessionID
	}
	a.Response = a.Response + " (" + message + ")"
	return &a, nil
}

type mockSessions struct {
	turns map[string][]domain.Turn
}

func (m *mockSessions) History(_ context.Context, id string) ([]domain.Turn, error) {
	turns, ok := m.turns[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return turns, nil
}

type mockQuery struct {
	result *domain.QueryResult
	err    error
}

func (m *mockQuery) Translate(context.Context, string) (*domain.StructuredQuery, string, error) {
	return nil, "", m.err
}

func (m *mockQuery) Query(context.Context, string) (*domain.QueryResult, error) {
	return m.result, m.err
}

type mockAnalysis struct {
	regions []domain.RegionSummary
	stats   *domain.Stats
	err     error
}

func (m *mockAnalysis) Regions(context.Context) ([]domain.RegionSummary, error) {
	return m.regions, m.err
}

func (m *mockAnalysis) Facility(_ context.Context, id string) (*domain.FacilityAssessment, error) {
	if id != "GH-0005" {
		return nil, domain.ErrFacilityNotFound
	}
	return &domain.FacilityAssessment{FacilityID: id, Deficiency: 0.93, Flagged: true}, nil
}

func (m *mockAnalysis) Stats(context.Context) (*domain.Stats, error) {
	return m.stats, m.err
}

type mockPlanning struct {
	plans  []domain.Plan
	got    domain.PlanRequest
	limit  int
	genErr error
}

func (m *mockPlanning) Generate(_ context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	m.got = req
	if m.genErr != nil {
		return nil, m.genErr
	}
	return &domain.Plan{ID: "plan_0a1b2c3d", Region: req.Region, Text: "1. Executive summary"}, nil
}

func (m *mockPlanning) History(_ context.Context, limit int) ([]domain.Plan, error) {
	m.limit = limit
	return m.plans, nil
}

type mockTelemetry struct {
	gotLimit int
}

func (m *mockTelemetry) Runs(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.gotLimit = limit
	return []domain.RunRecord{{RunID: "r1", Type: domain.RunTypeQuery, Status: domain.RunStatusFinished}}, nil
}

type mockIndex struct {
	stats domain.IndexStats
	err   error
}

func (m *mockIndex) Rebuild(context.Context) (domain.IndexStats, error) {
	if m.err != nil {
		return domain.IndexStats{}, m.err
	}
	m.stats.Generation++
	return m.stats, nil
}

func (m *mockIndex) Stats() domain.IndexStats {
	return m.stats
}
