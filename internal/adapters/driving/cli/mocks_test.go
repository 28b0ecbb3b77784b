package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var testTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type mockAnswerService struct {
	answer   *domain.Answer
	err      error
	sessions []string
	messages []string
}

func (m *mockAnswerService) Answer(_ context.Context, sessionID, message string) (*domain.Answer, error) {
	m.sessions = append(m.sessions, sessionID)
	m.messages = append(m.messages, message)
	if m.err != nil {
		return nil, m.err
	}
	a := *m.answer
	if sessionID != "" {
		a.SessionID = sessionID
	}
	return &a, nil
}

type mockSessionService struct {
	turns []domain.Turn
	err   error
}

func (m *mockSessionService) History(_ context.Context, _ string) ([]domain.Turn, error) {
	return m.turns, m.err
}

type mockQueryService struct {
	result      *domain.QueryResult
	query       *domain.StructuredQuery
	explanation string
	err         error
	queried     int
}

func (m *mockQueryService) Translate(_ context.Context, _ string) (*domain.StructuredQuery, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.query, m.explanation, nil
}

func (m *mockQueryService) Query(_ context.Context, _ string) (*domain.QueryResult, error) {
	m.queried++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockAnalysisService struct {
	regions    []domain.RegionSummary
	stats      *domain.Stats
	assessment *domain.FacilityAssessment
	err        error
}

func (m *mockAnalysisService) Regions(_ context.Context) ([]domain.RegionSummary, error) {
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

func (m *mockAnalysisService) Stats(_ context.Context) (*domain.Stats, error) {
	return m.stats, m.err
}

type mockPlanningService struct {
	plans    []domain.Plan
	requests []domain.PlanRequest
	limit    int
	err      error
}

func (m *mockPlanningService) Generate(_ context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Plan{
		ID:        "plan_0a1b2c3d",
		Region:    req.Region,
		Specialty: req.Specialty,
		Text:      "Deploy two surgical teams to Tamale Central.",
		CreatedAt: testTime,
	}, nil
}

func (m *mockPlanningService) History(_ context.Context, limit int) ([]domain.Plan, error) {
	m.limit = limit
	return m.plans, m.err
}

type mockTelemetryService struct {
	runs  []domain.RunRecord
	limit int
}

func (m *mockTelemetryService) Runs(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.limit = limit
	return m.runs, nil
}

type mockIndexService struct {
	stats    domain.IndexStats
	rebuilds int
	err      error
}

func (m *mockIndexService) Rebuild(_ context.Context) (domain.IndexStats, error) {
	m.rebuilds++
	if m.err != nil {
		return domain.IndexStats{}, m.err
	}
	m.stats = domain.IndexStats{
		Generation: m.stats.Generation + 1,
		Size:       3,
		Dimensions: 384,
		Model:      "hashing-v1",
		BuiltAt:    testTime,
	}
	return m.stats, nil
}

func (m *mockIndexService) Stats() domain.IndexStats {
	return m.stats
}

type mockDatasetReloader struct {
	reloads int
	err     error
}

func (m *mockDatasetReloader) Path() string { return "/data/facilities.json" }

func (m *mockDatasetReloader) Reload(_ context.Context) (int, error) {
	m.reloads++
	return 3, m.err
}

type mockSettingsService struct {
	settings    domain.AppSettings
	llm         []string
	embedding   []string
	validateErr error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.llm = []string{string(provider), model, apiKey}
	m.settings.LLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embedding = []string{string(provider), model, apiKey}
	m.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

type mockValidator struct {
	embeddingErr error
	llmErr       error
}

func (m *mockValidator) ValidateEmbedding(_ context.Context, _ *domain.EmbeddingSettings) error {
	return m.embeddingErr
}

func (m *mockValidator) ValidateLLM(_ context.Context, _ *domain.LLMSettings) error {
	return m.llmErr
}

// testServices is the set of mocks installed by setupTestServices.
type testServices struct {
	answer    *mockAnswerService
	sessions  *mockSessionService
	query     *mockQueryService
	analysis  *mockAnalysisService
	planning  *mockPlanningService
	telemetry *mockTelemetryService
	index     *mockIndexService
	dataset   *mockDatasetReloader
	settings  *mockSettingsService
}

func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	m := &testServices{
		answer: &mockAnswerService{answer: &domain.Answer{
			SessionID: "sess-1",
			Response:  "Tamale Central Hospital offers cardiology [fac-001].",
			Citations: []domain.Citation{{SourceID: "fac-001", Relevance: 0.82, Excerpt: "Tamale Central Hospital, Northern"}},
			ReasoningSteps: []domain.ReasoningStep{
				{Step: 1, Action: "Query Embedding", Detail: "embedded 24 chars"},
				{Step: 2, Action: "Semantic Retrieval", Detail: "3 facilities"},
			},
			RunID: "run-1",
		}},
		sessions: &mockSessionService{},
		query: &mockQueryService{
			result: &domain.QueryResult{
				Explanation: "Facilities where region equals Northern.",
				Results: []domain.Facility{
					{ID: "fac-001", Name: "Tamale Central Hospital", Region: "Northern", Type: "Hospital", Beds: 120, StaffCount: 80, Specialties: []string{"Cardiology"}},
				},
				ResultCount: 1,
			},
			query:       &domain.StructuredQuery{Limit: 10},
			explanation: "Facilities where region equals Northern.",
		},
		analysis: &mockAnalysisService{
			regions: []domain.RegionSummary{
				{Region: "North East", Facilities: 4, DesertScore: 72.5, Severity: domain.SeverityCritical, MissingServices: []string{"Surgery"}},
				{Region: "Upper West", Facilities: 6, DesertScore: 48, Severity: domain.SeverityModerate},
				{Region: "Greater Accra", Facilities: 30, DesertScore: 12, Severity: domain.SeverityLow},
			},
			stats: &domain.Stats{
				TotalFacilities: 40, TotalBeds: 900, TotalRegions: 3, MedicalDeserts: 5, CriticalRegions: 1,
				FacilityTypes: map[string]int{"Hospital": 10, "Clinic": 30},
			},
			assessment: &domain.FacilityAssessment{FacilityID: "fac-001", Deficiency: 0.61, Flagged: true},
		},
		planning: &mockPlanningService{plans: []domain.Plan{
			{ID: "plan_00000001", Region: "Northern", Text: "Open a maternity wing.", CreatedAt: testTime},
		}},
		telemetry: &mockTelemetryService{runs: []domain.RunRecord{
			{RunID: "run-1", Type: domain.RunTypeChat, Status: domain.RunStatusFinished,
				Metrics: map[string]float64{"total_ms": 12, "retrieved": 3}, StartTime: testTime},
		}},
		index:    &mockIndexService{},
		dataset:  &mockDatasetReloader{},
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	useServices(&Services{
		Answer:     m.answer,
		Sessions:   m.sessions,
		Query:      m.query,
		Analysis:   m.analysis,
		Planning:   m.planning,
		Telemetry:  m.telemetry,
		Index:      m.index,
		Dataset:    m.dataset,
		ServerAddr: ":0",
	})
	settingsService = m.settings

	t.Cleanup(func() {
		useServices(&Services{})
		settingsService = nil
		wiring = nil
	})
	return m
}

// execute runs the root command with fresh flag values and returns output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
