package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Analysis == nil {
		ports.Analysis = &mockAnalysisService{}
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	answer := &mockAnswerService{answer: &domain.Answer{
		SessionID: "chat_1a2b3c4d",
		Response:  "Korle Bu offers cardiology [GH-0001].",
		Citations: []domain.Citation{{SourceID: "GH-0001", Relevance: 0.82, Excerpt: "Facility: Korle Bu"}},
	}}
	server := newTestServer(t, &Ports{Answer: answer})

	_, output, err := server.handleAsk(ctx, nil, AskInput{Message: "cardiology?", SessionID: "chat_1a2b3c4d"})
	require.NoError(t, err)
	assert.Equal(t, "chat_1a2b3c4d", output.SessionID)
	assert.Equal(t, "Korle Bu offers cardiology [GH-0001].", output.Response)
	require.Len(t, output.Citations, 1)
	assert.Equal(t, "GH-0001", output.Citations[0].SourceID)
	assert.Equal(t, "cardiology?", answer.gotMessage)
	assert.Equal(t, "chat_1a2b3c4d", answer.gotSession)

	answer.err = domain.ErrEmptyMessage
	_, _, err = server.handleAsk(ctx, nil, AskInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()
	query := &mockQueryService{result: &domain.QueryResult{
		Query:       &domain.StructuredQuery{Limit: 20},
		Explanation: `Facilities where region is "northern"`,
		ResultCount: 1,
		Results: []domain.Facility{{
			ID: "GH-0003", Name: "Tamale Teaching Hospital", Region: "Northern",
			Type: "Teaching Hospital", Beds: 800, StaffCount: 1200,
		}},
	}}
	server := newTestServer(t, &Ports{Query: query})

	_, output, err := server.handleQuery(ctx, nil, QueryInput{Query: "hospitals in northern"})
	require.NoError(t, err)
	assert.Equal(t, 1, output.ResultCount)
	require.Len(t, output.Results, 1)
	assert.Equal(t, "GH-0003", output.Results[0].ID)
	assert.Equal(t, 800, output.Results[0].Beds)
	assert.Equal(t, 20, output.Filter.Limit)

	query.err = errors.New("translation error: unknown field")
	query.result = nil
	_, _, err = server.handleQuery(ctx, nil, QueryInput{Query: "x"})
	assert.ErrorContains(t, err, "unknown field")
}

func TestServer_handleDeserts(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, &Ports{Analysis: &mockAnalysisService{regions: testRegions()}})

	tests := []struct {
		name  string
		input DesertsInput
		want  []string
	}{
		{"all regions", DesertsInput{}, []string{"North East", "Upper West", "Greater Accra"}},
		{"moderate and worse", DesertsInput{MinSeverity: "moderate"}, []string{"North East", "Upper West"}},
		{"critical only", DesertsInput{MinSeverity: "Critical"}, []string{"North East"}},
		{"limited", DesertsInput{Limit: 2}, []string{"North East", "Upper West"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := server.handleDeserts(ctx, nil, tt.input)
			require.NoError(t, err)
			var names []string
			for _, r := range output.Regions {
				names = append(names, r.Region)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, len(tt.want), output.Count)
		})
	}

	_, _, err := server.handleDeserts(ctx, nil, DesertsInput{MinSeverity: "severe"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestServer_handleStats(t *testing.T) {
	ctx := context.Background()
	stats := &domain.Stats{TotalFacilities: 5, TotalBeds: 2420, FacilityTypes: map[string]int{"CHPS": 2}}
	server := newTestServer(t, &Ports{Analysis: &mockAnalysisService{stats: stats}})

	_, output, err := server.handleStats(ctx, nil, StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, stats, output)

	server = newTestServer(t, &Ports{Analysis: &mockAnalysisService{err: errors.New("store closed")}})
	_, _, err = server.handleStats(ctx, nil, StatsInput{})
	assert.Error(t, err)
}
