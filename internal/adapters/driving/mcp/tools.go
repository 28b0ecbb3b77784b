package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Message   string `json:"message" jsonschema:"the question about healthcare facilities"`
	SessionID string `json:"session_id,omitempty" jsonschema:"session to continue; omit to start a new one"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	SessionID string            `json:"session_id"`
	Response  string            `json:"response"`
	Citations []domain.Citation `json:"citations"`
	Degraded  bool              `json:"degraded"`
}

// QueryInput is the input schema for the query_facilities tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"natural-language description of the facilities to find"`
}

// QueryOutput is the output schema for the query_facilities tool.
type QueryOutput struct {
	Explanation string                  `json:"explanation"`
	ResultCount int                     `json:"result_count"`
	Results     []FacilitySummary       `json:"results"`
	Filter      *domain.StructuredQuery `json:"structured_filter"`
}

// FacilitySummary is the compact facility view returned to assistants.
type FacilitySummary struct {
	ID          string   `json:"facility_id"`
	Name        string   `json:"name"`
	Region      string   `json:"region"`
	Type        string   `json:"type"`
	Beds        int      `json:"beds"`
	StaffCount  int      `json:"staff_count"`
	Specialties []string `json:"specialties,omitempty"`
}

// DesertsInput is the input schema for the region_deserts tool.
type DesertsInput struct {
	MinSeverity string `json:"min_severity,omitempty" jsonschema:"Low, Moderate or Critical; omit for all regions"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of regions to return"`
}

// DesertsOutput is the output schema for the region_deserts tool.
type DesertsOutput struct {
	Regions []domain.RegionSummary `json:"regions"`
	Count   int                    `json:"count"`
}

// StatsInput is the (empty) input schema for the facility_stats tool.
type StatsInput struct{}

// registerTools registers a tool for every port that is set.
func (s *Server) registerTools() {
	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Ask a question about healthcare facilities. Answers cite facility ids as evidence.",
		}, s.handleAsk)
	}
	if s.ports.Query != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "query_facilities",
			Description: "Find facilities matching a natural-language filter, e.g. 'hospitals in Northern with fewer than 50 beds'",
		}, s.handleQuery)
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "region_deserts",
		Description: "Rank regions by medical desert score (0-100, higher is worse)",
	}, s.handleDeserts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "facility_stats",
		Description: "Aggregate statistics for the facility dataset",
	}, s.handleStats)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Answer.Answer(ctx, input.SessionID, input.Message)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{
		SessionID: answer.SessionID,
		Response:  answer.Response,
		Citations: answer.Citations,
		Degraded:  answer.Degraded,
	}, nil
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	result, err := s.ports.Query.Query(ctx, input.Query)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Explanation: result.Explanation,
		ResultCount: result.ResultCount,
		Results:     make([]FacilitySummary, len(result.Results)),
		Filter:      result.Query,
	}
	for i, f := range result.Results {
		output.Results[i] = FacilitySummary{
			ID:          f.ID,
			Name:        f.Name,
			Region:      f.Region,
			Type:        f.Type,
			Beds:        f.Beds,
			StaffCount:  f.StaffCount,
			Specialties: f.Specialties,
		}
	}
	return nil, output, nil
}

func (s *Server) handleDeserts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DesertsInput,
) (*mcp.CallToolResult, DesertsOutput, error) {
	minimum, err := domain.ParseSeverity(input.MinSeverity)
	if err != nil {
		return nil, DesertsOutput{}, err
	}

	regions, err := s.ports.Analysis.Regions(ctx)
	if err != nil {
		return nil, DesertsOutput{}, err
	}

	filtered := domain.AtLeast(regions, minimum, input.Limit)
	return nil, DesertsOutput{Regions: filtered, Count: len(filtered)}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, *domain.Stats, error) {
	stats, err := s.ports.Analysis.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, stats, nil
}
