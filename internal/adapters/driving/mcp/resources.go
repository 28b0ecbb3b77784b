package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for oasis resources.
	uriScheme = "oasis://"

	jsonMIME = "application/json"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "regions",
		Name:        "regions",
		Description: "Desert score summary for every region",
		MIMEType:    jsonMIME,
	}, s.handleRegionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "facilities/{facilityId}/assessment",
		Name:        "facility-assessment",
		Description: "Capability, staffing and bed gaps of one facility",
		MIMEType:    jsonMIME,
	}, s.handleAssessmentResource)

	if s.ports.Telemetry != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "runs",
			Name:        "runs",
			Description: "Most recent pipeline run records",
			MIMEType:    jsonMIME,
		}, s.handleRunsResource)
	}
}

func (s *Server) handleRegionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	regions, err := s.ports.Analysis.Regions(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoring regions: %w", err)
	}
	return jsonResult(req.Params.URI, regions)
}

func (s *Server) handleAssessmentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractFacilityID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	assessment, err := s.ports.Analysis.Facility(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("assessing facility: %w", err)
	}
	return jsonResult(req.Params.URI, assessment)
}

func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runs, err := s.ports.Telemetry.Runs(ctx, domain.DefaultRunLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return jsonResult(req.Params.URI, runs)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: jsonMIME,
			Text:     string(data),
		}},
	}, nil
}

// extractFacilityID extracts the id from oasis://facilities/{facilityId}/assessment.
func extractFacilityID(uri string) string {
	const prefix = uriScheme + "facilities/"
	const suffix = "/assessment"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
}
