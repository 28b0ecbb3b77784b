package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil analysis service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingAnalysisService)
	})

	t.Run("analysis only creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Analysis: &mockAnalysisService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("all ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Analysis:  &mockAnalysisService{},
			Answer:    &mockAnswerService{},
			Query:     &mockQueryService{},
			Telemetry: &mockTelemetryService{},
		})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingAnalysisService)
	assert.NoError(t, (&Ports{Analysis: &mockAnalysisService{}}).Validate())
}

func connect(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = server.Serve(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "oasis-test", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestServer_ListsToolsForConfiguredPorts(t *testing.T) {
	session := connect(t, newTestServer(t, &Ports{Answer: &mockAnswerService{}}))

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask", "region_deserts", "facility_stats"}, names)
}

func TestServer_CallToolOverSession(t *testing.T) {
	session := connect(t, newTestServer(t, &Ports{Analysis: &mockAnalysisService{regions: testRegions()}}))
	ctx := context.Background()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "region_deserts",
		Arguments: map[string]any{"min_severity": "critical"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "North East")
	assert.NotContains(t, text.Text, "Greater Accra")

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "region_deserts",
		Arguments: map[string]any{"min_severity": "dire"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError, "unknown severity is a tool error")
}
