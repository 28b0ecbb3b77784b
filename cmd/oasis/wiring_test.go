package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

const testDataset = `[
  {"facility_id": "fac-001", "name": "Tamale Central Hospital", "region": "Northern", "type": "Hospital",
   "beds": 120, "staff_count": 80, "specialties": ["Cardiology", "Surgery"], "equipment": ["X-Ray"], "services": ["Emergency"]},
  {"facility_id": "fac-002", "name": "Bolga Health Centre", "region": "Upper East", "type": "Health Centre",
   "beds": 0, "staff_count": 2, "specialties": [], "equipment": [], "services": []},
  {"facility_id": "fac-003", "name": "Korle Bu Teaching Hospital", "region": "Greater Accra", "type": "Teaching Hospital",
   "beds": 2000, "staff_count": 900, "specialties": ["Cardiology", "Oncology"], "equipment": ["MRI"], "services": ["Emergency", "Surgery"]}
]`

func testSettings(t *testing.T) *domain.AppSettings {
	t.Helper()
	promptDir = t.TempDir()
	t.Cleanup(func() { promptDir = "" })

	path := filepath.Join(t.TempDir(), "facilities.json")
	require.NoError(t, os.WriteFile(path, []byte(testDataset), 0o600))

	s := domain.DefaultAppSettings()
	s.Storage = domain.StorageSettings{Backend: domain.StorageMemory}
	s.Data.FacilitiesPath = path
	return &s
}

func TestBuildServices_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, err := buildServices(ctx, testSettings(t))
	require.NoError(t, err)
	defer svc.Close()

	assert.Empty(t, svc.LLMModel, "no language model configured")
	require.NotNil(t, svc.Dataset)
	require.NotNil(t, svc.Watch)
	assert.False(t, svc.AutoWatch)

	stats, err := svc.Analysis.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFacilities)
	assert.Equal(t, 3, stats.TotalRegions)

	assert.Zero(t, svc.Index.Stats().Generation, "index is built on demand")
	idx, err := svc.Index.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Size)
	assert.Equal(t, domain.DefaultHashingDimensions, idx.Dimensions)

	answer, err := svc.Answer.Answer(ctx, "", "cardiology hospital in Northern")
	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.NotEmpty(t, answer.SessionID)
	assert.NotEmpty(t, answer.Citations)

	turns, err := svc.Sessions.History(ctx, answer.SessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	_, err = svc.Query.Query(ctx, "hospitals in Northern")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	require.Eventually(t, func() bool {
		runs, err := svc.Telemetry.Runs(ctx, 10)
		return err == nil && len(runs) >= 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBuildServices_ReloadThroughLoader(t *testing.T) {
	ctx := context.Background()
	settings := testSettings(t)
	svc, err := buildServices(ctx, settings)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, os.WriteFile(settings.Data.FacilitiesPath, []byte(`[{"facility_id": "only", "region": "Volta"}]`), 0o600))
	n, err := svc.Dataset.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, svc.Index.Stats().Size, "loader rebuilds the index")
}

func TestBuildServices_BadDataset(t *testing.T) {
	settings := testSettings(t)
	require.NoError(t, os.WriteFile(settings.Data.FacilitiesPath, []byte(`{not json`), 0o600))

	_, err := buildServices(context.Background(), settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuildServices_SQLite(t *testing.T) {
	settings := testSettings(t)
	settings.Storage = domain.StorageSettings{Backend: domain.StorageSQLite, Path: filepath.Join(t.TempDir(), "oasis.db")}

	svc, err := buildServices(context.Background(), settings)
	require.NoError(t, err)
	defer svc.Close()

	regions, err := svc.Analysis.Regions(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 3)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	_, err := openStores(domain.StorageSettings{Backend: "postgres"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOpenSettings(t *testing.T) {
	svc, err := openSettings("", true)
	require.NoError(t, err)
	s, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderHashing, s.Embedding.Provider)

	path := filepath.Join(t.TempDir(), "config.toml")
	svc, err = openSettings(path, false)
	require.NoError(t, err)
	require.NoError(t, svc.SetLLMProvider(domain.AIProviderOllama, "", ""))

	reopened, err := openSettings(path, false)
	require.NoError(t, err)
	s, err = reopened.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, s.LLM.Provider)
	assert.Equal(t, "llama3.2", s.LLM.Model)
}
