package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

const jsonArray = `[
  {"facility_id": "GH-0001", "name": "Korle Bu Teaching Hospital", "region": "Greater Accra",
   "type": "Teaching Hospital", "beds": 2000, "staff_count": 4000,
   "specialties": ["Cardiology", "Oncology"], "equipment": ["MRI"], "services": ["Surgery"]},
  {"facility_id": " GH-0002 ", "name": "Bawku CHPS", "region": "Upper East",
   "type": "CHPS", "beds": 0, "staff_count": 3}
]`

const jsonObject = `{"facilities": [{"facility_id": "GH-0009", "name": "Tamale", "region": "Northern", "beds": 800}]}`

const yamlList = `
- facility_id: GH-0003
  name: Tamale Teaching Hospital
  region: Northern
  type: Teaching Hospital
  beds: 800
  staff_count: 1200
  equipment: [X-Ray, CT Scanner]
`

const yamlObject = `
facilities:
  - facility_id: GH-0004
    name: Walewale CHPS
    region: North East
    specialties: []
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantIDs []string
	}{
		{"json array", "facilities.json", jsonArray, []string{"GH-0001", "GH-0002"}},
		{"json object", "facilities.json", jsonObject, []string{"GH-0009"}},
		{"json without extension", "facilities", jsonArray, []string{"GH-0001", "GH-0002"}},
		{"yaml list", "facilities.yaml", yamlList, []string{"GH-0003"}},
		{"yaml object", "facilities.yml", yamlObject, []string{"GH-0004"}},
		{"empty json array", "facilities.json", `[]`, nil},
		{"empty yaml", "facilities.yaml", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facilities, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			var ids []string
			for _, f := range facilities {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestLoad_DecodesFields(t *testing.T) {
	facilities, err := Load(writeFile(t, "f.yaml", yamlList))
	require.NoError(t, err)
	require.Len(t, facilities, 1)
	f := facilities[0]
	assert.Equal(t, "Tamale Teaching Hospital", f.Name)
	assert.Equal(t, 800, f.Beds)
	assert.Equal(t, 1200, f.StaffCount)
	assert.Equal(t, []string{"X-Ray", "CT Scanner"}, f.Equipment)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed json", "f.json", `[{"facility_id": `},
		{"malformed yaml", "f.yaml", "- facility_id: [unclosed"},
		{"missing id", "f.json", `[{"name": "No Id"}]`},
		{"negative beds", "f.json", `[{"facility_id": "GH-1", "beds": -4}]`},
		{"duplicate id", "f.json", `[{"facility_id": "GH-1"}, {"facility_id": " GH-1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type mockRebuilder struct {
	calls int
	err   error
}

func (m *mockRebuilder) Rebuild(context.Context) (domain.IndexStats, error) {
	m.calls++
	return domain.IndexStats{Generation: uint64(m.calls)}, m.err
}

func TestLoader_Reload(t *testing.T) {
	path := writeFile(t, "facilities.json", jsonArray)
	store := memory.NewFacilityStore()
	indexer := &mockRebuilder{}
	loader := NewLoader(path, store, indexer)

	n, err := loader.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, indexer.calls)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	f, err := store.Get(context.Background(), "GH-0002")
	require.NoError(t, err)
	assert.Equal(t, "Bawku CHPS", f.Name)
}

func TestLoader_BadFileKeepsStore(t *testing.T) {
	path := writeFile(t, "facilities.json", jsonArray)
	store := memory.NewFacilityStore()
	indexer := &mockRebuilder{}
	loader := NewLoader(path, store, indexer)
	_, err := loader.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	_, err = loader.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, indexer.calls, "index is not rebuilt from a bad file")

	count, _ := store.Count(context.Background())
	assert.Equal(t, 2, count)
}

func TestLoader_IndexFailure(t *testing.T) {
	loader := NewLoader(writeFile(t, "f.json", jsonObject), memory.NewFacilityStore(), &mockRebuilder{err: errors.New("embedder down")})
	n, err := loader.Reload(context.Background())
	assert.ErrorContains(t, err, "embedder down")
	assert.Equal(t, 1, n)

	loader = NewLoader(loader.Path(), memory.NewFacilityStore(), nil)
	_, err = loader.Reload(context.Background())
	assert.NoError(t, err)
}
