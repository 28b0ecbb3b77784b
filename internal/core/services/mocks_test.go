package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
)

var testPolicy = domain.CallPolicy{Timeout: time.Second, Backoff: time.Millisecond, Retries: 1}

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService. By default it counts
// letters, which gives deterministic vectors with meaningful overlap.
type mockEmbedder struct {
	mu       sync.Mutex
	dims     int
	fn       func(text string) []float32
	failures int // calls to fail before succeeding; -1 fails forever
	calls    int
}

func newLetterEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: 26, fn: letterVector}
}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (m *mockEmbedder) fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures < 0 {
		return errors.New("embedder down")
	}
	if m.failures > 0 {
		m.failures--
		return errors.New("embedder hiccup")
	}
	return nil
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.fn(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.fn(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockLLM implements driven.LLMService and records every request.
type mockLLM struct {
	mu       sync.Mutex
	response string
	respond  func(messages []driven.ChatMessage) string
	err      error
	chats    [][]driven.ChatMessage
	prompts  []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = append(m.chats, append([]driven.ChatMessage(nil), messages...))
	if m.err != nil {
		return "", m.err
	}
	if m.respond != nil {
		return m.respond(messages), nil
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) chatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}

func (m *mockLLM) generateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockPromptStore implements driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.prompts[name], nil
}

func (m *mockPromptStore) Reload() {}

// failingRunStore implements driven.RunStore and always fails.
type failingRunStore struct{}

func (failingRunStore) Append(_ context.Context, _ domain.RunRecord) error {
	return errors.New("disk full")
}

func (failingRunStore) List(_ context.Context, _ int) ([]domain.RunRecord, error) {
	return nil, errors.New("disk full")
}

// blockingRunStore holds every Append until release is closed.
type blockingRunStore struct {
	release chan struct{}
}

func (s *blockingRunStore) Append(_ context.Context, _ domain.RunRecord) error {
	<-s.release
	return nil
}

func (s *blockingRunStore) List(_ context.Context, _ int) ([]domain.RunRecord, error) {
	return nil, nil
}

// --- Fixtures ---

func ghanaFacilities() []domain.Facility {
	return []domain.Facility{
		{ID: "GH-0001", Name: "Korle Bu Teaching Hospital", Region: "Greater Accra", Type: "Teaching Hospital",
			Beds: 2000, StaffCount: 4000,
			Specialties:      []string{"Cardiology", "Neurology", "Surgery", "Pediatrics", "Oncology", "Obstetrics"},
			Equipment:        []string{"MRI", "CT Scanner", "X-Ray", "Ultrasound", "Ventilators", "Dialysis Machine"},
			Services:         []string{"Emergency", "ICU", "Surgery", "Laboratory", "Pharmacy", "Blood Bank"},
			CapabilitiesText: "National referral centre with cardiothoracic surgery"},
		{ID: "GH-0002", Name: "Ridge Regional Hospital", Region: "Greater Accra", Type: "Regional Hospital",
			Beds: 420, StaffCount: 800,
			Specialties: []string{"Obstetrics", "Pediatrics", "Internal Medicine", "Surgery"},
			Equipment:   []string{"CT Scanner", "X-Ray", "Ultrasound"},
			Services:    []string{"Emergency", "ICU", "Surgery", "Laboratory", "Blood Bank", "Pharmacy"}},
		{ID: "GH-0003", Name: "Bunkpurugu CHPS", Region: "North East", Type: "CHPS",
			Beds: 0, StaffCount: 2, Services: []string{"Immunisation"}, Notes: "MEDICAL DESERT"},
		{ID: "GH-0004", Name: "Chereponi Health Centre", Region: "North East", Type: "Health Centre",
			Beds: 0, StaffCount: 4, Equipment: []string{"Ultrasound"}, Services: []string{"Maternity"}},
		{ID: "GH-0005", Name: "Walewale District Hospital", Region: "North East", Type: "District Hospital",
			Beds: 0, StaffCount: 15, Services: []string{"Emergency"}},
	}
}
