package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDimensions   = "embedding.dimensions"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMRPM            = "llm.requests_per_minute"
	keyCallTimeout       = "calls.timeout"
	keyCallBackoff       = "calls.backoff"
	keyCallRetries       = "calls.retries"
	keyAnswerTopK        = "answer.top_k"
	keyAnswerHistory     = "answer.history_turns"
	keySessionMaxTurns   = "session.max_turns"
	keyStorageBackend    = "storage.backend"
	keyStoragePath       = "storage.path"
	keyDataPath          = "data.facilities_path"
	keyDataWatch         = "data.watch"
	keyServerAddr        = "server.addr"
	keyTelemetryBuffer   = "telemetry.buffer"
	keyScoringPrefix     = "scoring."
	keyBenchmarksPrefix  = "scoring.benchmarks."
	keyDefaultBenchmark  = "scoring.default_benchmark."
	keyFacilityThreshold = "scoring.facility_threshold"
	keyZeroCapacityFloor = "scoring.zero_capacity_floor"
	keyEssentialServices = "scoring.essential_services"
	keyEssentialEquip    = "scoring.essential_equipment"
)

// providerEnv maps providers to the environment variables holding their keys.
var providerEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore, lookupEnv: os.LookupEnv}
}

// Get resolves settings. Environment keys fill in missing API keys and
// OLLAMA_HOST fills in a missing Ollama base URL.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDimensions, d.Embedding.Dimensions),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerMinute: s.getInt(keyLLMRPM, d.LLM.RequestsPerMinute),
		},
		Calls: domain.CallPolicy{
			Timeout: s.getDuration(keyCallTimeout, d.Calls.Timeout),
			Backoff: s.getDuration(keyCallBackoff, d.Calls.Backoff),
			Retries: d.Calls.Retries,
		},
		Answer: domain.AnswerSettings{
			TopK:         s.getInt(keyAnswerTopK, d.Answer.TopK),
			HistoryTurns: s.getInt(keyAnswerHistory, d.Answer.HistoryTurns),
		},
		SessionMaxTurns: s.getInt(keySessionMaxTurns, d.SessionMaxTurns),
		Storage: domain.StorageSettings{
			Backend: domain.StorageBackend(s.getString(keyStorageBackend, string(d.Storage.Backend))),
			Path:    s.configStore.GetString(keyStoragePath),
		},
		Data: domain.DataSettings{
			FacilitiesPath: s.configStore.GetString(keyDataPath),
			Watch:          s.getBool(keyDataWatch, d.Data.Watch),
		},
		ServerAddr:      s.getString(keyServerAddr, d.ServerAddr),
		TelemetryBuffer: s.getInt(keyTelemetryBuffer, d.TelemetryBuffer),
		Scoring:         s.getScoring(d.Scoring),
	}
	if _, ok := s.configStore.Get(keyCallRetries); ok {
		settings.Calls.Retries = s.configStore.GetInt(keyCallRetries)
	}

	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])
	s.applyEnv(&settings.Embedding.APIKey, &settings.Embedding.BaseURL, settings.Embedding.Provider)
	s.applyEnv(&settings.LLM.APIKey, &settings.LLM.BaseURL, settings.LLM.Provider)

	switch settings.Storage.Backend {
	case domain.StorageSQLite, domain.StorageMemory:
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrValidation, settings.Storage.Backend)
	}
	return settings, nil
}

func (s *SettingsService) applyEnv(apiKey, baseURL *string, provider domain.AIProvider) {
	if *apiKey == "" {
		if name, ok := providerEnv[provider]; ok {
			if v, ok := s.lookupEnv(name); ok {
				*apiKey = v
			}
		}
	}
	if *baseURL == "" && provider == domain.AIProviderOllama {
		if v, ok := s.lookupEnv("OLLAMA_HOST"); ok {
			*baseURL = v
		}
	}
}

// SetLLMProvider configures the language model.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || provider == domain.AIProviderHashing {
		return fmt.Errorf("%w: %s cannot serve as a language model", domain.ErrValidation, provider)
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	return s.setAll(map[string]any{keyLLMProvider: provider.String(), keyLLMModel: model}, keyLLMAPIKey, apiKey)
}

// SetEmbeddingProvider configures the embedder.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || provider == domain.AIProviderAnthropic {
		return fmt.Errorf("%w: %s cannot serve as an embedder", domain.ErrValidation, provider)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	return s.setAll(map[string]any{keyEmbedProvider: provider.String(), keyEmbedModel: model}, keyEmbedAPIKey, apiKey)
}

func (s *SettingsService) setAll(values map[string]any, apiKeyKey, apiKey string) error {
	for k, v := range values {
		if err := s.configStore.Set(k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	if apiKey != "" {
		if err := s.configStore.Set(apiKeyKey, apiKey); err != nil {
			return fmt.Errorf("save %s: %w", apiKeyKey, err)
		}
	}
	return nil
}

// Validate checks that configured providers are complete.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not fully configured", domain.ErrValidation, settings.Embedding.Provider)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: llm provider %q is not fully configured", domain.ErrValidation, settings.LLM.Provider)
	}
	return nil
}

// getScoring overlays configured scoring values on the defaults.
func (s *SettingsService) getScoring(d domain.ScoringConfig) domain.ScoringConfig {
	cfg := d
	cfg.FacilityThreshold = s.getFloat(keyFacilityThreshold, d.FacilityThreshold)
	cfg.ZeroCapacityFloor = s.getFloat(keyZeroCapacityFloor, d.ZeroCapacityFloor)

	fw := keyScoringPrefix + "facility_weights."
	cfg.FacilityWeights = domain.FacilityWeights{
		Capability: s.getFloat(fw+"capability", d.FacilityWeights.Capability),
		Staff:      s.getFloat(fw+"staff", d.FacilityWeights.Staff),
		Beds:       s.getFloat(fw+"beds", d.FacilityWeights.Beds),
	}

	rw := keyScoringPrefix + "weights."
	cfg.RegionWeights = domain.RegionWeights{
		Flagged:     s.getFloat(rw+"flagged", d.RegionWeights.Flagged),
		Deficiency:  s.getFloat(rw+"deficiency", d.RegionWeights.Deficiency),
		Beds:        s.getFloat(rw+"beds", d.RegionWeights.Beds),
		Staff:       s.getFloat(rw+"staff", d.RegionWeights.Staff),
		Specialties: s.getFloat(rw+"specialties", d.RegionWeights.Specialties),
		Services:    s.getFloat(rw+"services", d.RegionWeights.Services),
	}

	rb := keyScoringPrefix + "region."
	cfg.Region = domain.RegionBenchmark{
		BedsPerFacility:  s.getFloat(rb+"beds_per_facility", d.Region.BedsPerFacility),
		StaffPerFacility: s.getFloat(rb+"staff_per_facility", d.Region.StaffPerFacility),
		Specialties:      s.getInt(rb+"specialties", d.Region.Specialties),
	}

	cfg.DefaultBenchmark = s.getBenchmark(keyDefaultBenchmark, d.DefaultBenchmark)
	cfg.Benchmarks = make(map[string]domain.Benchmark, len(d.Benchmarks))
	for k, v := range d.Benchmarks {
		cfg.Benchmarks[k] = v
	}
	for _, key := range s.configStore.Keys(keyBenchmarksPrefix) {
		raw, _, ok := strings.Cut(strings.TrimPrefix(key, keyBenchmarksPrefix), ".")
		if !ok {
			continue
		}
		name := domain.BenchmarkKey(raw)
		base, exists := cfg.Benchmarks[name]
		if !exists {
			base = cfg.DefaultBenchmark
		}
		cfg.Benchmarks[name] = s.getBenchmark(keyBenchmarksPrefix+raw+".", base)
	}

	if v := s.configStore.GetStringSlice(keyEssentialServices); v != nil {
		cfg.EssentialServices = v
	}
	if v := s.configStore.GetStringSlice(keyEssentialEquip); v != nil {
		cfg.EssentialEquipment = v
	}
	return cfg
}

func (s *SettingsService) getBenchmark(prefix string, d domain.Benchmark) domain.Benchmark {
	return domain.Benchmark{
		Beds:         s.getIntAllowZero(prefix+"beds", d.Beds),
		Staff:        s.getIntAllowZero(prefix+"staff", d.Staff),
		Capabilities: s.getIntAllowZero(prefix+"capabilities", d.Capabilities),
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
