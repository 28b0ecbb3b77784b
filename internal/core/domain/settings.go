package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderHashing is the built-in deterministic embedder. Embeddings only.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API. LLM only.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHashing, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs without a network service.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHashing:
		return "Hashing (built-in, deterministic)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	// BaseURL is the API endpoint (for Ollama).
	BaseURL string
	APIKey  string
	// Dimensions is the vector size of the hashing embedder.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
	// RequestsPerMinute throttles outgoing calls; 0 disables throttling.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderHashing {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// CallPolicy bounds every remote model call: one attempt plus at most
// Retries retries, each limited by Timeout.
type CallPolicy struct {
	Timeout time.Duration
	Backoff time.Duration
	Retries int
}

// AnswerSettings tunes the Answer Composer.
type AnswerSettings struct {
	TopK         int
	HistoryTurns int
}

// StorageBackend selects the facility/run/plan store.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageMemory StorageBackend = "memory"
)

// StorageSettings selects and locates the store.
type StorageSettings struct {
	Backend StorageBackend
	// Path is the sqlite database file.
	Path string
}

// DataSettings locates the facility dataset.
type DataSettings struct {
	FacilitiesPath string
	Watch          bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding       EmbeddingSettings
	LLM             LLMSettings
	Calls           CallPolicy
	Answer          AnswerSettings
	SessionMaxTurns int
	Storage         StorageSettings
	Data            DataSettings
	ServerAddr      string
	TelemetryBuffer int
	Scoring         ScoringConfig
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM is left unconfigured; embeddings use the built-in hashing embedder.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Model:      DefaultEmbeddingModels()[AIProviderHashing],
			Dimensions: DefaultHashingDimensions,
		},
		LLM: LLMSettings{},
		Calls: CallPolicy{
			Timeout: 30 * time.Second,
			Backoff: 500 * time.Millisecond,
			Retries: 1,
		},
		Answer:          AnswerSettings{TopK: 5, HistoryTurns: 10},
		SessionMaxTurns: 20,
		Storage:         StorageSettings{Backend: StorageSQLite},
		ServerAddr:      ":8001",
		TelemetryBuffer: 256,
		Scoring:         DefaultScoringConfig(),
	}
}

// DefaultHashingDimensions is the vector size of the hashing embedder.
const DefaultHashingDimensions = 384

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHashing,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHashing: "hashing-v1",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}
