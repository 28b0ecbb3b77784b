package driving

import "github.com/custodia-labs/oasis-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves settings from configuration, environment and defaults.
	Get() (*domain.AppSettings, error)

	// SetLLMProvider configures the language model.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetEmbeddingProvider configures the embedder.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks that configured providers are complete.
	Validate() error
}
