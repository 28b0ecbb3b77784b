package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings by building the service and
// pinging it.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding pings the configured embedder.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error {
	if config == nil {
		return fmt.Errorf("%w: no embedding settings", domain.ErrValidation)
	}
	if !config.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not fully configured", domain.ErrValidation, config.Provider)
	}
	svc, err := CreateEmbeddingService(config)
	if err != nil {
		return err
	}
	defer svc.Close()
	return ping(ctx, svc.Ping)
}

// ValidateLLM pings the configured language model. An unset provider is valid.
func (v *ConfigValidator) ValidateLLM(ctx context.Context, config *domain.LLMSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if !config.IsConfigured() {
		return fmt.Errorf("%w: llm provider %q is not fully configured", domain.ErrValidation, config.Provider)
	}
	svc, err := CreateLLMService(config)
	if err != nil {
		return err
	}
	defer svc.Close()
	return ping(ctx, svc.Ping)
}
