package driven

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// AIConfigValidator verifies provider settings by testing connectivity to
// the underlying AI services.
type AIConfigValidator interface {
	// ValidateEmbedding pings the embedding provider.
	ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error

	// ValidateLLM pings the LLM provider. An unset provider is valid.
	ValidateLLM(ctx context.Context, config *domain.LLMSettings) error
}
