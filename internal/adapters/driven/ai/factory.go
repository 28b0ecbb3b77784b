// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	hashingembed "github.com/custodia-labs/oasis-cli/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/oasis-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/oasis-cli/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/oasis-cli/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/oasis-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/oasis-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/llm/ratelimit"
	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
var pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	// LLMService is nil when no language model is configured or reachable.
	LLMService driven.LLMService
	Warnings   []string // Non-fatal issues that caused fallback.
	// FellBack is true when the configured embedder was replaced by the
	// built-in hashing embedder.
	FellBack bool
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		_ = r.LLMService.Close()
	}
}

// Initialise creates and pings the configured services. It never fails:
// an unusable embedder falls back to the hashing embedder and an unusable
// language model is left nil, with a warning recorded either way.
func Initialise(ctx context.Context, settings *domain.AppSettings) *InitResult {
	result := &InitResult{}

	embed, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
	}
	if embed == nil {
		embed = hashingembed.NewEmbeddingService(settings.Embedding.Dimensions)
	}
	result.EmbeddingService = embed

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.LLMService = llm

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	logger.Debug("embedder %s, llm %s", embed.ModelName(), modelName(llm))
	return result
}

func modelName(llm driven.LLMService) string {
	if llm == nil {
		return "none"
	}
	return llm.ModelName()
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when the provider is not configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'oasis settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if err := ping(ctx, svc.Ping); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w)",
			domain.ErrEmbeddingUnavailable, settings.Provider, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error when the provider is not configured.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'oasis settings llm' to fix",
			domain.ErrLLMUnavailable, err)
	}
	if err := ping(ctx, svc.Ping); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w)",
			domain.ErrLLMUnavailable, settings.Provider, err)
	}
	return svc, nil
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// CreateEmbeddingService creates the embedding service for the settings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("embedding provider is not configured")
	}

	switch settings.Provider {
	case domain.AIProviderHashing:
		return hashingembed.NewEmbeddingService(settings.Dimensions), nil

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the LLM service for the settings, throttled to
// the configured request rate.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("llm provider is not configured")
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		svc, err = anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return ratelimit.Wrap(svc, settings.RequestsPerMinute), nil
}
