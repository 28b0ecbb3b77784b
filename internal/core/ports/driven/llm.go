package driven

import (
	"context"
	"errors"
)

// ErrRejected marks a model call the provider refused outright (bad key,
// unknown model, malformed request). Repeating it cannot succeed, so the
// call policy does not retry it.
var ErrRejected = errors.New("request rejected by provider")

// LLMService is the language-model collaborator. It is optional: when nil,
// answers degrade to retrieval-only and query translation and planning
// report ErrLLMUnavailable.
type LLMService interface {
	// Generate completes a single prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat conducts a multi-turn conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping checks reachability and credentials without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions bounds a completion. Zero MaxTokens means the adapter
// default; Temperature 0 asks for the most deterministic output.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	StopWords   []string
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a chat exchange.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions bounds a chat completion.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}
