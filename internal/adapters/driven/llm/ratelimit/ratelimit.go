// Package ratelimit throttles calls to an LLM provider.
package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultCooldown is how long calls are held back after the provider
// answers 429 Too Many Requests.
const DefaultCooldown = 10 * time.Second

// LLMService wraps another LLMService with a token bucket. Each Generate or
// Chat call takes one token; a 429 response pauses all callers for the
// cooldown.
type LLMService struct {
	next     driven.LLMService
	limiter  *rate.Limiter
	cooldown time.Duration

	mu      sync.Mutex
	retryAt time.Time
}

// Wrap returns next throttled to requestsPerMinute. A non-positive rate
// returns next unchanged.
func Wrap(next driven.LLMService, requestsPerMinute int) driven.LLMService {
	if requestsPerMinute <= 0 || next == nil {
		return next
	}
	return &LLMService{
		next:     next,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		cooldown: DefaultCooldown,
	}
}

func (s *LLMService) wait(ctx context.Context) error {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return s.limiter.Wait(ctx)
}

func (s *LLMService) observe(err error) {
	var se *httpjson.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		return
	}
	s.mu.Lock()
	s.retryAt = time.Now().Add(s.cooldown)
	s.mu.Unlock()
	logger.Warn("%s rate limited, pausing calls for %s", s.next.ModelName(), s.cooldown)
}

// Generate waits for a token and delegates.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.next.Generate(ctx, prompt, opts)
	s.observe(err)
	return out, err
}

// Chat waits for a token and delegates.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.next.Chat(ctx, messages, opts)
	s.observe(err)
	return out, err
}

// ModelName returns the wrapped model name.
func (s *LLMService) ModelName() string {
	return s.next.ModelName()
}

// Ping is not throttled.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped service.
func (s *LLMService) Close() error {
	return s.next.Close()
}
