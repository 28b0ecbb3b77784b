package driving

import (
	"context"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// AnswerService answers questions about facilities with cited evidence.
type AnswerService interface {
	// Answer runs the retrieval-augmented pipeline for one message.
	// An empty sessionID starts a new session.
	Answer(ctx context.Context, sessionID, message string) (*domain.Answer, error)
}

// SessionService exposes conversation history.
type SessionService interface {
	// History returns the session's turns, oldest first, or domain.ErrSessionNotFound.
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
}
