package domain

import "errors"

// Taxonomy errors classify every failure the engine surfaces.
// Narrower errors below wrap one of these so callers can match on the class.
var (
	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation error")

	// ErrTranslation indicates a natural-language query could not be mapped
	// to a safe, whitelisted structured query.
	ErrTranslation = errors.New("translation error")

	// ErrRetrieval indicates the retrieval index is unavailable or unusable.
	ErrRetrieval = errors.New("retrieval error")

	// ErrGeneration indicates the language model failed or timed out.
	ErrGeneration = errors.New("generation error")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Specific errors.
var (
	// ErrSessionNotFound indicates an unknown conversation session.
	ErrSessionNotFound = wrap(ErrNotFound, "session not found")

	// ErrFacilityNotFound indicates an unknown facility id.
	ErrFacilityNotFound = wrap(ErrNotFound, "facility not found")

	// ErrPlanNotFound indicates an unknown plan id.
	ErrPlanNotFound = wrap(ErrNotFound, "plan not found")

	// ErrIndexEmpty indicates no index generation has been built yet.
	ErrIndexEmpty = wrap(ErrRetrieval, "index has no generation")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = wrap(ErrRetrieval, "embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answers degrade to retrieval-only and translation/planning are disabled.
	ErrLLMUnavailable = wrap(ErrGeneration, "LLM service unavailable")

	// ErrEmptyMessage indicates a chat message with no text.
	ErrEmptyMessage = wrap(ErrValidation, "message is empty")

	// ErrEmptyQuery indicates a structured-query request with no text.
	ErrEmptyQuery = wrap(ErrValidation, "query is empty")
)

// classError keeps the specific message while matching its taxonomy class.
type classError struct {
	class error
	msg   string
}

func wrap(class error, msg string) error {
	return &classError{class: class, msg: msg}
}

func (e *classError) Error() string { return e.msg }

func (e *classError) Unwrap() error { return e.class }

// Class returns the taxonomy error err belongs to, or nil when it is not
// classified.
func Class(err error) error {
	for _, c := range []error{ErrValidation, ErrTranslation, ErrRetrieval, ErrGeneration, ErrNotFound} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
