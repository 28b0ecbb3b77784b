package domain

import "time"

// Role identifies who authored a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation session.
type Turn struct {
	Role           Role            `json:"role"`
	Text           string          `json:"text"`
	Citations      []Citation      `json:"citations,omitempty"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Citation ties an answer to a facility retrieved in the same invocation.
type Citation struct {
	SourceID string `json:"source_id"`
	// Relevance is the retrieval similarity clamped to [0,1].
	Relevance float64 `json:"relevance_score"`
	Excerpt   string  `json:"text_excerpt"`
}

// ReasoningStep is a pipeline-authored record of one answer stage.
type ReasoningStep struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// Answer is the Answer Composer's result.
type Answer struct {
	SessionID      string          `json:"session_id"`
	Response       string          `json:"response"`
	Citations      []Citation      `json:"citations"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
	// Degraded is set when no generated synthesis is included.
	Degraded bool   `json:"degraded"`
	RunID    string `json:"run_id"`
}

// RetrievedDocument is one nearest-neighbour hit resolved to its facility.
type RetrievedDocument struct {
	Facility   Facility
	Text       string
	Similarity float64
}

// Neighbour is a raw index hit.
type Neighbour struct {
	ID         string
	Similarity float64
}

// IndexStats describes the published index generation.
type IndexStats struct {
	Generation uint64    `json:"generation"`
	Size       int       `json:"size"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	BuiltAt    time.Time `json:"built_at"`
}
