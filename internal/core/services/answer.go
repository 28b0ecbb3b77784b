package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// Ensure AnswerComposer implements the interface.
var _ driving.AnswerService = (*AnswerComposer)(nil)

// historyExcerptLength truncates assistant turns in the generation context.
const historyExcerptLength = 300

// Reasoning step actions, in pipeline order.
const (
	actionEmbed     = "Query Embedding"
	actionRetrieve  = "Semantic Retrieval"
	actionContext   = "Context Assembly"
	actionGenerate  = "Generation"
	actionDegraded  = "Generation Unavailable"
	actionCitations = "Citation Extraction"
	actionMemory    = "Memory Update"
	actionTelemetry = "Telemetry"
)

const (
	answerMaxTokens   = 1024
	answerTemperature = 0.2
)

// AnswerComposer runs the retrieval-augmented answer pipeline.
type AnswerComposer struct {
	index    *EmbeddingIndex
	sessions *SessionMemory
	llm      driven.LLMService
	prompts  driven.PromptStore
	recorder *TelemetryRecorder
	settings domain.AnswerSettings
	policy   domain.CallPolicy
	now      func() time.Time
}

// NewAnswerComposer creates a composer. The llm, prompts and recorder
// parameters are optional (can be nil).
func NewAnswerComposer(
	index *EmbeddingIndex,
	sessions *SessionMemory,
	llm driven.LLMService,
	prompts driven.PromptStore,
	recorder *TelemetryRecorder,
	settings domain.AnswerSettings,
	policy domain.CallPolicy,
) *AnswerComposer {
	return &AnswerComposer{
		index:    index,
		sessions: sessions,
		llm:      llm,
		prompts:  prompts,
		recorder: recorder,
		settings: settings,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// trace accumulates pipeline-authored reasoning steps.
type trace []domain.ReasoningStep

func (t *trace) add(action, format string, args ...any) {
	*t = append(*t, domain.ReasoningStep{Step: len(*t) + 1, Action: action, Detail: fmt.Sprintf(format, args...)})
}

// Answer runs embed, retrieve, context, generate, cite, remember and record
// for one message. Retrieval and generation failures degrade the answer
// instead of failing it.
func (c *AnswerComposer) Answer(ctx context.Context, sessionID, message string) (*domain.Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	logger.Section("Answer")
	logger.Debug("Session: %s, message: %q", sessionID, message)

	release, err := c.sessions.Begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	runID := NewRunID()
	record := domain.RunRecord{
		RunID:     runID,
		RunName:   sessionID,
		Type:      domain.RunTypeChat,
		StartTime: c.now(),
		Params: map[string]string{
			"session_id": sessionID,
			"top_k":      fmt.Sprint(c.settings.TopK),
			"llm_model":  c.modelName(),
		},
		Metrics: map[string]float64{},
	}
	var steps trace

	// 1-2. Embed and retrieve against one generation.
	docs, retrieval, rerr := c.retrieve(ctx, message)
	if rerr != nil {
		logger.Warn("retrieval failed: %v", rerr)
		steps.add(actionEmbed, "Query not embedded: %v", rerr)
		steps.add(actionRetrieve, "Retrieval unavailable, continuing without facility documents")
		record.Params["retrieval_error"] = rerr.Error()
	} else {
		steps.add(actionEmbed, "Embedded the question with %s in %.1fms", c.index.embedderModel(), millis(retrieval.EmbedTime))
		steps.add(actionRetrieve, "Retrieved %d facility documents from index generation %d in %.1fms",
			len(docs), retrieval.Generation, millis(retrieval.SearchTime))
		record.Metrics["embed_ms"] = millis(retrieval.EmbedTime)
		record.Metrics["retrieval_ms"] = millis(retrieval.SearchTime)
		record.Params["index_generation"] = fmt.Sprint(retrieval.Generation)
	}
	record.Metrics["docs_retrieved"] = float64(len(docs))

	// 3. Assemble context.
	history := c.sessions.Context(sessionID, c.settings.HistoryTurns)
	messages := c.buildMessages(history, docs, message)
	steps.add(actionContext, "Assembled %d prior turns and %d source documents", len(history), len(docs))

	// 4. Generate.
	genStart := time.Now()
	text, gerr := c.generate(ctx, messages)
	record.Metrics["llm_latency_ms"] = millis(time.Since(genStart))

	// 5. Cite.
	var citations []domain.Citation
	degraded := gerr != nil
	if degraded {
		logger.Warn("generation failed, degrading to retrieval-only: %v", gerr)
		steps.add(actionDegraded, "Language model unavailable (%v); returning retrieval-only answer", gerr)
		text = retrievalOnlyResponse(docs)
		citations = make([]domain.Citation, 0, len(docs))
		for _, d := range docs {
			citations = append(citations, citeDocument(d))
		}
		steps.add(actionCitations, "Cited all %d retrieved documents", len(citations))
		record.Params["generation_error"] = gerr.Error()
	} else {
		steps.add(actionGenerate, "Generated %d characters with %s", len(text), c.modelName())
		ids, perr := ParseCitations(text)
		if perr != nil {
			citations = []domain.Citation{}
			steps.add(actionCitations, "Citation markers could not be parsed (%v); no citations reported", perr)
		} else {
			var dropped int
			citations, dropped = ResolveCitations(ids, docs)
			steps.add(actionCitations, "Extracted %d citations, dropped %d not in the retrieval set", len(citations), dropped)
			record.Metrics["citations_dropped"] = float64(dropped)
		}
	}

	// 6-7. Remember and record.
	steps.add(actionMemory, "Stored the exchange in session %s (window %d turns)", sessionID, c.sessions.MaxTurns())
	steps.add(actionTelemetry, "Queued run %s", runID)

	now := c.now()
	c.sessions.Append(sessionID,
		domain.Turn{Role: domain.RoleUser, Text: message, Timestamp: now},
		domain.Turn{Role: domain.RoleAssistant, Text: text, Citations: citations, ReasoningSteps: steps, Timestamp: now},
	)

	record.Status = domain.RunStatusFinished
	if degraded {
		record.Status = domain.RunStatusDegraded
		record.Metrics["degraded"] = 1
	}
	record.Metrics["citation_count"] = float64(len(citations))
	record.Metrics["total_latency_ms"] = millis(time.Since(start))
	c.recorder.Record(record)

	return &domain.Answer{
		SessionID:      sessionID,
		Response:       text,
		Citations:      citations,
		ReasoningSteps: steps,
		Degraded:       degraded,
		RunID:          runID,
	}, nil
}

func (c *AnswerComposer) retrieve(ctx context.Context, message string) ([]domain.RetrievedDocument, *Retrieval, error) {
	if c.index == nil {
		return nil, nil, domain.ErrIndexEmpty
	}
	r, err := c.index.Retrieve(ctx, message, c.settings.TopK)
	if err != nil {
		return nil, nil, err
	}
	return r.Documents, r, nil
}

func (c *AnswerComposer) generate(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	if c.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	text, err := callWithRetry(ctx, c.policy, "generate answer", func(ctx context.Context) (string, error) {
		return c.llm.Chat(ctx, messages, driven.ChatOptions{MaxTokens: answerMaxTokens, Temperature: answerTemperature})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrGeneration)
	}
	return strings.TrimSpace(text), nil
}

// buildMessages lays out system prompt, prior turns and the grounded
// question. Source blocks carry the facility id used for citations.
func (c *AnswerComposer) buildMessages(history []domain.Turn, docs []domain.RetrievedDocument, message string) []driven.ChatMessage {
	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{Role: driven.RoleSystem, Content: loadPrompt(c.prompts, driven.PromptChatSystem)})

	for _, t := range history {
		text := t.Text
		if t.Role == domain.RoleAssistant {
			text = excerpt(text, historyExcerptLength)
		}
		messages = append(messages, driven.ChatMessage{Role: string(t.Role), Content: text})
	}

	var b strings.Builder
	if len(docs) == 0 {
		b.WriteString("No facility documents matched this question.\n\n")
	} else {
		b.WriteString("Facility documents:\n\n")
		for i, d := range docs {
			fmt.Fprintf(&b, "[Source %d: %s]\n%s\n\n", i+1, d.Facility.ID, d.Text)
		}
	}
	fmt.Fprintf(&b, "Question: %s", message)
	messages = append(messages, driven.ChatMessage{Role: driven.RoleUser, Content: b.String()})
	return messages
}

func (c *AnswerComposer) modelName() string {
	if c.llm == nil {
		return "none"
	}
	return c.llm.ModelName()
}

// retrievalOnlyResponse lists the retrieved facilities without synthesis.
func retrievalOnlyResponse(docs []domain.RetrievedDocument) string {
	var b strings.Builder
	b.WriteString("The language model is unavailable, so this answer contains no generated synthesis.")
	if len(docs) == 0 {
		b.WriteString(" No matching facilities were retrieved.")
		return b.String()
	}
	b.WriteString(" The most relevant facilities are:\n")
	for _, d := range docs {
		f := d.Facility
		fmt.Fprintf(&b, "\n- %s [%s]: %s, %s Region. %d beds, %d staff.", f.Name, f.ID, f.Type, f.Region, f.Beds, f.StaffCount)
	}
	return b.String()
}

// NewSessionID returns a fresh session id.
func NewSessionID() string {
	return "chat_" + shortID()
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
