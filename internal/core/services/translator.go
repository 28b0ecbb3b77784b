package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// Ensure QueryTranslator implements the interface.
var _ driving.QueryService = (*QueryTranslator)(nil)

const translateMaxTokens = 512

// QueryTranslator maps natural language to validated structured queries and
// executes them against the facility store.
type QueryTranslator struct {
	store    driven.FacilityStore
	llm      driven.LLMService
	prompts  driven.PromptStore
	recorder *TelemetryRecorder
	policy   domain.CallPolicy
}

// NewQueryTranslator creates a translator. The prompts and recorder
// parameters are optional; without llm every translation fails with
// domain.ErrLLMUnavailable.
func NewQueryTranslator(
	store driven.FacilityStore,
	llm driven.LLMService,
	prompts driven.PromptStore,
	recorder *TelemetryRecorder,
	policy domain.CallPolicy,
) *QueryTranslator {
	return &QueryTranslator{store: store, llm: llm, prompts: prompts, recorder: recorder, policy: policy}
}

// Translate asks the model for a query and validates it. The facility store
// is never touched.
func (t *QueryTranslator) Translate(ctx context.Context, request string) (*domain.StructuredQuery, string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, "", domain.ErrEmptyQuery
	}
	if t.llm == nil {
		return nil, "", domain.ErrLLMUnavailable
	}

	logger.Section("Query Translation")
	prompt := fmt.Sprintf(loadPrompt(t.prompts, driven.PromptQueryTranslate), request)
	raw, err := callWithRetry(ctx, t.policy, "translate query", func(ctx context.Context) (string, error) {
		return t.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: translateMaxTokens, Temperature: 0})
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: translate query: %v", domain.ErrGeneration, err)
	}
	logger.Debug("Model output: %s", raw)

	q, explanation, err := parseTranslation(raw)
	if err != nil {
		logger.Warn("rejected translation: %v", err)
		return nil, "", err
	}
	return q, explanation, nil
}

// Query translates the request and executes it only after validation.
func (t *QueryTranslator) Query(ctx context.Context, request string) (*domain.QueryResult, error) {
	start := time.Now()
	record := domain.RunRecord{
		Type:      domain.RunTypeQuery,
		RunName:   "text2query",
		StartTime: start.UTC(),
		Params:    map[string]string{"query": excerpt(request, 200)},
		Metrics:   map[string]float64{},
	}

	q, explanation, err := t.Translate(ctx, request)
	record.Metrics["translate_ms"] = millis(time.Since(start))
	if err != nil {
		record.Status = domain.RunStatusFailed
		record.Params["error"] = err.Error()
		record.Metrics["result_count"] = 0
		t.recorder.Record(record)
		return nil, err
	}

	execStart := time.Now()
	rows, err := t.store.List(ctx, q)
	if err != nil {
		record.Status = domain.RunStatusFailed
		record.Params["error"] = err.Error()
		t.recorder.Record(record)
		return nil, fmt.Errorf("execute query: %w", err)
	}
	record.Status = domain.RunStatusFinished
	record.Metrics["execute_ms"] = millis(time.Since(execStart))
	record.Metrics["result_count"] = float64(len(rows))
	record.Metrics["total_latency_ms"] = millis(time.Since(start))
	if filter, err := json.Marshal(q); err == nil {
		record.Params["structured_filter"] = string(filter)
	}
	runID := t.recorder.Record(record)

	return &domain.QueryResult{
		Query:       q,
		Results:     rows,
		Explanation: explanation,
		ResultCount: len(rows),
		RunID:       runID,
	}, nil
}

// wireQuery is the JSON grammar the model must emit.
type wireQuery struct {
	Conditions  []wireCondition  `json:"conditions"`
	Sort        *domain.SortSpec `json:"sort"`
	Limit       json.RawMessage  `json:"limit"`
	Explanation string           `json:"explanation"`
}

// maxExplanationRunes caps a model-written explanation.
const maxExplanationRunes = 300

type wireCondition struct {
	Field string          `json:"field"`
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

// ParseStructuredQuery decodes and validates model output. Markdown code
// fences are stripped; anything else outside the grammar is a TranslationError.
func ParseStructuredQuery(raw string) (*domain.StructuredQuery, error) {
	q, _, err := parseTranslation(raw)
	return q, err
}

// parseTranslation also returns the explanation shown to the user: the
// model's own when it wrote one, otherwise one rendered from the query.
func parseTranslation(raw string) (*domain.StructuredQuery, string, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, "", fmt.Errorf("%w: empty model output", domain.ErrTranslation)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var w wireQuery
	if err := dec.Decode(&w); err != nil {
		return nil, "", fmt.Errorf("%w: malformed query: %v", domain.ErrTranslation, err)
	}
	if dec.More() {
		return nil, "", fmt.Errorf("%w: trailing data after query", domain.ErrTranslation)
	}

	q := &domain.StructuredQuery{Sort: w.Sort, Limit: domain.DefaultQueryLimit}
	if len(w.Limit) > 0 {
		var limit *int
		if err := json.Unmarshal(w.Limit, &limit); err != nil || limit == nil {
			return nil, "", fmt.Errorf("%w: limit must be an integer", domain.ErrTranslation)
		}
		q.Limit = *limit
	}
	for i, wc := range w.Conditions {
		c, err := decodeCondition(wc)
		if err != nil {
			return nil, "", fmt.Errorf("condition %d: %w", i+1, err)
		}
		q.Conditions = append(q.Conditions, c)
	}
	if err := q.Validate(); err != nil {
		return nil, "", err
	}
	return q, explanationFor(q, w.Explanation), nil
}

func explanationFor(q *domain.StructuredQuery, written string) string {
	text := strings.Join(strings.Fields(written), " ")
	if text == "" {
		return q.Explain()
	}
	if r := []rune(text); len(r) > maxExplanationRunes {
		text = string(r[:maxExplanationRunes]) + "..."
	}
	return text
}

func decodeCondition(wc wireCondition) (domain.Condition, error) {
	c := domain.Condition{Field: domain.Field(wc.Field), Op: domain.Operator(wc.Op)}
	kind := c.Field.Kind()
	if kind == domain.KindUnknown {
		return c, fmt.Errorf("%w: unknown field %q", domain.ErrTranslation, wc.Field)
	}
	value := bytes.TrimSpace(wc.Value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return c, fmt.Errorf("%w: field %q has no value", domain.ErrTranslation, wc.Field)
	}

	wrongType := fmt.Errorf("%w: value for %q %q has the wrong type", domain.ErrTranslation, wc.Field, wc.Op)
	switch {
	case kind == domain.KindNumber:
		var n *float64
		if err := json.Unmarshal(value, &n); err != nil || n == nil {
			return c, wrongType
		}
		c.Number = *n
	case c.Op.TakesList():
		var items []*string
		if err := json.Unmarshal(value, &items); err != nil {
			return c, wrongType
		}
		for _, item := range items {
			if item == nil {
				return c, fmt.Errorf("%w: null in list for %q", domain.ErrTranslation, wc.Field)
			}
			c.Values = append(c.Values, *item)
		}
	default:
		if err := json.Unmarshal(value, &c.Text); err != nil {
			return c, wrongType
		}
	}
	return c, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
