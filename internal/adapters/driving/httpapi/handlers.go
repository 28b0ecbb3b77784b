package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// planHistoryLimit is the number of plans GET /api/planning/history returns.
const planHistoryLimit = 20

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type queryRequest struct {
	Query string `json:"query"`
}

// queryErrorBody keeps the result shape on failure so clients can always
// read result_count.
type queryErrorBody struct {
	errorBody
	ResultCount int `json:"result_count"`
}

type historyResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []domain.Turn `json:"turns"`
}

type healthResponse struct {
	Status          string `json:"status"`
	IndexSize       int    `json:"index_size"`
	IndexDimensions int    `json:"index_dimensions"`
	IndexGeneration uint64 `json:"index_generation"`
	EmbeddingModel  string `json:"embedding_model"`
	LLMModel        string `json:"llm_model"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", LLMModel: s.cfg.LLMModel}
	if resp.LLMModel == "" {
		resp.LLMModel = "none"
	}
	if s.ports.Index != nil {
		stats := s.ports.Index.Stats()
		resp.IndexSize = stats.Size
		resp.IndexDimensions = stats.Dimensions
		resp.IndexGeneration = stats.Generation
		resp.EmbeddingModel = stats.Model
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.ports.Answer == nil {
		writeError(w, fmt.Errorf("chat: %w", errUnavailable))
		return
	}
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	answer, err := s.ports.Answer.Answer(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Debug("request %s answered in session %s", middleware.GetReqID(r.Context()), answer.SessionID)
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if s.ports.Sessions == nil {
		writeError(w, fmt.Errorf("chat history: %w", errUnavailable))
		return
	}
	id := chi.URLParam(r, "sessionID")
	turns, err := s.ports.Sessions.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Turns: turns})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		status, body := errorResponse(err)
		writeJSON(w, status, queryErrorBody{errorBody: body})
	}
	if s.ports.Query == nil {
		fail(fmt.Errorf("query: %w", errUnavailable))
		return
	}
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		fail(err)
		return
	}

	result, err := s.ports.Query.Query(r.Context(), req.Query)
	if err != nil {
		fail(err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.ports.Analysis.Regions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ports.Analysis.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFacility(w http.ResponseWriter, r *http.Request) {
	assessment, err := s.ports.Analysis.Facility(r.Context(), chi.URLParam(r, "facilityID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handlePlanGenerate(w http.ResponseWriter, r *http.Request) {
	if s.ports.Planning == nil {
		writeError(w, fmt.Errorf("planning: %w", errUnavailable))
		return
	}
	var req domain.PlanRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	plan, err := s.ports.Planning.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handlePlanHistory(w http.ResponseWriter, r *http.Request) {
	if s.ports.Planning == nil {
		writeError(w, fmt.Errorf("planning: %w", errUnavailable))
		return
	}
	plans, err := s.ports.Planning.History(r.Context(), planHistoryLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.ports.Telemetry == nil {
		writeError(w, fmt.Errorf("runs: %w", errUnavailable))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: limit must be an integer", domain.ErrValidation))
			return
		}
		limit = n
	}
	runs, err := s.ports.Telemetry.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	if s.ports.Index == nil {
		writeError(w, fmt.Errorf("index: %w", errUnavailable))
		return
	}
	stats, err := s.ports.Index.Rebuild(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
