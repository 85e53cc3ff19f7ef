package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/metrics"
	"github.com/ziadkadry99/docqa/internal/retrieval"
)

// DefaultK is the number of sources retrieved when neither the request nor
// Config sets k.
const DefaultK = 3

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

// Source is one retrieved record in a QueryResponse.
type Source struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Page    int    `json:"page,omitempty"`
}

// QueryResponse is the body returned by POST /query. Its shape does not
// depend on the retrieval mode.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// ErrorResponse carries the message of a failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationError is a malformed or out-of-range request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// validate applies defaults and returns the parsed mode and k.
func (req QueryRequest) validate(defaultK int) (retrieval.Mode, int, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", 0, &ValidationError{Field: "question", Message: "must not be empty"}
	}
	k := defaultK
	if req.K != nil {
		k = *req.K
	}
	if k < 1 {
		return "", 0, &ValidationError{Field: "k", Message: "must be at least 1"}
	}
	mode, err := retrieval.ParseMode(req.Mode)
	if err != nil {
		return "", 0, &ValidationError{Field: "mode", Message: err.Error()}
	}
	return mode, k, nil
}

// Query answers req. Validation failures are *ValidationError; collaborator
// failures are *retrieval.RetrievalError.
func (s *Server) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	defaultK := s.cfg.DefaultK
	if defaultK < 1 {
		defaultK = DefaultK
	}
	mode, k, err := req.validate(defaultK)
	if err != nil {
		return nil, err
	}

	if err := ingest.CheckModel(ctx, s.deps.Ledger, s.deps.Collection, s.deps.Embedder); err != nil {
		return nil, err
	}

	qe, err := s.strategies.For(mode)
	if err != nil {
		return nil, &ValidationError{Field: "mode", Message: err.Error()}
	}

	start := time.Now()
	res, err := s.chain.Answer(ctx, req.Question, k, qe)
	elapsed := time.Since(start)

	record := db.QueryRecord{
		Collection: s.deps.Collection,
		Mode:       string(mode),
		K:          k,
		Question:   req.Question,
		DurationMS: elapsed.Milliseconds(),
	}

	if err != nil {
		s.metrics.ObserveQuery(string(mode), "error", elapsed, 0)
		record.Error = err.Error()
		s.recordQuery(ctx, record)
		s.log.Error().Err(err).Str("mode", string(mode)).Str("stage", retrieval.StageOf(err)).Int("k", k).Msg("query failed")
		return nil, err
	}

	s.metrics.ObserveQuery(string(mode), "ok", elapsed, len(res.Sources))
	s.metrics.LLMGenerationsTotal.WithLabelValues(metrics.PurposeAnswer).Inc()
	tokens := s.countTokens(res.Prompt)
	s.metrics.PromptTokens.Observe(float64(tokens))

	resp := &QueryResponse{Answer: res.Answer, Sources: make([]Source, 0, len(res.Sources))}
	for _, m := range res.Sources {
		resp.Sources = append(resp.Sources, Source{
			Source:  m.Source,
			Title:   m.Title,
			Content: m.Text,
			Page:    m.Page,
		})
		record.Sources = append(record.Sources, m.Source)
	}
	record.PromptTokens = tokens
	s.recordQuery(ctx, record)

	s.log.Debug().Str("mode", string(mode)).Int("k", k).Int("sources", len(resp.Sources)).
		Dur("duration", elapsed).Msg("answered query")
	return resp, nil
}

func (s *Server) countTokens(prompt string) int {
	if s.deps.Tokens != nil {
		return s.deps.Tokens.Count(prompt)
	}
	return llm.EstimateTokens(prompt)
}

func (s *Server) recordQuery(ctx context.Context, q db.QueryRecord) {
	if s.deps.Ledger == nil {
		return
	}
	// Logging must not depend on the caller's cancellation.
	if err := s.deps.Ledger.RecordQuery(context.WithoutCancel(ctx), q); err != nil {
		s.log.Warn().Err(err).Msg("failed to record query")
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}

	resp, err := s.Query(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	report, err := s.Ingest(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("ingest failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"ingested": report.Documents})
}

func (s *Server) handleRecentQueries(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeJSON(w, http.StatusOK, []db.QueryRecord{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, &ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, 500)
	}

	records, err := s.deps.Ledger.RecentQueries(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []db.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// statusFor maps an error to its HTTP status and client-facing detail.
func statusFor(err error) (int, string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Error()
	case errors.Is(err, ingest.ErrNoDocuments):
		return http.StatusBadRequest, "No documents found to ingest"
	case errors.Is(err, ingest.ErrModelMismatch):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, detail := statusFor(err)
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
