// Package chi is the HTTP transport: a hand-written chi router over the
// retrieval, ingest, and health services.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/mode"
	"github.com/snipara/contextd/internal/domain/query"
	"github.com/snipara/contextd/internal/domain/section"
	logpkg "github.com/snipara/contextd/internal/logger"
	"github.com/snipara/contextd/internal/metrics"
	healthuc "github.com/snipara/contextd/internal/usecase/health"
	indexuc "github.com/snipara/contextd/internal/usecase/index"
	retrievaluc "github.com/snipara/contextd/internal/usecase/retrieval"
)

const maxIngestBatch = 100

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeModeNotAllowed   = "mode_not_allowed"
	codeNotFound         = "not_found"
	codeRateLimited      = "rate_limited"
	codeRetrievalFailed  = "retrieval_failed"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the engine over HTTP. Handlers log through the
// request-scoped logger installed by the wide-event middleware.
type Server struct {
	retrieval     *retrievaluc.Service
	ingest        *indexuc.Service
	health        *healthuc.Service
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	ingest *indexuc.Service,
	health *healthuc.Service,
) *Server {
	s := &Server{
		retrieval: retrieval,
		ingest:    ingest,
		health:    health,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrModeNotAllowed, http.StatusForbidden, codeModeNotAllowed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrSectionNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, codeProviderError),
		sentinelHandler(domain.ErrRetrievalFailed, http.StatusServiceUnavailable, codeRetrievalFailed),
	}
	return s
}

// Routes registers all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/context/optimize", s.OptimizeContext)
	r.Post("/v1/sections", s.IngestSections)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type optimizeRequest struct {
	Query       string `json:"query"`
	TokenBudget int    `json:"token_budget"`
	Mode        string `json:"mode,omitempty"`
	ProjectID   string `json:"project_id"`
}

type sectionItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	DocumentID string  `json:"document_id"`
	Tokens     int     `json:"tokens"`
	Score      float64 `json:"score"`
	Body       string  `json:"body,omitempty"`
}

type optimizeResponse struct {
	Sections      []sectionItem `json:"sections"`
	TotalTokens   int           `json:"total_tokens"`
	SemanticStage string        `json:"semantic_stage"`
}

// OptimizeContext handles POST /v1/context/optimize.
func (s *Server) OptimizeContext(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := query.New(req.Query, req.TokenBudget, mode.Mode(req.Mode), req.ProjectID, Capabilities(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ranked, err := s.retrieval.Retrieve(r.Context(), q)
	if err != nil {
		metrics.RetrievalQueriesTotal.WithLabelValues("none", "error").Inc()
		s.handleDomainError(w, r, err)
		return
	}
	metrics.RetrievalQueriesTotal.WithLabelValues(ranked.SemanticStage(), "success").Inc()
	metrics.RetrievalSelectedTokens.Observe(float64(ranked.TotalTokens()))

	entries := ranked.Entries()
	items := make([]sectionItem, len(entries))
	for i := range entries {
		sec := entries[i].Section()
		items[i] = sectionItem{
			ID:         sec.ID(),
			Title:      sec.Title(),
			DocumentID: sec.DocumentID(),
			Tokens:     sec.Tokens(),
			Score:      entries[i].Score(),
			Body:       sec.Body(),
		}
	}

	writeJSON(w, http.StatusOK, optimizeResponse{
		Sections:      items,
		TotalTokens:   ranked.TotalTokens(),
		SemanticStage: ranked.SemanticStage(),
	})
}

type ingestSection struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	DocumentID      string `json:"document_id"`
	Tokens          int    `json:"tokens,omitempty"`
	Shared          bool   `json:"shared,omitempty"`
	SharedMandatory bool   `json:"shared_mandatory,omitempty"`
}

type ingestRequest struct {
	ProjectID string          `json:"project_id"`
	Sections  []ingestSection `json:"sections"`
}

type ingestResponse struct {
	Ingested int `json:"ingested"`
}

// IngestSections handles POST /v1/sections.
func (s *Server) IngestSections(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "project_id is required")
		return
	}
	if len(req.Sections) == 0 || len(req.Sections) > maxIngestBatch {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("sections count must be between 1 and %d", maxIngestBatch))
		return
	}

	sections := make([]section.Section, 0, len(req.Sections))
	for _, item := range req.Sections {
		sec, err := section.New(item.ID, item.Title, item.Body, item.DocumentID, req.ProjectID, item.Tokens)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("section %q: %s", item.ID, err))
			return
		}
		if item.Shared || item.SharedMandatory {
			sec = sec.WithSharing(true, item.SharedMandatory)
		}
		sections = append(sections, sec)
	}

	if err := s.ingest.Ingest(r.Context(), sections); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{Ingested: len(sections)})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if !report.Ready {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrModeNotAllowed,
		domain.ErrNotFound,
		domain.ErrSectionNotFound,
		domain.ErrRateLimited,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrEmbeddingUnavailable,
		domain.ErrRetrievalFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
