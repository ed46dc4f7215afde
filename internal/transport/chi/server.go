// Package chi exposes the classification service over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/document"
	"github.com/scamlens/scamlens/internal/domain/verdict"
	docrepo "github.com/scamlens/scamlens/internal/repository/document"
	classifyuc "github.com/scamlens/scamlens/internal/usecase/classify"
	corpusuc "github.com/scamlens/scamlens/internal/usecase/corpus"
	healthuc "github.com/scamlens/scamlens/internal/usecase/health"
	seeduc "github.com/scamlens/scamlens/internal/usecase/seed"
)

const maxMessageBytes = 128 * 1024

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the usecases.
type Server struct {
	classify *classifyuc.Service
	corpus   *corpusuc.Service
	seed     *seeduc.Loader
	health   *healthuc.Service
	logger   *zap.Logger

	seeding       atomic.Bool
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. seed can be nil when ingestion runs
// only through the seedloader binary.
func NewServer(
	classify *classifyuc.Service,
	corpus *corpusuc.Service,
	seed *seeduc.Loader,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		classify: classify,
		corpus:   corpus,
		seed:     seed,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrBusy, http.StatusTooManyRequests, "busy"),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, "document_not_found"),
		sentinelHandler(domain.ErrAllBackendsExhausted, http.StatusBadGateway, "backends_exhausted"),
		sentinelHandler(domain.ErrMalformedModelOutput, http.StatusBadGateway, "malformed_model_output"),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, "embedding_unavailable"),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"),
	}
	return s
}

// Routes registers the API endpoints on a router the caller has already
// wrapped with middleware.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", s.Classify)
		r.Post("/documents", s.AddDocument)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Post("/seed/reload", s.SeedReload)
	})
}

type classifyRequest struct {
	Message string `json:"message"`
}

type classifyResponse struct {
	ID                    string   `json:"id"`
	Label                 string   `json:"label"`
	Confidence            float64  `json:"confidence"`
	Rationale             string   `json:"rationale"`
	SupportingDocumentIDs []string `json:"supporting_document_ids"`
	Backend               string   `json:"backend"`
	Attempts              int      `json:"attempts"`
	ElapsedMs             int64    `json:"elapsed_ms"`
}

// Classify handles POST /api/v1/classify.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	body := http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Message is required")
		return
	}

	v, err := s.classify.Classify(r.Context(), req.Message)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verdictToResponse(v))
}

type addDocumentRequest struct {
	Text   string `json:"text"`
	Label  string `json:"label"`
	Source string `json:"source"`
}

type documentResponse struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Label  string `json:"label"`
	Source string `json:"source"`
}

// AddDocument handles POST /api/v1/documents: one reviewed example added to
// the corpus at runtime.
func (s *Server) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	body := http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	label, err := document.ParseLabel(req.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	doc, outcome, err := s.corpus.Add(r.Context(), req.Text, label, req.Source)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, domain.ErrStoreUnavailable) {
			s.handleDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	status := http.StatusCreated
	if outcome != docrepo.UpsertCreated {
		status = http.StatusOK
	}
	writeJSON(w, status, documentResponse{
		ID:     doc.ID(),
		Text:   doc.Text(),
		Label:  string(doc.Label()),
		Source: doc.Source(),
	})
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.corpus.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		ID:     doc.ID(),
		Text:   doc.Text(),
		Label:  string(doc.Label()),
		Source: doc.Source(),
	})
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.corpus.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type seedReloadResponse struct {
	Status         string `json:"status"`
	TotalRecords   int    `json:"total_records"`
	NewlyLoaded    int    `json:"newly_loaded"`
	AlreadyPresent int    `json:"already_present"`
	Failed         int    `json:"failed"`
	SkippedLines   int    `json:"skipped_lines"`
	ElapsedMs      int64  `json:"elapsed_ms"`
}

// SeedReload handles POST /api/v1/seed/reload. Only one reload runs at a
// time; a second request gets 409 instead of a duplicate ingestion pass.
func (s *Server) SeedReload(w http.ResponseWriter, r *http.Request) {
	if s.seed == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "Seed loading is not configured")
		return
	}
	if !s.seeding.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "seed_in_progress", "A seed reload is already running")
		return
	}
	defer s.seeding.Store(false)

	report, err := s.seed.Load(r.Context())

	resp := seedReloadResponse{
		Status:         "ok",
		TotalRecords:   report.TotalRecords,
		NewlyLoaded:    report.NewlyLoaded,
		AlreadyPresent: report.AlreadyPresent,
		Failed:         report.Failed,
		SkippedLines:   len(report.SkippedLines),
		ElapsedMs:      report.Elapsed.Milliseconds(),
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, domain.ErrSeedPartialFailure):
		resp.Status = "partial_failure"
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		s.handleDomainError(w, err)
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func verdictToResponse(v verdict.Verdict) classifyResponse {
	ids := v.SupportingDocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return classifyResponse{
		ID:                    v.ID,
		Label:                 string(v.Label),
		Confidence:            v.Confidence,
		Rationale:             v.Rationale,
		SupportingDocumentIDs: ids,
		Backend:               v.Backend,
		Attempts:              v.AttemptCount,
		ElapsedMs:             v.Elapsed.Milliseconds(),
	}
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
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrBusy,
		domain.ErrDocumentNotFound,
		domain.ErrAllBackendsExhausted,
		domain.ErrMalformedModelOutput,
		domain.ErrEmbeddingUnavailable,
		domain.ErrStoreUnavailable,
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

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
