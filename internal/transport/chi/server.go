package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	analyzeuc "github.com/kailas-cloud/tagrec/internal/usecase/analyze"
	healthuc "github.com/kailas-cloud/tagrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/tagrec/internal/usecase/recommend"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the recommendation, analysis and index operations over HTTP.
type Server struct {
	recommender   Recommender
	analyzer      Analyzer
	indexer       Indexer
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recommender Recommender,
	analyzer Analyzer,
	indexer Indexer,
	health HealthReporter,
	logger *zap.Logger,
) *Server {
	s := &Server{
		recommender: recommender,
		analyzer:    analyzer,
		indexer:     indexer,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrMissingInput, http.StatusBadRequest, ErrorCodeMissingInput),
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, ErrorCodeInvalidArgument),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrIndexStale, http.StatusConflict, ErrorCodeIndexStale),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusConflict, ErrorCodeIndexStale),
		sentinelHandler(domain.ErrNoTaggedRecords, http.StatusUnprocessableEntity, ErrorCodeNoTaggedRecords),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, ErrorCodeIndexUnavailable),
	}
	return s
}

// Mount registers all API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1/recommendations", func(r chi.Router) {
		r.Post("/tags", s.RecommendTags)
		r.Post("/ai/analyze", s.AnalyzeTags)
		r.Post("/index/build", s.BuildIndex)
		r.Get("/index/stats", s.IndexStats)
		r.Put("/index/records/{id}", s.IndexRecord)
		r.Delete("/index/records/{id}", s.RemoveRecord)
	})
}

// RecommendTags handles POST /api/v1/recommendations/tags.
func (s *Server) RecommendTags(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecommend(w, r)
	if !ok {
		return
	}

	if req.TopK != nil && *req.TopK == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidArgument, "top_k must be positive")
		return
	}

	res, err := s.recommender.Recommend(r.Context(), recommenduc.Request{
		RecordID:      req.recordID(),
		Text:          req.text(),
		TopK:          derefInt(req.TopK),
		MinSimilarity: req.MinSimilarity,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendToResponse(&res))
}

// AnalyzeTags handles POST /api/v1/recommendations/ai/analyze.
func (s *Server) AnalyzeTags(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecommend(w, r)
	if !ok {
		return
	}

	a, err := s.analyzer.Analyze(r.Context(), analyzeuc.Request{
		RecordID: req.recordID(),
		Text:     req.text(),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysisToResponse(&a))
}

// BuildIndex handles POST /api/v1/recommendations/index/build.
func (s *Server) BuildIndex(w http.ResponseWriter, r *http.Request) {
	report, err := s.indexer.Build(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BuildResponse{
		Success: true,
		Message: fmt.Sprintf("vector index built with %d records", report.Indexed),
		Count:   report.Indexed,
	})
}

// IndexStats handles GET /api/v1/recommendations/index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.indexer.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsToResponse(st))
}

// IndexRecord handles PUT /api/v1/recommendations/index/records/{id}.
func (s *Server) IndexRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordIDParam(w, r)
	if !ok {
		return
	}

	indexed, err := s.indexer.IndexRecord(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IndexRecordResponse{Success: true, ID: id, Indexed: indexed})
}

// RemoveRecord handles DELETE /api/v1/recommendations/index/records/{id}.
func (s *Server) RemoveRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordIDParam(w, r)
	if !ok {
		return
	}

	if err := s.indexer.RemoveRecord(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health. Only a fully unhealthy report is a 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeRecommend parses the request body. An empty body is an empty request.
func decodeRecommend(w http.ResponseWriter, r *http.Request) (RecommendRequest, bool) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

func recordIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter id: "+err.Error())
		return 0, false
	}
	if id <= 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidArgument, "id must be positive")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Input errors keep their full text since it names the offending parameter.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrMissingInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexStale,
		domain.ErrVectorDimMismatch,
		domain.ErrNoTaggedRecords,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
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
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
