package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/metrics"
	"github.com/kailas-cloud/kongrag/internal/usecase/health"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeProviderError   = "provider_error"
	CodeUnavailable     = "service_unavailable"
	CodeInternalError   = "internal_error"
	CodeValidationError = "validation_failed"
)

// maxQuestionBytes bounds the request body of /v1/retrieve and /v1/ask.
const maxQuestionBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QuestionRequest is the body of POST /v1/retrieve and POST /v1/ask.
type QuestionRequest struct {
	Question string `json:"question"`
}

// RecordResponse is one retrieved chunk.
type RecordResponse struct {
	Index     int     `json:"index"`
	LinesFrom int     `json:"lines_from"`
	LinesTo   int     `json:"lines_to"`
	Content   string  `json:"content"`
	Distance  float64 `json:"distance"`
}

// RetrieveResponse is the body of POST /v1/retrieve.
type RetrieveResponse struct {
	Records []RecordResponse `json:"records"`
	Context string           `json:"context"`
}

// AskResponse is the body of POST /v1/ask.
type AskResponse struct {
	Answer  string           `json:"answer"`
	Context string           `json:"context"`
	Sources []RecordResponse `json:"sources"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server serves the question-answering API.
type Server struct {
	rag           Retriever
	health        HealthChecker
	separator     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(retriever Retriever, healthChecker HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		rag:       retriever,
		health:    healthChecker,
		separator: rag.DefaultSeparator,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrMissingField, http.StatusBadRequest, CodeValidationError),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrRetryableService, http.StatusServiceUnavailable, CodeUnavailable),
		sentinelHandler(domain.ErrFatalService, http.StatusBadGateway, CodeProviderError),
	}
	return s
}

// WithSeparator sets the separator used to join context in responses.
func (s *Server) WithSeparator(sep string) *Server {
	if sep != "" {
		s.separator = sep
	}
	return s
}

// Router mounts the API on a chi router with the standard middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrieve", s.Retrieve)
		r.Post("/ask", s.Ask)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	question, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}

	neighbors, err := s.rag.Retrieve(r.Context(), question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{
		Records: toRecordResponses(neighbors),
		Context: rag.JoinContents(neighbors, s.separator),
	})
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	question, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}

	answer, err := s.rag.Ask(r.Context(), question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:  answer.Text,
		Context: answer.Context,
		Sources: toRecordResponses(answer.Sources),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != health.Healthy {
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

func (s *Server) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QuestionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeValidationError, "question is required")
		return "", false
	}
	return q, true
}

func toRecordResponses(neighbors []domain.Neighbor) []RecordResponse {
	out := make([]RecordResponse, len(neighbors))
	for i, n := range neighbors {
		out[i] = RecordResponse{
			Index:     n.Record.Index,
			LinesFrom: n.Record.LinesFrom,
			LinesTo:   n.Record.LinesTo,
			Content:   n.Record.Content,
			Distance:  n.Distance,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var mf *domain.MissingFieldError
	if errors.As(err, &mf) {
		return mf.Error()
	}
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrRetryableService,
		domain.ErrFatalService,
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
	s.logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
