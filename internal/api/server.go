package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/agent"
	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/store"
)

const (
	defaultMaxBodyBytes = 10 << 20
	defaultAttribute    = "gender"
)

// Store is the persistence used by the handlers
type Store interface {
	Ping(ctx context.Context) error

	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	ListCandidates(ctx context.Context, opts store.ListOptions) ([]*models.Candidate, error)
	UpdateCandidate(ctx context.Context, c *models.Candidate) error
	DeleteCandidate(ctx context.Context, id string) error

	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, opts store.ListOptions) ([]*models.Job, error)
	UpdateJob(ctx context.Context, j *models.Job) error
	DeleteJob(ctx context.Context, id string) error

	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplications(ctx context.Context, jobID string) ([]*models.Application, error)
	SetQualified(ctx context.Context, id string, qualified *bool) error
	DeleteApplication(ctx context.Context, id string) error
}

// Server handles HTTP requests
type Server struct {
	store        Store
	agent        *agent.ScreeningAgent
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewServer creates a new API server. maxBodyBytes <= 0 uses 10 MB.
func NewServer(st Store, ag *agent.ScreeningAgent, logger *zap.Logger, maxBodyBytes int64) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{
		store:        st,
		agent:        ag,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("POST /candidates", s.handleCreateCandidate)
	mux.HandleFunc("GET /candidates", s.handleListCandidates)
	mux.HandleFunc("POST /candidates/resume", s.handleResume)
	mux.HandleFunc("GET /candidates/{id}", s.handleGetCandidate)
	mux.HandleFunc("PUT /candidates/{id}", s.handleUpdateCandidate)
	mux.HandleFunc("DELETE /candidates/{id}", s.handleDeleteCandidate)

	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PUT /jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)

	mux.HandleFunc("POST /jobs/{id}/applications", s.handleApply)
	mux.HandleFunc("GET /jobs/{id}/applications", s.handleListApplications)
	mux.HandleFunc("PUT /applications/{id}/qualified", s.handleSetQualified)
	mux.HandleFunc("DELETE /applications/{id}", s.handleDeleteApplication)

	mux.HandleFunc("POST /jobs/{id}/screen", s.handleScreen)
	mux.HandleFunc("GET /jobs/{id}/report", s.handleReport)
	mux.HandleFunc("GET /jobs/{id}/audit", s.handleAudit)
	mux.HandleFunc("GET /jobs/{id}/export", s.handleExport)
	mux.HandleFunc("POST /score", s.handleScore)

	return s.loggingMiddleware(mux)
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "fair-hire",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /candidates":                 "Create a candidate",
			"POST /candidates/resume":          "Parse a plain-text resume into a candidate",
			"POST /jobs":                       "Create a job",
			"POST /jobs/{id}/applications":     "Apply a candidate to a job",
			"POST /jobs/{id}/screen":           "Score, decide and rank every application",
			"GET /jobs/{id}/report":            "Ranked screening results",
			"GET /jobs/{id}/audit?attribute=":  "Fairness audit over screening decisions",
			"GET /jobs/{id}/export":            "Excel report",
			"PUT /applications/{id}/qualified": "Record the ground-truth qualification label",
			"POST /score":                      "Score a resume against a job without storing it",
			"GET /health":                      "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps domain errors onto status codes
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, agent.ErrNotScreened):
		return http.StatusConflict
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrUnknownSeniority),
		errors.Is(err, ingestion.ErrBinaryResume),
		errors.Is(err, ingestion.ErrEmptyResume),
		errors.Is(err, ingestion.ErrUnsupportedFormat),
		errors.Is(err, agent.ErrNameRequired),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// badRequest marks err as a client error
func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// decodeJSON reads a size-limited JSON body into v
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return badRequest(fmt.Errorf("invalid JSON body: %w", err))
	}
	return nil
}

func listOptions(r *http.Request) store.ListOptions {
	return store.ListOptions{
		Limit:  queryParamInt(r, "limit", 0),
		Offset: queryParamInt(r, "offset", 0),
	}
}

func queryParamInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}
