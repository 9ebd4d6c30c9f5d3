// Package api exposes the HTTP interface for the price intelligence service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rategrid/compintel/internal/config"
	"github.com/rategrid/compintel/internal/dispatcher"
	"github.com/rategrid/compintel/internal/metrics"
	"github.com/rategrid/compintel/internal/pricing"
)

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobStore   pricing.JobStore
	dispatcher *dispatcher.Dispatcher
	idGen      pricing.IDGenerator
	clock      pricing.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore pricing.JobStore,
	dispatcher *dispatcher.Dispatcher,
	idGen pricing.IDGenerator,
	clock pricing.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		jobStore:   jobStore,
		dispatcher: dispatcher,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/scrapes", func(r chi.Router) {
			r.Post("/", s.submitScrape)
			r.Route("/{scrape_id}", func(r chi.Router) {
				r.Get("/", s.getScrape)
				r.Get("/result", s.getScrapeResult)
				r.Post("/cancel", s.cancelScrape)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; downstream checks attach here.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params, err := s.toSearchParams(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, err := s.enqueueJob(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"scrape_id": jobID})
}

func (s *Server) getScrape(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "scrape_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "scrape not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"scrape": job})
}

func (s *Server) getScrapeResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "scrape_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "scrape not found")
		return
	}
	if job.Status != pricing.JobStatusSucceeded {
		s.writeJSON(w, http.StatusOK, map[string]any{"scrape": job})
		return
	}
	rec, err := s.jobStore.GetSummary(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch scrape summary")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"scrape": job, "summary": rec})
}

func (s *Server) cancelScrape(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "scrape_id")
	if err := s.jobStore.UpdateJobStatus(
		r.Context(),
		jobID,
		pricing.JobStatusCanceled,
		"canceled via API",
	); err != nil {
		s.writeError(w, http.StatusNotFound, "scrape not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"scrape_id": jobID,
		"status":    string(pricing.JobStatusCanceled),
	})
}

func (s *Server) enqueueJob(ctx context.Context, params pricing.SearchParams) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate scrape id: %w", err)
	}
	now := s.clock.Now()
	job := pricing.Job{
		ID:        jobID,
		Status:    pricing.JobStatusQueued,
		Submitted: now,
		Params:    params,
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create scrape job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := pricing.QueueItem{
		JobID:     jobID,
		Params:    params,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		// The job record exists already; leaving it queued would strand it.
		if uerr := s.jobStore.UpdateJobStatus(ctx, jobID, pricing.JobStatusFailed, fmt.Sprintf("enqueue: %v", err)); uerr != nil {
			s.logger.Warn("mark job failed after enqueue error",
				zap.String("job_id", jobID),
				zap.Error(uerr),
			)
		}
		return "", fmt.Errorf("enqueue scrape job: %w", err)
	}
	return jobID, nil
}

func (s *Server) toSearchParams(req scrapeRequest) (pricing.SearchParams, error) {
	params := pricing.SearchParams{
		Platform:  pricing.Platform(req.Platform),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Guests:    req.Guests,
		RoomType:  req.RoomType,
		RadiusKM:  req.RadiusKM,
	}
	if !pricing.SupportedPlatform(params.Platform) {
		return pricing.SearchParams{}, fmt.Errorf("unsupported platform %q", req.Platform)
	}
	if params.Latitude < -90 || params.Latitude > 90 {
		return pricing.SearchParams{}, errors.New("latitude must be within [-90, 90]")
	}
	if params.Longitude < -180 || params.Longitude > 180 {
		return pricing.SearchParams{}, errors.New("longitude must be within [-180, 180]")
	}
	checkIn, err := time.Parse("2006-01-02", params.CheckIn)
	if err != nil {
		return pricing.SearchParams{}, errors.New("check_in must be a YYYY-MM-DD date")
	}
	checkOut, err := time.Parse("2006-01-02", params.CheckOut)
	if err != nil {
		return pricing.SearchParams{}, errors.New("check_out must be a YYYY-MM-DD date")
	}
	if !checkOut.After(checkIn) {
		return pricing.SearchParams{}, errors.New("check_out must be after check_in")
	}
	if params.Guests <= 0 {
		params.Guests = 2
	}
	return params, nil
}

type scrapeRequest struct {
	Platform  string  `json:"platform"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CheckIn   string  `json:"check_in"`
	CheckOut  string  `json:"check_out"`
	Guests    int     `json:"guests"`
	RoomType  string  `json:"room_type"`
	RadiusKM  float64 `json:"radius_km"`
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
