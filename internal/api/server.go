// Package api exposes the booking system over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clinicbook/internal/dates"
	"clinicbook/internal/models"
	"clinicbook/internal/repository"
	"clinicbook/internal/service"
)

// AvailabilityResolver answers read-side availability queries.
type AvailabilityResolver interface {
	AvailableTimeSlots(ctx context.Context, doctorID string, date dates.Date) ([]string, error)
	AvailableDates(ctx context.Context, doctorID string, start, end dates.Date) ([]dates.Date, error)
}

// BookingService is the write-side surface the API delegates to.
type BookingService interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, id string) (*models.Appointment, error)
	Get(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter repository.ListFilter) ([]models.Appointment, error)
	UpdateAvailability(ctx context.Context, doctorID string, availability *models.Availability) error
}

// RegisterExporter writes the appointment register workbook.
type RegisterExporter interface {
	WriteWorkbook(ctx context.Context, w io.Writer) error
}

// Options configures the HTTP server.
type Options struct {
	Addr            string
	APIKeys         []string
	RateLimitPerSec float64
	RateLimitBurst  int
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	resolver AvailabilityResolver
	booking  BookingService
	exporter RegisterExporter
	apiKeys  map[string]bool
	log      *zerolog.Logger
	srv      *http.Server

	limitPerSec float64
	limitBurst  int
	limitersMu  sync.Mutex
	limiters    map[string]*rate.Limiter
}

// NewHTTPServer creates the API server.
func NewHTTPServer(
	opts Options,
	resolver AvailabilityResolver,
	booking BookingService,
	exporter RegisterExporter,
	logger *zerolog.Logger,
) *HTTPServer {
	keys := make(map[string]bool, len(opts.APIKeys))
	for _, k := range opts.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	s := &HTTPServer{
		resolver:    resolver,
		booking:     booking,
		exporter:    exporter,
		apiKeys:     keys,
		log:         logger,
		limitPerSec: opts.RateLimitPerSec,
		limitBurst:  opts.RateLimitBurst,
		limiters:    make(map[string]*rate.Limiter),
	}

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/doctors/availability", s.protected(s.handleDoctorsAvailability))
	mux.HandleFunc("/api/doctors/", s.protected(s.routeDoctor))
	mux.HandleFunc("/api/appointments", s.protected(s.routeAppointments))
	mux.HandleFunc("/api/appointments/", s.protected(s.routeAppointment))
	mux.HandleFunc("/api/export/appointments", s.protected(s.handleExportAppointments))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleHealth)

	return mux
}

// Start runs the server until the listener fails or Shutdown is
// called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("API server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// protected chains API-key auth and per-key rate limiting in front of
// a handler.
func (s *HTTPServer) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		if key == "" || !s.apiKeys[key] {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if !s.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next(w, r)
	}
}

func (s *HTTPServer) allow(key string) bool {
	if s.limitPerSec <= 0 {
		return true
	}

	s.limitersMu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		burst := s.limitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.limitPerSec), burst)
		s.limiters[key] = limiter
	}
	s.limitersMu.Unlock()

	return limiter.Allow()
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// pathSegments splits the path after prefix into its segments.
func pathSegments(path, prefix string) []string {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
