package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-garden/internal/engine"
	"smart-garden/internal/models"
	"smart-garden/internal/observability"
	"smart-garden/internal/services"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Readiness reports whether both models are loaded and which zones exist.
// Implemented by engine.Zones.
type Readiness interface {
	Ready() bool
	ModelNames() (classifier, regressor string)
	IDs() []string
	Allows(zone string) bool
}

// Options configures the HTTP surface
type Options struct {
	// DiagnosticFields includes raw_prediction and data_received in responses
	DiagnosticFields bool

	// Gatherer serves /metrics when set
	Gatherer prometheus.Gatherer

	// Errors counts rejected requests. Optional.
	Errors services.ErrorCounter
}

// Server exposes the decision engine over HTTP
type Server struct {
	decisions *services.DecisionService
	readiness Readiness
	opts      Options
	mux       *http.ServeMux
}

// NewServer registers the routes
func NewServer(decisions *services.DecisionService, readiness Readiness, opts Options) *Server {
	s := &Server{
		decisions: decisions,
		readiness: readiness,
		opts:      opts,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /predict", s.handlePredict)
	s.mux.HandleFunc("POST /zones/{zone}/predict", s.handlePredict)
	s.mux.HandleFunc("GET /zones/{zone}/decisions", s.handleHistory)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// NewHTTPServer wraps the handler with the gateway's timeouts
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	zone := r.PathValue("zone")
	if zone == "" {
		zone = engine.DefaultZone
	}
	if !s.readiness.Allows(zone) {
		s.unknownZone(w, zone)
		return
	}

	var payload models.SensorPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		s.reject(w, "invalid JSON body: "+err.Error())
		return
	}
	reading, err := payload.Reading()
	if err != nil {
		s.reject(w, err.Error())
		return
	}

	decision, err := s.decisions.Decide(r.Context(), zone, services.SourceHTTP, reading)
	if err != nil {
		status := statusFor(err)
		log.Printf("API: Decision failed for zone %s: %v", zone, err)
		writeError(w, status, err.Error())
		return
	}

	if !s.opts.DiagnosticFields {
		decision = decision.WithoutDiagnostics()
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.reject(w, "limit must be an integer between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	zone := r.PathValue("zone")
	if !s.readiness.Allows(zone) {
		s.unknownZone(w, zone)
		return
	}

	records, err := s.decisions.History(r.Context(), zone, limit)
	if err != nil {
		log.Printf("API: %v", err)
		writeError(w, http.StatusInternalServerError, "decision history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type healthResponse struct {
	Status     string   `json:"status"`
	Classifier string   `json:"classifier,omitempty"`
	Regressor  string   `json:"regressor,omitempty"`
	Zones      []string `json:"zones"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	classifier, regressor := s.readiness.ModelNames()
	resp := healthResponse{
		Status:     "ok",
		Classifier: classifier,
		Regressor:  regressor,
		Zones:      s.readiness.IDs(),
	}

	status := http.StatusOK
	if !s.readiness.Ready() {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) reject(w http.ResponseWriter, msg string) {
	if s.opts.Errors != nil {
		s.opts.Errors.IncError(observability.ErrorInvalidInput)
	}
	writeError(w, http.StatusBadRequest, msg)
}

func (s *Server) unknownZone(w http.ResponseWriter, zone string) {
	if s.opts.Errors != nil {
		s.opts.Errors.IncError(observability.ErrorUnknownZone)
	}
	writeError(w, http.StatusNotFound, "unknown zone: "+zone)
}

// statusFor maps a Decide error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidReading):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownZone):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes before writing the header so an encoding failure is a 500
// rather than an empty success
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
