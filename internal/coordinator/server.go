// Package coordinator implements the coordinator's HTTP surface (C4):
// worker registration/heartbeat, admin introspection, service discovery,
// and the reverse proxy that relays `/service/{name}/{rest}` requests to
// a worker chosen from the registry.
//
// Grounded on torua's cmd/coordinator/main.go server struct and
// internal/coordinator/shard_registry.go's RWMutex-guarded-map pattern,
// generalized from consistent-hash shard routing to round-robin worker
// selection, and re-platformed onto chi + zerolog + prometheus the way
// Tutu-Engine-tutuengine/internal/api/server.go wires its HTTP surface.
package coordinator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dreamware/fabric/internal/registry"
	"github.com/dreamware/fabric/internal/wire"
)

// Server holds everything the coordinator's HTTP handlers need.
type Server struct {
	Registry          *registry.Registry
	log               zerolog.Logger
	metrics           *metrics
	cursors           *cursorTracker
	coordinatorID     string
	startTime         time.Time
	heartbeatInterval time.Duration
	proxyTimeout      time.Duration
}

// Config bundles Server's construction-time parameters.
type Config struct {
	CoordinatorID     string
	HeartbeatInterval time.Duration
	ProxyTimeout      time.Duration
}

// NewServer builds a coordinator Server around reg.
func NewServer(reg *registry.Registry, cfg Config, log zerolog.Logger) *Server {
	return &Server{
		Registry:          reg,
		log:               log,
		metrics:           newMetrics(),
		cursors:           newCursorTracker(),
		coordinatorID:     cfg.CoordinatorID,
		startTime:         time.Now(),
		heartbeatInterval: cfg.HeartbeatInterval,
		proxyTimeout:      cfg.ProxyTimeout,
	}
}

// Router assembles the chi mux for every endpoint spec.md §6 lists for
// the coordinator surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(permissiveCORS)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/worker/register", s.handleRegister)
		r.Post("/worker/heartbeat", s.handleHeartbeat)
		r.Get("/admin/workers", s.handleAdminWorkers)
		r.Get("/admin/services", s.handleAdminServices)
		r.Get("/admin/gaps", s.handleAdminGaps)
		r.Get("/services/list", s.handleServicesList)
		r.Get("/services/discover/{service}", s.handleServiceDiscover)
	})

	r.HandleFunc("/service/{service}", s.handleProxy)
	r.HandleFunc("/service/{service}/*", s.handleProxy)

	return r
}

// requestLogger logs each request at debug level via zerolog instead of
// chi's stdlib-log middleware.Logger, matching the rest of the fabric's
// logging stack.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string, available []string) {
	respondJSON(w, status, wire.ErrorResponse{Error: msg, AvailableServices: available})
}
