package edge

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server holds everything the edge router's HTTP handlers need.
//
// Grounded on internal/coordinator.Server's shape, one level up the
// stack: the coordinator's Registry+metrics+logger bundle becomes this
// package's Registry+cursor+logger bundle.
type Server struct {
	Registry  *Registry
	log       zerolog.Logger
	startTime time.Time
	cursor    uint64
	dhtTTL    time.Duration
}

// NewServer builds an edge router Server around reg.
func NewServer(reg *Registry, log zerolog.Logger) *Server {
	return &Server{
		Registry:  reg,
		log:       log,
		startTime: time.Now(),
		dhtTTL:    300 * time.Second,
	}
}

// Router assembles the chi mux for every endpoint spec.md §6 lists for
// the edge router surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(permissiveCORS)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/coordinator/register", s.handleRegister)
		r.Post("/coordinator/heartbeat", s.handleHeartbeat)
		r.Get("/coordinators", s.handleListCoordinators)
		r.Get("/dht/bootstrap", s.handleDHTBootstrap)
	})

	// Catch-all: anything else is client/worker traffic bound for a
	// live coordinator (spec.md §4.7 "ANY /{rest:path}").
	r.NotFound(s.handleProxy)

	return r
}

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

// nextCoordinator returns a round-robin index into a 0..n-1 live
// coordinator list and advances the shared cursor (spec.md §4.7: "select
// a live coordinator (round-robin or nearest-by-location hint)" — this
// implements the round-robin half; location-hint routing is left to a
// future revision since spec.md marks it a hint, not a requirement).
func (s *Server) nextCoordinator(n int) int {
	if n <= 0 {
		return 0
	}
	i := atomic.AddUint64(&s.cursor, 1) - 1
	return int(i % uint64(n))
}
