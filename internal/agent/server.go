package agent

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the agent's own HTTP surface, bound to the tunnel (spec.md
// §4.5): GET /health, GET /stats, GET /metrics, POST /service/{service}.
//
// Grounded on internal/coordinator.Server's chi + zerolog + permissive
// CORS wiring, extended with a prometheus /metrics endpoint per
// SPEC_FULL.md's ambient metrics stack.
type Server struct {
	agent *Agent
	log   zerolog.Logger
}

// NewServer builds an agent Server around a.
func NewServer(a *Agent, log zerolog.Logger) *Server {
	return &Server{agent: a, log: log}
}

// Router assembles the chi mux for the agent's HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(permissiveCORS)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", newMetricsHandler(s.agent))
	r.Post("/service/{service}", s.handleService)
	r.Post("/service/{service}/*", s.handleService)

	return r
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.agent.HealthSnapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	router := s.agent.Router()
	if router == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "agent not yet registered"})
		return
	}
	respondJSON(w, http.StatusOK, router.Stats())
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	router := s.agent.Router()
	if router == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "agent not yet registered"})
		return
	}
	service := chi.URLParam(r, "service")
	subpath := chi.URLParam(r, "*")
	router.Route(w, r, service, subpath)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
