package coordinator

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dreamware/fabric/internal/catalog"
	"github.com/dreamware/fabric/internal/registry"
	"github.com/dreamware/fabric/internal/wire"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"workers":             s.Registry.Count(),
		"services_registered": len(catalog.Catalog),
		"uptime":              time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}
	if req.TunnelURL == "" {
		respondError(w, http.StatusBadRequest, "tunnel_url is required", nil)
		return
	}
	if req.Capabilities.WorkerType != "" && !req.Capabilities.WorkerType.Valid() {
		respondError(w, http.StatusBadRequest, "unrecognized worker_type", nil)
		return
	}

	id, assigned, err := s.Registry.Register(req.WorkerID, req.TunnelURL, req.MeshIP, req.Capabilities)
	if err != nil {
		if errors.Is(err, registry.ErrIDCollision) {
			respondError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	s.metrics.registrations.Inc()
	s.metrics.workersTracked.Set(float64(s.Registry.Count()))

	respondJSON(w, http.StatusOK, wire.RegisterResponse{
		WorkerID:          id,
		CoordinatorID:     s.coordinatorID,
		AssignedServices:  assigned,
		HeartbeatInterval: int(s.heartbeatInterval.Seconds()),
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req wire.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}

	ok := s.Registry.Heartbeat(req.WorkerID, req.Load, req.TasksCompleted, req.Status)
	if !ok {
		respondJSON(w, http.StatusOK, wire.HeartbeatResponse{OK: false, Action: wire.ReregisterAction})
		return
	}
	respondJSON(w, http.StatusOK, wire.HeartbeatResponse{OK: true})
}

func (s *Server) handleAdminWorkers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Registry.ListWorkers())
}

type serviceStatus struct {
	Requires       catalog.Requires `json:"requires"`
	Tier           catalog.Tier     `json:"tier"`
	Priority       int              `json:"priority"`
	HealthyWorkers int              `json:"healthy_workers"`
}

func (s *Server) handleAdminServices(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]serviceStatus, len(catalog.Catalog))
	for _, svc := range catalog.Catalog {
		out[svc.Name] = serviceStatus{
			Requires:       svc.Requires,
			Tier:           svc.Tier,
			Priority:       svc.Priority,
			HealthyWorkers: len(s.Registry.FindByService(svc.Name)),
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type gapEntry struct {
	Service        string `json:"service"`
	Status         string `json:"status"`
	Priority       int    `json:"priority"`
	CurrentWorkers int    `json:"current_workers"`
}

func (s *Server) handleAdminGaps(w http.ResponseWriter, r *http.Request) {
	services := make([]struct {
		Name     string
		Priority int
	}, len(catalog.Catalog))
	for i, svc := range catalog.Catalog {
		services[i] = struct {
			Name     string
			Priority int
		}{svc.Name, svc.Priority}
	}

	gaps := s.Registry.GetGaps(services)
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].CurrentWorkers != gaps[j].CurrentWorkers {
			return gaps[i].CurrentWorkers < gaps[j].CurrentWorkers
		}
		return gaps[i].Priority < gaps[j].Priority
	})

	out := make([]gapEntry, len(gaps))
	for i, g := range gaps {
		out[i] = gapEntry{
			Service:        g.Service,
			Priority:       g.Priority,
			CurrentWorkers: g.CurrentWorkers,
			Status:         gapStatus(g),
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func gapStatus(g registry.Gap) string {
	switch {
	case g.CurrentWorkers == 0:
		return "critical"
	case g.CurrentWorkers == 1 && g.Priority == 1:
		return "warning"
	default:
		return "ok"
	}
}

func (s *Server) availableServices() []string {
	var names []string
	for _, svc := range catalog.Catalog {
		if len(s.Registry.FindByService(svc.Name)) > 0 {
			names = append(names, svc.Name)
		}
	}
	return names
}

func (s *Server) handleServicesList(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.availableServices())
}

func (s *Server) handleServiceDiscover(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if _, ok := catalog.Lookup(service); !ok {
		respondError(w, http.StatusNotFound, "unknown service "+service, nil)
		return
	}

	workers := s.Registry.FindByService(service)
	if len(workers) == 0 {
		respondError(w, http.StatusServiceUnavailable, "no healthy worker for "+service, s.availableServices())
		return
	}

	recommended := workers[0]
	for _, wk := range workers[1:] {
		if wk.Load < recommended.Load {
			recommended = wk
		}
	}

	respondJSON(w, http.StatusOK, wire.DiscoverResponse{
		Service:     service,
		Recommended: recommended.WorkerID,
		Workers:     workers,
	})
}
