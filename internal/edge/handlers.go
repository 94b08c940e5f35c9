package edge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dreamware/fabric/internal/wire"
)

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, wire.ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"coordinators": len(s.Registry.ListLive()),
		"uptime":       time.Since(s.startTime).Seconds(),
	})
}

// handleRegister implements spec.md §4.7's coordinator register: "same
// semantics as worker register/heartbeat but at the coordinator level."
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req wire.CoordinatorRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TunnelURL == "" {
		respondError(w, http.StatusBadRequest, "tunnel_url is required")
		return
	}

	id, err := s.Registry.Register(req.CoordinatorID, req.TunnelURL, req.Location, req.DHTPort)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"coordinator_id": id,
	})
}

// handleHeartbeat implements spec.md §4.7's coordinator heartbeat: one
// per coordinator per minute, same reply contract as the worker heartbeat.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req wire.CoordinatorHeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ok := s.Registry.Heartbeat(req.CoordinatorID)
	if !ok {
		respondJSON(w, http.StatusOK, wire.HeartbeatResponse{OK: false, Action: wire.ReregisterAction})
		return
	}
	respondJSON(w, http.StatusOK, wire.HeartbeatResponse{OK: true})
}

func (s *Server) handleListCoordinators(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Registry.ListLive())
}

// handleDHTBootstrap implements spec.md §4.7's optional seed endpoint:
// every live coordinator's tunnel URL is a usable DHT seed, since each
// coordinator that runs a DHT client listens on TunnelURL's host at
// DHTPort.
func (s *Server) handleDHTBootstrap(w http.ResponseWriter, r *http.Request) {
	live := s.Registry.ListLive()
	seeds := make([]string, 0, len(live))
	for _, c := range live {
		if c.DHTPort == 0 {
			continue
		}
		seeds = append(seeds, c.TunnelURL)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"seeds": seeds,
		"ttl":   int(s.dhtTTL.Seconds()),
	})
}
