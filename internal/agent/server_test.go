package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/fabric/internal/fingercache"
)

func TestHandleHealth_BeforeRegistration(t *testing.T) {
	a := &Agent{workerID: ""}
	s := NewServer(a, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestHandleStats_UnavailableBeforeRegistration(t *testing.T) {
	a := &Agent{}
	s := NewServer(a, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleStats_AfterRegistration(t *testing.T) {
	a := &Agent{router: fingercache.New(nil, fingercache.Config{CoordinatorURL: "http://coordinator.invalid"})}
	s := NewServer(a, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleMetrics_ExposesFingerCacheCounters(t *testing.T) {
	a := &Agent{router: fingercache.New(nil, fingercache.Config{CoordinatorURL: "http://coordinator.invalid"})}
	s := NewServer(a, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fabric_worker_cache_hits_total")
}
