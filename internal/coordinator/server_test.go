package coordinator

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/fabric/internal/registry"
	"github.com/dreamware/fabric/internal/wire"
)

func newTestServer() *Server {
	reg := registry.New(5*time.Second, time.Second)
	return NewServer(reg, Config{
		CoordinatorID:     "coord-test",
		HeartbeatInterval: 30 * time.Second,
		ProxyTimeout:      5 * time.Second,
	}, zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["workers"])
}

func TestHandleRegister_RejectsMissingTunnelURL(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/worker/register", wire.RegisterRequest{
		Capabilities: wire.Capabilities{HasGPU: true},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRegister_AssignsServicesAndReturnsAuthoritativeID(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/worker/register", wire.RegisterRequest{
		TunnelURL:    "https://tunnel-1.example",
		Capabilities: wire.Capabilities{HasGPU: true},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp wire.RegisterResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "gpu-1", resp.WorkerID)
	assert.Equal(t, "coord-test", resp.CoordinatorID)
	assert.NotEmpty(t, resp.AssignedServices)
	assert.Equal(t, 30, resp.HeartbeatInterval)
}

func TestHandleRegister_CollisionReturns409(t *testing.T) {
	s := newTestServer()
	_, _, err := s.Registry.Register("gpu-custom", "https://a", "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)

	rr := doJSON(t, s.Router(), http.MethodPost, "/api/worker/register", wire.RegisterRequest{
		WorkerID:     "gpu-custom",
		TunnelURL:    "https://b",
		Capabilities: wire.Capabilities{HasGPU: true},
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleHeartbeat_UnknownWorkerRequestsReregister(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/worker/heartbeat", wire.HeartbeatRequest{
		WorkerID: "does-not-exist",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp wire.HeartbeatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, wire.ReregisterAction, resp.Action)
}

func TestHandleAdminGaps_CriticalWhenUncovered(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/admin/gaps", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var gaps []gapEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &gaps))
	require.NotEmpty(t, gaps)
	for _, g := range gaps {
		assert.Equal(t, "critical", g.Status)
		assert.Equal(t, 0, g.CurrentWorkers)
	}
}

func TestHandleServiceDiscover_503WhenNoWorker(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/services/discover/llm-inference", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleServiceDiscover_RecommendsLowestLoad(t *testing.T) {
	s := newTestServer()
	idA, _, err := s.Registry.Register("", "https://a", "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)
	idB, _, err := s.Registry.Register("", "https://b", "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)

	loadA, loadB := 0.9, 0.1
	require.True(t, s.Registry.Heartbeat(idA, &loadA, nil, ""))
	require.True(t, s.Registry.Heartbeat(idB, &loadB, nil, ""))

	rr := doJSON(t, s.Router(), http.MethodGet, "/api/services/discover/llm-inference", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, idB, body["recommended"])
}

func TestHandleProxy_ReturnsUpstreamResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok from upstream"))
	}))
	defer upstream.Close()

	s := newTestServer()
	_, _, err := s.Registry.Register("", upstream.URL, "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/service/llm-inference/generate", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok from upstream", rr.Body.String())
}

func TestHandleProxy_FailsOverToSecondWorker(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("served by good"))
	}))
	defer good.Close()

	s := newTestServer()
	_, _, err := s.Registry.Register("worker-bad", bad.URL, "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)
	_, _, err = s.Registry.Register("worker-good", good.URL, "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/service/llm-inference/generate", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "served by good", rr.Body.String())
}

func TestHandleProxy_FailsOverToSecondWorkerWithRequestBody(t *testing.T) {
	var badSawBody, goodSawBody []byte
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badSawBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodSawBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("served by good"))
	}))
	defer good.Close()

	s := newTestServer()
	_, _, err := s.Registry.Register("worker-bad", bad.URL, "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)
	_, _, err = s.Registry.Register("worker-good", good.URL, "", wire.Capabilities{HasGPU: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/service/llm-inference/generate", strings.NewReader(`{"prompt":"hi"}`))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "served by good", rr.Body.String())
	// Both candidates must see the full body; a naive req.Clone would
	// drain it on the first (failing) attempt and starve the second.
	assert.Equal(t, `{"prompt":"hi"}`, string(badSawBody))
	assert.Equal(t, `{"prompt":"hi"}`, string(goodSawBody))
}

func TestHandleProxy_503WhenServiceHasNoWorkers(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/service/llm-inference/generate", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
