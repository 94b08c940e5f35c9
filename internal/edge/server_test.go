package edge

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

	"github.com/dreamware/fabric/internal/storage"
	"github.com/dreamware/fabric/internal/wire"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := New(storage.NewMemoryStore(), time.Second)
	require.NoError(t, err)
	return NewServer(reg, zerolog.Nop())
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
	s := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["coordinators"])
}

func TestHandleRegister_RejectsMissingTunnelURL(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/coordinator/register", wire.CoordinatorRegisterRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRegister_AssignsIDWhenEmpty(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/coordinator/register", wire.CoordinatorRegisterRequest{
		TunnelURL: "https://coord-a",
		Location:  "us-east",
		DHTPort:   4001,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body["coordinator_id"])
}

func TestHandleHeartbeat_UnknownReturnsReregister(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/coordinator/heartbeat", wire.CoordinatorHeartbeatRequest{
		CoordinatorID: "does-not-exist",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp wire.HeartbeatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, wire.ReregisterAction, resp.Action)
}

func TestHandleListCoordinators(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Registry.Register("", "https://a", "", 0)
	require.NoError(t, err)

	rr := doJSON(t, s.Router(), http.MethodGet, "/api/coordinators", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var live []wire.CoordinatorInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &live))
	assert.Len(t, live, 1)
}

func TestHandleDHTBootstrap_OmitsCoordinatorsWithoutDHTPort(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Registry.Register("", "https://a", "", 0)
	require.NoError(t, err)
	_, err = s.Registry.Register("", "https://b", "", 4001)
	require.NoError(t, err)

	rr := doJSON(t, s.Router(), http.MethodGet, "/api/dht/bootstrap", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Seeds []string `json:"seeds"`
		TTL   int      `json:"ttl"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{"https://b"}, body.Seeds)
	assert.Equal(t, 300, body.TTL)
}

func TestHandleProxy_ReturnsUpstreamResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/service/llm-inference/generate", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok from coordinator"))
	}))
	defer upstream.Close()

	s := newTestServer(t)
	_, err := s.Registry.Register("", upstream.URL, "", 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/service/llm-inference/generate", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok from coordinator", rr.Body.String())
}

func TestHandleProxy_FailsOverToSecondCoordinator(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("served by good coordinator"))
	}))
	defer good.Close()

	s := newTestServer(t)
	_, err := s.Registry.Register("coord-bad", bad.URL, "", 0)
	require.NoError(t, err)
	_, err = s.Registry.Register("coord-good", good.URL, "", 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/anything", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "served by good coordinator", rr.Body.String())
}

func TestHandleProxy_FailsOverToSecondCoordinatorWithRequestBody(t *testing.T) {
	var badSawBody, goodSawBody []byte
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badSawBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodSawBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("served by good coordinator"))
	}))
	defer good.Close()

	s := newTestServer(t)
	_, err := s.Registry.Register("coord-bad", bad.URL, "", 0)
	require.NoError(t, err)
	_, err = s.Registry.Register("coord-good", good.URL, "", 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/anything", strings.NewReader(`{"q":"hi"}`))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "served by good coordinator", rr.Body.String())
	assert.Equal(t, `{"q":"hi"}`, string(badSawBody))
	assert.Equal(t, `{"q":"hi"}`, string(goodSawBody))
}

func TestHandleProxy_503WhenNoLiveCoordinator(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/anything", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
