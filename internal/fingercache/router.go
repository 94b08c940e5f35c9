package fingercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"time"

	"github.com/dreamware/fabric/internal/catalog"
	"github.com/dreamware/fabric/internal/wire"
)

// Router implements the worker agent's peer-forwarding algorithm
// (spec.md §4.6): local short-circuit, TTL cache, optional DHT, mandatory
// HTTP fallback to the coordinator's service-discovery endpoint, then a
// deadline-bound forward to the chosen peer.
//
// No teacher file models this chain directly; its concurrency shape
// (small guarded map, atomic counters) follows internal/shard's
// ShardStats/OperationStats pattern. The coordinator discovery call goes
// through internal/wire.Client; the forward to the chosen peer uses a
// plain http.Client.
type Router struct {
	cache          *peerCache
	stats          Stats
	client         *wire.Client
	dht            DHTClient
	httpClient     *http.Client
	coordinatorURL string
	assigned       map[string]bool
}

// Config bundles Router's construction-time parameters.
type Config struct {
	CoordinatorURL string
	Client         *wire.Client
	DHT            DHTClient
}

// New builds a Router. assigned is the set of services this worker runs
// locally; it can be refreshed with SetAssigned as the coordinator
// reassigns services on re-registration.
func New(assigned []string, cfg Config) *Router {
	dht := cfg.DHT
	if dht == nil {
		dht = nilDHT{}
	}
	r := &Router{
		cache:          newPeerCache(),
		client:         cfg.Client,
		dht:            dht,
		httpClient:     &http.Client{},
		coordinatorURL: cfg.CoordinatorURL,
	}
	r.SetAssigned(assigned)
	return r
}

// SetAssigned replaces the local short-circuit set.
func (rt *Router) SetAssigned(assigned []string) {
	m := make(map[string]bool, len(assigned))
	for _, name := range assigned {
		m[name] = true
	}
	rt.assigned = m
}

// Stats returns a point-in-time snapshot of the router's counters, for
// the agent's GET /stats handler.
func (rt *Router) Stats() Snapshot {
	return rt.stats.snapshot(rt.cache.size())
}

// Route implements the full algorithm for one inbound
// POST /service/{service}[/rest] call.
func (rt *Router) Route(w http.ResponseWriter, r *http.Request, service, subpath string) {
	svc, ok := catalog.Lookup(service)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown service "+service)
		return
	}

	if rt.assigned[service] {
		rt.stats.incLocal()
		rt.forwardLocal(w, r, svc, subpath)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}
	ctx := r.Context()

	if peer, ok := rt.cache.get(service, time.Now()); ok {
		rt.stats.incCacheHit()
		if rt.attemptForward(w, r, body, peer, svc, subpath) {
			return
		}
		rt.cache.invalidate(service)
	} else {
		rt.stats.incCacheMiss()
	}

	if rt.dht.Connected() {
		rt.stats.incDHT()
		workers, err := rt.dht.Lookup(ctx, service)
		if err == nil && len(workers) > 0 {
			peer := SelectPeer(workers)
			rt.cache.set(service, peer, time.Now())
			if rt.attemptForward(w, r, body, peer, svc, subpath) {
				return
			}
			rt.cache.invalidate(service)
		}
	}

	rt.stats.incHTTP()
	var disc wire.DiscoverResponse
	discoverURL := fmt.Sprintf("%s/api/services/discover/%s", rt.coordinatorURL, service)
	if err := rt.client.GetJSON(ctx, discoverURL, &disc); err != nil {
		var statusErr *wire.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusServiceUnavailable {
			rt.stats.incFailed()
			respondError(w, http.StatusServiceUnavailable, "no healthy worker for "+service)
			return
		}
		rt.stats.incFailed()
		respondError(w, http.StatusBadGateway, "service discovery failed: "+err.Error())
		return
	}
	if len(disc.Workers) == 0 {
		rt.stats.incFailed()
		respondError(w, http.StatusServiceUnavailable, "no healthy worker for "+service)
		return
	}

	peer := SelectPeer(disc.Workers)
	rt.cache.set(service, peer, time.Now())
	if rt.attemptForward(w, r, body, peer, svc, subpath) {
		return
	}
	rt.stats.incFailed()
	respondError(w, http.StatusBadGateway, "forward to "+peer.WorkerID+" failed")
}

// forwardLocal hands a request straight to the service container running
// on this machine's cataloged port; streamed via httputil-free manual
// copy since there is exactly one candidate and no fallback chain.
func (rt *Router) forwardLocal(w http.ResponseWriter, r *http.Request, svc catalog.Service, subpath string) {
	target := fmt.Sprintf("http://127.0.0.1:%d/%s", svc.Port, subpath)
	ctx, cancel := context.WithTimeout(r.Context(), svc.ForwardTimeout)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	if !forwardOnce(ctx, rt.httpClient, w, r, target, body) {
		rt.stats.incFailed()
		respondError(w, http.StatusBadGateway, "local service "+svc.Name+" unreachable")
	}
}

// attemptForward forwards body to peer, writing peer's response to w on
// success. It returns false (and writes nothing) on connection failure
// or a 5xx, so the caller can fall through to the next discovery layer.
func (rt *Router) attemptForward(w http.ResponseWriter, r *http.Request, body []byte, peer wire.WorkerInfo, svc catalog.Service, subpath string) bool {
	base := peer.TunnelURL
	if peer.MeshIP != "" {
		base = fmt.Sprintf("http://%s:%d", peer.MeshIP, svc.Port)
	}
	target := base + "/" + subpath

	ctx, cancel := context.WithTimeout(r.Context(), svc.ForwardTimeout)
	defer cancel()

	ok := forwardOnce(ctx, rt.httpClient, w, r, target, body)
	if ok {
		rt.stats.incForwarded()
	}
	return ok
}

// forwardOnce performs a single non-retried HTTP round trip to target,
// copying method/headers/body from r and streaming the peer's response
// straight to w on success. It writes nothing to w on failure, leaving
// the caller free to try the next candidate.
func forwardOnce(ctx context.Context, client *http.Client, w http.ResponseWriter, r *http.Request, target string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header = r.Header.Clone()
	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return false
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	return true
}

// hopByHopHeaders are stripped before forwarding, per RFC 7230 §6.1 and
// spec.md §4.6's "preserve ... headers (minus hop-by-hop)".
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// SelectPeer implements spec.md §4.6's peer-selection rule: prefer
// workers with a mesh IP, sort by ascending load, and break ties at
// random among the lowest-loaded top 3 to spread load across replicas.
func SelectPeer(workers []wire.WorkerInfo) wire.WorkerInfo {
	candidates := make([]wire.WorkerInfo, 0, len(workers))
	for _, wk := range workers {
		if wk.Status == wire.StatusDead {
			continue
		}
		candidates = append(candidates, wk)
	}
	if len(candidates) == 0 {
		candidates = workers
	}

	meshed := make([]wire.WorkerInfo, 0, len(candidates))
	for _, wk := range candidates {
		if wk.MeshIP != "" {
			meshed = append(meshed, wk)
		}
	}
	if len(meshed) > 0 {
		candidates = meshed
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Load < candidates[j].Load
	})

	top := candidates[:1]
	for len(top) < len(candidates) && len(top) < 3 && candidates[len(top)].Load == candidates[0].Load {
		top = candidates[:len(top)+1]
	}
	return top[rand.Intn(len(top))]
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":%q}`, msg)))
}
