// Package registry is the coordinator's in-process worker registry (C2):
// a TTL-bounded map from worker ID to the worker's last-known state,
// plus the service→workers inverse index computed on demand from it.
//
// Grounded on torua's internal/coordinator/shard_registry.go for
// the RWMutex-guarded-map-with-copy-out shape, generalized from
// consistent-hash shard ownership to capability-based worker bookkeeping.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/fabric/internal/assign"
	"github.com/dreamware/fabric/internal/wire"
)

// ErrIDCollision is returned by Register when the caller's requested
// worker_id already names a live (non-stale) record with different
// tunnel_url/capabilities — i.e. it isn't a retry of the same
// registration (spec.md §4.4: "409 on explicit id collision").
var ErrIDCollision = errors.New("worker id is already registered to a different worker")

// Registry tracks every worker the coordinator knows about.
//
// Concurrency: a single RWMutex protects the map. Mutations (register,
// heartbeat, purge) hold the write lock only across the map update and
// assignment decision — never across network I/O, per spec.md §5.
type Registry struct {
	workers map[string]*wire.WorkerInfo
	seq     map[wire.WorkerType]int
	mu      sync.RWMutex
	ttl     time.Duration
	// noThrashWindow bounds how long an identical re-registration is
	// treated as a touch rather than a fresh assignment decision.
	noThrashWindow time.Duration
}

// New creates a Registry with the given staleness TTL (recommended 5x
// the heartbeat interval per spec.md §4.2) and no-thrash window.
func New(ttl, noThrashWindow time.Duration) *Registry {
	return &Registry{
		workers:        make(map[string]*wire.WorkerInfo),
		seq:            make(map[wire.WorkerType]int),
		ttl:            ttl,
		noThrashWindow: noThrashWindow,
	}
}

func (r *Registry) isStale(w *wire.WorkerInfo, now time.Time) bool {
	return now.Sub(w.LastHeartbeat) > r.ttl
}

// Register implements spec.md §4.2's register operation. It returns the
// authoritative worker ID (which may differ from the one requested) and
// the assigned service set.
func (r *Registry) Register(workerID, tunnelURL, meshIP string, caps wire.Capabilities) (string, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	resolved := assign.ResolveWorkerType(caps)

	if workerID != "" {
		if existing, ok := r.workers[workerID]; ok && !r.isStale(existing, now) {
			if existing.TunnelURL == tunnelURL && reflect.DeepEqual(existing.Capabilities, caps) {
				// Idempotent retry within the no-thrash window: touch,
				// don't reassign.
				if now.Sub(existing.LastHeartbeat) < r.noThrashWindow {
					existing.LastHeartbeat = now
					return workerID, append([]string(nil), existing.AssignedServices...), nil
				}
			} else {
				return "", nil, ErrIDCollision
			}
		}
	}

	id := workerID
	if id == "" || r.idIsLiveOtherThanFreshTouch(id, now) {
		id = r.allocateID(resolved)
	}

	coverage, peerCount := r.assignmentInputs(resolved, id, now)
	assigned := assign.Decide(resolved, coverage, peerCount)

	r.workers[id] = &wire.WorkerInfo{
		WorkerID:         id,
		TunnelURL:        tunnelURL,
		MeshIP:           meshIP,
		Capabilities:     caps,
		AssignedServices: assigned,
		RegisteredAt:     now,
		LastHeartbeat:    now,
	}

	return id, assigned, nil
}

// idIsLiveOtherThanFreshTouch reports whether id names an existing
// record that is stale. Register has already handled the live
// exact-match touch and collision cases above; a stale record's id is
// never reused, so Register allocates a fresh id when this returns true
// (see the "Worker ID rewriting" design note).
func (r *Registry) idIsLiveOtherThanFreshTouch(id string, now time.Time) bool {
	existing, ok := r.workers[id]
	if !ok {
		return false
	}
	return r.isStale(existing, now)
}

func (r *Registry) allocateID(t wire.WorkerType) string {
	r.seq[t]++
	return fmt.Sprintf("%s-%d", tierPrefix(t), r.seq[t])
}

func tierPrefix(t wire.WorkerType) string {
	switch t {
	case wire.WorkerGPU:
		return "gpu"
	case wire.WorkerCPU:
		return "cpu"
	case wire.WorkerStorage:
		return "storage"
	case wire.WorkerEdge:
		return "edge"
	default:
		return "worker"
	}
}

// assignmentInputs computes, under the write lock, the coverage map and
// peer count assign.Decide needs, excluding excludeID (the registering
// worker itself) and any stale record.
func (r *Registry) assignmentInputs(t wire.WorkerType, excludeID string, now time.Time) (map[string]int, int) {
	coverage := map[string]int{}
	for _, s := range assign.EligibleServices(t) {
		coverage[s.Name] = 0
	}

	peerCount := 0
	for id, w := range r.workers {
		if id == excludeID || r.isStale(w, now) {
			continue
		}
		if assign.ResolveWorkerType(w.Capabilities) == t {
			peerCount++
		}
		for _, svc := range w.AssignedServices {
			if _, tracked := coverage[svc]; tracked {
				coverage[svc]++
			}
		}
	}
	return coverage, peerCount
}

// Heartbeat implements spec.md §4.2/§4.4's heartbeat operation.
// AssignedServices is never touched here (spec invariant P4).
func (r *Registry) Heartbeat(workerID string, load *float64, tasksCompleted *int64, status string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	w, ok := r.workers[workerID]
	if !ok || r.isStale(w, now) {
		return false
	}

	w.LastHeartbeat = now
	if load != nil {
		w.Load = *load
	}
	if tasksCompleted != nil {
		w.TasksCompleted = *tasksCompleted
	}
	if status != "" {
		w.Status = status
	}
	return true
}

// Deregister removes a worker record explicitly, per its lifecycle
// ending on an "explicit deregister" (spec.md §3).
func (r *Registry) Deregister(workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, workerID)
}

// ListWorkers returns every non-stale worker, copied out to prevent
// external mutation of registry state.
func (r *Registry) ListWorkers() []wire.WorkerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make([]wire.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		if r.isStale(w, now) {
			continue
		}
		out = append(out, *w)
	}
	return out
}

// FindByService returns every non-stale worker currently assigned name,
// satisfying invariant I2, ordered by worker ID so the reverse proxy's
// per-service round-robin cursor maps to a stable worker.
func (r *Registry) FindByService(name string) []wire.WorkerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var out []wire.WorkerInfo
	for _, w := range r.workers {
		if r.isStale(w, now) {
			continue
		}
		for _, s := range w.AssignedServices {
			if s == name {
				out = append(out, *w)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

// Gap describes a service's current coverage, for the admin gaps view.
type Gap struct {
	Service        string
	Priority       int
	CurrentWorkers int
}

// GetGaps returns, for every catalog service, the count of non-stale
// assigned workers, in the order catalogServices lists them. It does not
// sort; the admin gaps handler orders the result by (current_workers
// asc, priority asc).
func (r *Registry) GetGaps(catalogServices []struct {
	Name     string
	Priority int
}) []Gap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	counts := make(map[string]int, len(catalogServices))
	for _, w := range r.workers {
		if r.isStale(w, now) {
			continue
		}
		for _, s := range w.AssignedServices {
			counts[s]++
		}
	}

	gaps := make([]Gap, 0, len(catalogServices))
	for _, s := range catalogServices {
		gaps = append(gaps, Gap{Service: s.Name, Priority: s.Priority, CurrentWorkers: counts[s.Name]})
	}
	return gaps
}

// Count returns the number of non-stale workers currently tracked, used
// by /health's "workers" field.
func (r *Registry) Count() int {
	return len(r.ListWorkers())
}

// NewWorkerID generates a random, collision-resistant worker id for
// callers that want one outside the normal tier-sequence scheme (e.g.
// tests, or a future admin-triggered force re-register). Not used by
// the hot registration path, which prefers the deterministic
// tier-sequence ids spec.md §4.2 describes.
func NewWorkerID() string {
	return uuid.NewString()
}
