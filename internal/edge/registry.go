package edge

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/fabric/internal/storage"
	"github.com/dreamware/fabric/internal/wire"
)

// keyPrefix namespaces coordinator records in the underlying Store, in
// case a future entity ever shares the same bucket.
const keyPrefix = "coordinator:"

// Registry tracks every coordinator the edge router knows about,
// mirroring internal/registry's worker bookkeeping one level up the
// stack: an in-memory, RWMutex-guarded map is the source of truth for
// staleness and routing decisions, backed by a Store for durability
// across restarts (spec.md §4.7: "Persistent storage here is a
// key-value store with durable writes sized to the number of
// coordinators").
type Registry struct {
	store        storage.Store
	coordinators map[string]*wire.CoordinatorInfo
	mu           sync.RWMutex
	ttl          time.Duration
}

// New creates a Registry backed by store, with the given staleness TTL
// (spec.md §6 default 300s), and loads any coordinators persisted from
// a prior run.
func New(store storage.Store, ttl time.Duration) (*Registry, error) {
	r := &Registry{
		store:        store,
		coordinators: make(map[string]*wire.CoordinatorInfo),
		ttl:          ttl,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	for _, key := range r.store.List() {
		raw, err := r.store.Get(key)
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		var info wire.CoordinatorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		r.coordinators[info.CoordinatorID] = &info
	}
	return nil
}

func (r *Registry) persist(info *wire.CoordinatorInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode coordinator %s: %w", info.CoordinatorID, err)
	}
	return r.store.Put(keyPrefix+info.CoordinatorID, raw)
}

func (r *Registry) isStale(c *wire.CoordinatorInfo, now time.Time) bool {
	return now.Sub(c.LastHeartbeat) > r.ttl
}

// Register implements spec.md §4.7's coordinator register operation,
// mirroring the worker registry's register semantics: an empty id gets
// a fresh uuid, and any non-empty id is used as given; re-registering
// the same id just refreshes tunnel_url/location/dht_port and touches
// last_heartbeat.
func (r *Registry) Register(coordinatorID, tunnelURL, location string, dhtPort int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	id := coordinatorID
	if id == "" {
		id = uuid.NewString()
	}

	existing, ok := r.coordinators[id]
	info := &wire.CoordinatorInfo{
		CoordinatorID: id,
		TunnelURL:     tunnelURL,
		Location:      location,
		DHTPort:       dhtPort,
		LastHeartbeat: now,
	}
	if ok {
		info.RegisteredAt = existing.RegisteredAt
	} else {
		info.RegisteredAt = now
	}

	r.coordinators[id] = info
	if err := r.persist(info); err != nil {
		return "", err
	}
	return id, nil
}

// Heartbeat implements spec.md §4.7's per-coordinator heartbeat,
// touching last_heartbeat and persisting the refresh. Returns false if
// the coordinator id is unknown or its record has already expired.
func (r *Registry) Heartbeat(coordinatorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	c, ok := r.coordinators[coordinatorID]
	if !ok || r.isStale(c, now) {
		return false
	}
	c.LastHeartbeat = now
	_ = r.persist(c) // best-effort; an occasional missed persist just costs one stale reload on restart
	return true
}

// ListLive returns every non-stale coordinator, copied out and ordered
// by coordinator ID so the proxy's round-robin cursor walks a stable list.
func (r *Registry) ListLive() []wire.CoordinatorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make([]wire.CoordinatorInfo, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		if r.isStale(c, now) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoordinatorID < out[j].CoordinatorID })
	return out
}
