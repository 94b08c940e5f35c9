// Package assign implements the coordinator's service-assignment policy:
// a pure function that, given a worker's capabilities and a snapshot of
// cluster coverage, decides which services that worker should run.
//
// Grounded directly on spec.md §4.3 — torua's own shard assignment
// (cmd/coordinator/main.go's autoAssignShards) is plain round-robin with
// no capability matching, so this package has no single torua file to
// adapt; it continues torua's sort idiom
// (golang.org/x/exp/slices, as used for slices.IndexFunc in
// cmd/coordinator/main.go) for the deterministic coverage/priority/name
// ordering spec.md requires.
package assign

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/fabric/internal/catalog"
	"github.com/dreamware/fabric/internal/wire"
)

// ResolveWorkerType maps a possibly-"auto" worker type to a concrete one
// using the same heuristic spec.md §4.5 gives the worker agent's DETECT
// phase, so the coordinator can defensively resolve a type even if a
// non-conforming client ever sends "auto" on the wire.
func ResolveWorkerType(c wire.Capabilities) wire.WorkerType {
	if c.WorkerType != wire.WorkerAuto && c.WorkerType.Valid() {
		return c.WorkerType
	}
	switch {
	case c.HasGPU:
		return wire.WorkerGPU
	case c.CPUCores >= 8 && c.RAMGB >= 32:
		return wire.WorkerCPU
	case c.StorageGB >= 1024 && c.CPUCores < 8:
		return wire.WorkerStorage
	default:
		return wire.WorkerCPU
	}
}

// eligibleRequires returns the set of catalog "requires" classes a
// resolved worker type may run, encoding I5's one-directional tolerance:
// a GPU worker may also run CPU services, but never the reverse.
func eligibleRequires(t wire.WorkerType) []catalog.Requires {
	switch t {
	case wire.WorkerGPU:
		return []catalog.Requires{catalog.RequiresGPU, catalog.RequiresCPU}
	case wire.WorkerCPU:
		return []catalog.Requires{catalog.RequiresCPU}
	case wire.WorkerStorage:
		return []catalog.Requires{catalog.RequiresStorage}
	case wire.WorkerEdge:
		return []catalog.Requires{catalog.RequiresEdge}
	default:
		return nil
	}
}

// EligibleServices returns every catalog service a worker of the given
// resolved type may be assigned, per I5.
func EligibleServices(t wire.WorkerType) []catalog.Service {
	var out []catalog.Service
	for _, r := range eligibleRequires(t) {
		out = append(out, catalog.EligibleFor(r)...)
	}
	return out
}

// Decide runs the four-step assignment algorithm of spec.md §4.3 and
// returns the set of service names the registering/renewing worker
// should be assigned.
//
// coverage must contain, for every name in EligibleServices(workerType),
// the count of other non-stale workers already assigned that service
// (the registering worker itself excluded). peerCount is the number of
// other non-stale workers that share the registering worker's resolved
// type (used for the bootstrap/light-multitask/specialize multiplicity
// rule).
func Decide(workerType wire.WorkerType, coverage map[string]int, peerCount int) []string {
	eligible := EligibleServices(workerType)
	if len(eligible) == 0 {
		return nil
	}

	slices.SortFunc(eligible, func(a, b catalog.Service) int {
		ca, cb := coverage[a.Name], coverage[b.Name]
		if ca != cb {
			return ca - cb
		}
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})

	if workerType == wire.WorkerGPU {
		var uncovered []string
		for _, s := range eligible {
			if coverage[s.Name] == 0 {
				uncovered = append(uncovered, s.Name)
			}
		}
		if len(uncovered) > 0 {
			return uncovered
		}
	}

	n := 1
	switch {
	case peerCount == 0:
		n = 3
	case peerCount <= 2:
		n = 2
	}
	if n > len(eligible) {
		n = len(eligible)
	}

	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = eligible[i].Name
	}
	return names
}
