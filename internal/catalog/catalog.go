// Package catalog holds the static, read-only service descriptor table
// for the compute fabric: every service name a worker can be assigned,
// its tier, required capability class, priority, and listen port.
//
// Grounded on Tutu-Engine-tutuengine/internal/infra/catalog/catalog.go's
// shape (one package-level slice, looked up by name) — the model-phonebook
// idea generalized from downloadable LLM weights to runnable services.
// Mandatory entries cover the domain classes spec.md §4.1 calls out:
// gpu-resident inference/vision/embeddings, cpu-bound extraction, storage
// backends, and an edge coordination role.
package catalog

import "time"

// Tier is the coarse service class (spec.md glossary: "1 GPU, 2 CPU, 3
// Storage, 4 Edge").
type Tier int

const (
	TierGPU Tier = iota + 1
	TierCPU
	TierStorage
	TierEdge
)

// Requires is the capability class a service needs from its host worker.
type Requires string

const (
	RequiresGPU     Requires = "gpu"
	RequiresCPU     Requires = "cpu"
	RequiresStorage Requires = "storage"
	RequiresEdge    Requires = "edge"
)

// Service is one immutable entry in the catalog.
type Service struct {
	// Name uniquely identifies the service, e.g. "llm-inference".
	Name string
	// Tier is the coarse class this service belongs to.
	Tier Tier
	// Requires is the capability class a worker must have to run it.
	Requires Requires
	// Priority ranks criticality; 1 is most critical (spec.md I6).
	Priority int
	// Port is the internal TCP port the service container listens on.
	Port int
	// ForwardTimeout is the per-service deadline used by the finger-cache
	// router and the coordinator's reverse proxy (spec.md §9: "LLM
	// inference 300s, embeddings 60s, other 30s").
	ForwardTimeout time.Duration
}

// Catalog is the fixed, baked-in service table. Any change requires a
// process restart (spec.md §4.1).
var Catalog = []Service{
	{Name: "llm-inference", Tier: TierGPU, Requires: RequiresGPU, Priority: 1, Port: 9001, ForwardTimeout: 300 * time.Second},
	{Name: "vision-ocr", Tier: TierGPU, Requires: RequiresGPU, Priority: 1, Port: 9002, ForwardTimeout: 300 * time.Second},
	{Name: "rag-embeddings", Tier: TierGPU, Requires: RequiresGPU, Priority: 2, Port: 9003, ForwardTimeout: 60 * time.Second},
	{Name: "ner-extraction", Tier: TierCPU, Requires: RequiresCPU, Priority: 2, Port: 9101, ForwardTimeout: 30 * time.Second},
	{Name: "doc-processing", Tier: TierCPU, Requires: RequiresCPU, Priority: 3, Port: 9102, ForwardTimeout: 30 * time.Second},
	{Name: "notes-coa", Tier: TierCPU, Requires: RequiresCPU, Priority: 1, Port: 9103, ForwardTimeout: 30 * time.Second},
	{Name: "vector-store", Tier: TierStorage, Requires: RequiresStorage, Priority: 1, Port: 9201, ForwardTimeout: 30 * time.Second},
	{Name: "graph-db", Tier: TierStorage, Requires: RequiresStorage, Priority: 2, Port: 9202, ForwardTimeout: 30 * time.Second},
	{Name: "edge-gateway", Tier: TierEdge, Requires: RequiresEdge, Priority: 1, Port: 9301, ForwardTimeout: 30 * time.Second},
}

var byName = func() map[string]Service {
	m := make(map[string]Service, len(Catalog))
	for _, s := range Catalog {
		m[s.Name] = s
	}
	return m
}()

// Lookup returns the catalog entry for name and whether it exists.
func Lookup(name string) (Service, bool) {
	s, ok := byName[name]
	return s, ok
}

// Names returns every service name in the catalog, in table order.
func Names() []string {
	names := make([]string, len(Catalog))
	for i, s := range Catalog {
		names[i] = s.Name
	}
	return names
}

// EligibleFor returns every catalog entry a worker with the given
// requires-class may run directly (without the GPU→CPU tolerance rule,
// which callers apply themselves — see internal/assign).
func EligibleFor(r Requires) []Service {
	var out []Service
	for _, s := range Catalog {
		if s.Requires == r {
			out = append(out, s)
		}
	}
	return out
}
