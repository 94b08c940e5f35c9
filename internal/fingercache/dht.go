package fingercache

import (
	"context"

	"github.com/dreamware/fabric/internal/wire"
)

// DHTClient is the optional peer-discovery step ahead of the mandatory
// HTTP fallback (spec.md §4.6 step 3: "if a DHT client is running and
// connected"). No DHT library appears anywhere in the example pack, so
// there is no concrete production implementation here — only the
// interface and a no-op default, exactly as DESIGN.md's Open Question
// decision on DHT implementation resolves it: build the seam, not a library.
type DHTClient interface {
	// Connected reports whether the client currently has a usable DHT
	// session. Route skips straight to the HTTP fallback when false.
	Connected() bool
	// Lookup queries the DHT for service's current worker set.
	Lookup(ctx context.Context, service string) ([]wire.WorkerInfo, error)
}

// nilDHT is the zero-value DHTClient: always disconnected, so every
// Router built without an explicit DHTClient falls straight through to
// the mandatory HTTP fallback, matching a worker agent started with no
// DHT seeds configured.
type nilDHT struct{}

func (nilDHT) Connected() bool { return false }

func (nilDHT) Lookup(ctx context.Context, service string) ([]wire.WorkerInfo, error) {
	return nil, nil
}
