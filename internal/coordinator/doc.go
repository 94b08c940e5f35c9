// Package coordinator implements the compute fabric's control plane: the
// stateful worker registry, service assignment, admin introspection, and
// the reverse proxy that relays `/service/{name}/{rest}` requests to a
// worker selected from the registry.
//
// # Architecture
//
//	┌────────────────────────────────────────┐
//	│              coordinator                │
//	├────────────────────────────────────────┤
//	│  Server (chi router)                    │
//	│    /health, /metrics                    │
//	│    /api/worker/register, /heartbeat     │
//	│    /api/admin/{workers,services,gaps}   │
//	│    /api/services/{list,discover}        │
//	│    /service/{name}/{rest}  (proxy)       │
//	├────────────────────────────────────────┤
//	│  registry.Registry  — worker bookkeeping │
//	│  assign.Decide      — assignment policy  │
//	│  cursorTracker      — per-service RR     │
//	│  failoverTransport  — proxy retry logic  │
//	└────────────────────────────────────────┘
//
// Registration and heartbeat mutate internal/registry.Registry; the
// reverse proxy and admin endpoints only read from it. See
// internal/registry for the worker bookkeeping and TTL-eviction rules,
// and internal/assign for the service-assignment policy this package
// invokes indirectly through the registry.
package coordinator
