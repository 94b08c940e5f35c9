// Package edge implements the Edge Router (C7): the front door that
// holds the registry of live coordinators and forwards unmatched
// client/worker traffic to one of them.
//
// Grounded on torua's cmd/coordinator/main.go register/heartbeat/
// list handler shapes, applied one level up — coordinators instead of
// workers — plus cuemby-warren/pkg/storage/boltdb.go for the durable,
// bucket-per-entity persistence spec.md §4.7 asks for. Worker heartbeats
// never reach this package's store; they land on a coordinator and stay
// in-process there (internal/registry).
package edge
