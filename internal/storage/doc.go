// Package storage defines the Store key-value interface shared by every
// component in the fabric that needs durable state, plus two
// implementations: MemoryStore (tests, and any in-process cache) and
// BoltStore (the edge router's durable coordinator registry, spec.md
// §4.7/§6's "persistent storage... durable writes").
//
// Grounded on torua's internal/storage/store.go for the Store
// interface and MemoryStore shape, rewritten here with this package's
// own terser doc voice (see bolt.go) rather than torua's per-method
// Behavior/Thread-safety/Performance blocks; BoltStore is grounded on
// cuemby-warren/pkg/storage/boltdb.go's bucket-per-entity, JSON-encoded
// bolt.Tx Update/View pattern, collapsed to the single "kv"
// bucket the edge router needs (spec.md §4.7 sizes it at "tens, not
// thousands" of rows — one bucket is plenty).
package storage
