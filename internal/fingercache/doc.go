// Package fingercache implements the worker agent's peer-forwarding
// router (C6): the local short-circuit / TTL cache / optional DHT /
// mandatory HTTP-discovery chain a worker uses to find another worker
// for a service it does not itself run, plus the statistics counters
// exposed on the agent's /stats endpoint.
//
// No teacher file models this directly — torua has no peer-forwarding
// concept — so the cache and stats struct shapes (small map guarded by a
// mutex, atomic operation counters) follow internal/shard's
// ShardStats/OperationStats pattern, adapted from storage-operation
// counts to routing-decision counts. The coordinator's
// discovery call goes through internal/wire.Client; the forward to the
// chosen peer uses a plain http.Client.
package fingercache
