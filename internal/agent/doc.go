// Package agent implements the worker agent (C5): the contributor
// machine's state machine from boot through registration, service
// launch, and steady-state heartbeating, plus the small HTTP surface
// bound to its tunnel.
//
// No teacher file models a multi-state agent directly — torua's
// cmd/node just opens a store and serves requests — so the state
// machine shape is original to this package, while its parts are each
// grounded on a specific pack file: DETECT on
// ArthurCRodrigues-transcode-worker/internal/monitor's gopsutil usage,
// REGISTER/HEARTBEAT's HTTP client on the same repo's internal/client
// and internal/heartbeat (retryablehttp, periodic ticker loop), and the
// HTTP surface on internal/coordinator's chi + zerolog wiring.
package agent
