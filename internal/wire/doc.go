// Package wire is shared by all three binaries (coordinator, worker
// agent, edge router): it has no dependency on any of their internal
// packages so each can import it without creating an import cycle.
//
// Grounded on internal/cluster/types.go from torua
// (johnjansen-torua): NodeInfo became WorkerInfo/CoordinatorInfo,
// RegisterRequest/PostJSON/GetJSON kept their shape but gained the
// worker-capability fields spec.md requires and a retrying transport.
package wire
