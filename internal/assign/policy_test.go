package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/fabric/internal/catalog"
	"github.com/dreamware/fabric/internal/wire"
)

func TestResolveWorkerType(t *testing.T) {
	assert.Equal(t, wire.WorkerGPU, ResolveWorkerType(wire.Capabilities{WorkerType: wire.WorkerAuto, HasGPU: true}))
	assert.Equal(t, wire.WorkerCPU, ResolveWorkerType(wire.Capabilities{WorkerType: wire.WorkerAuto, CPUCores: 16, RAMGB: 64}))
	assert.Equal(t, wire.WorkerStorage, ResolveWorkerType(wire.Capabilities{WorkerType: wire.WorkerAuto, StorageGB: 4096, CPUCores: 2}))
	assert.Equal(t, wire.WorkerCPU, ResolveWorkerType(wire.Capabilities{WorkerType: wire.WorkerAuto}))
	assert.Equal(t, wire.WorkerEdge, ResolveWorkerType(wire.Capabilities{WorkerType: wire.WorkerEdge}))
}

func TestDecide_FirstGPUWorkerFillsAllCriticalGaps(t *testing.T) {
	// Empty registry: coverage is zero for everything eligible.
	coverage := map[string]int{}
	for _, s := range EligibleServices(wire.WorkerGPU) {
		coverage[s.Name] = 0
	}

	got := Decide(wire.WorkerGPU, coverage, 0)

	assert.Contains(t, got, "llm-inference")
	assert.Contains(t, got, "vision-ocr")
	assert.Contains(t, got, "notes-coa")
	// Every eligible service was uncovered, so all of them are assigned.
	assert.Len(t, got, len(EligibleServices(wire.WorkerGPU)))
}

func TestDecide_SecondGPUWorkerFillsRemainingGaps(t *testing.T) {
	// First GPU worker already covers llm-inference, vision-ocr, rag-embeddings
	// and the CPU priority-1 service; the registering worker sees those as
	// covered, leaving only ner-extraction/doc-processing uncovered.
	coverage := map[string]int{
		"llm-inference":   1,
		"vision-ocr":      1,
		"rag-embeddings":  1,
		"notes-coa":       1,
		"ner-extraction":  0,
		"doc-processing":  0,
	}

	got := Decide(wire.WorkerGPU, coverage, 1)

	// Uncovered services exist (coverage 0), so the GPU-fills-all-gaps rule
	// dominates and both uncovered CPU services are assigned.
	assert.ElementsMatch(t, []string{"doc-processing", "ner-extraction"}, got)
}

func TestDecide_SecondGPUWorkerAllCoveredTiesBreakByPriorityThenName(t *testing.T) {
	coverage := map[string]int{
		"llm-inference":  1,
		"vision-ocr":     1,
		"rag-embeddings": 1,
		"notes-coa":      1,
		"ner-extraction": 1,
		"doc-processing": 1,
	}

	// All eligible services are covered once; the light-multitask rule
	// (peerCount == 1) assigns the top 2 by (coverage asc, priority asc, name asc).
	got := Decide(wire.WorkerGPU, coverage, 1)

	assert.Equal(t, []string{"llm-inference", "notes-coa"}, got)
}

func TestDecide_CPUOnlyWorkerNeverGetsGPUOrStorageOrEdge(t *testing.T) {
	coverage := map[string]int{}
	for _, s := range EligibleServices(wire.WorkerCPU) {
		coverage[s.Name] = 5
	}

	got := Decide(wire.WorkerCPU, coverage, 10)

	for _, name := range got {
		svc, ok := catalog.Lookup(name)
		if assert.True(t, ok) {
			assert.Equal(t, catalog.RequiresCPU, svc.Requires)
		}
	}
}

func TestDecide_BootstrapMultitaskWhenNoPeers(t *testing.T) {
	coverage := map[string]int{}
	for _, s := range EligibleServices(wire.WorkerCPU) {
		coverage[s.Name] = 0
	}

	got := Decide(wire.WorkerCPU, coverage, 0)
	assert.Len(t, got, 3)
}

func TestDecide_SpecializesWithManyPeers(t *testing.T) {
	coverage := map[string]int{}
	for _, s := range EligibleServices(wire.WorkerCPU) {
		coverage[s.Name] = 0
	}

	got := Decide(wire.WorkerCPU, coverage, 5)
	assert.Len(t, got, 1)
}

func TestDecide_Deterministic(t *testing.T) {
	coverage := map[string]int{"llm-inference": 2, "vision-ocr": 1, "rag-embeddings": 0}
	a := Decide(wire.WorkerGPU, coverage, 3)
	b := Decide(wire.WorkerGPU, coverage, 3)
	assert.Equal(t, a, b)
}
