package agent

import (
	"context"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dreamware/fabric/internal/assign"
	"github.com/dreamware/fabric/internal/wire"
)

// Prober reports the raw hardware facts DETECT needs. The real
// implementation shells out to gopsutil and nvidia-smi; tests supply a
// fake so DETECT's classification logic runs without touching the host.
//
// Grounded on ArthurCRodrigues-transcode-worker/internal/monitor's
// SystemMonitor, split into an interface here so the worker-type
// resolution it feeds can be tested without a real GPU or nvidia-smi.
type Prober interface {
	HasGPU(ctx context.Context) bool
	CPUCores(ctx context.Context) int
	RAMGB(ctx context.Context) int
	StorageGB(ctx context.Context) int
	// Load returns current system load as a 0.0-1.0 fraction of CPU
	// capacity in use (spec.md §3's heartbeat "load" field).
	Load(ctx context.Context) float64
}

// gopsutilProber is the production Prober, grounded directly on
// internal/monitor.SystemMonitor's GetStats/GetCapabilities: gopsutil for
// cpu/mem/disk, plus an nvidia-smi PATH lookup standing in for the
// ffmpeg-encoder probe monitor.go runs, since fabric's GPU presence check
// has no ffmpeg equivalent to ask.
type gopsutilProber struct{}

func (gopsutilProber) HasGPU(ctx context.Context) bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

func (gopsutilProber) CPUCores(ctx context.Context) int {
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil || counts == 0 {
		return 0
	}
	return counts
}

func (gopsutilProber) RAMGB(ctx context.Context) int {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0
	}
	return int(v.Total / (1024 * 1024 * 1024))
}

func (gopsutilProber) StorageGB(ctx context.Context) int {
	u, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return 0
	}
	return int(u.Total / (1024 * 1024 * 1024))
}

// Load reports the 1-minute load average normalized by CPU core count,
// clamped to [0, 1]. Cheap and non-blocking, unlike cpu.Percent which
// needs a sampling window to mean anything.
func (gopsutilProber) Load(ctx context.Context) float64 {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cores == 0 {
		cores = 1
	}
	fraction := avg.Load1 / float64(cores)
	if fraction > 1 {
		return 1
	}
	if fraction < 0 {
		return 0
	}
	return fraction
}

// Detect runs the DETECT state: probe the host, then resolve a concrete
// worker type per spec.md §4.5 (or honor userType if the operator
// specified one rather than "auto"). Resolution is delegated to
// internal/assign.ResolveWorkerType, the exact heuristic the coordinator
// uses defensively, so agent and coordinator never disagree about what
// "auto" means.
func Detect(ctx context.Context, p Prober, userType wire.WorkerType) wire.Capabilities {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	caps := wire.Capabilities{
		WorkerType: userType,
		HasGPU:     p.HasGPU(ctx),
		CPUCores:   p.CPUCores(ctx),
		RAMGB:      p.RAMGB(ctx),
		StorageGB:  p.StorageGB(ctx),
	}
	caps.WorkerType = assign.ResolveWorkerType(caps)
	return caps
}

// NewProber returns the production, gopsutil-backed Prober.
func NewProber() Prober {
	return gopsutilProber{}
}

// detectTimeout bounds how long probing the host is allowed to take
// before DETECT gives up and falls back to whatever partial facts it has
// gathered.
const detectTimeout = 5 * time.Second
