package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/fabric/internal/fingercache"
	"github.com/dreamware/fabric/internal/wire"
)

// registerBudget is how long REGISTER may keep failing before the agent
// reseeds from the edge router's coordinator list (spec.md §4.5: "REGISTER
// failure that exceeds a budget (>= 5 minutes without success) causes the
// agent to reseed").
const registerBudget = 5 * time.Minute

// Config bundles an Agent's construction-time parameters, mirroring
// config.Worker one level down from viper's raw struct.
type Config struct {
	CoordinatorURL      string // the edge router URL in practice; spec.md §6
	WorkerID            string
	WorkerType          wire.WorkerType
	TunnelMode          string
	ListenAddr          string
	HeartbeatInterval   time.Duration
	ServiceReadyTimeout time.Duration
}

// Agent runs the worker agent's state machine end to end: one call to
// Run drives BOOT through SHUTDOWN, looping HEARTBEAT until ctx is
// cancelled or the process is told to exit.
//
// Grounded on no single teacher file (see doc.go); REGISTER/HEARTBEAT's
// transport reuses internal/wire.Client exactly as
// ArthurCRodrigues-transcode-worker/internal/client wraps retryablehttp,
// and the HEARTBEAT ticker loop follows internal/registry.Purger's
// ticker+context shape (it runs on Run's own goroutine, so there is no
// WaitGroup).
type Agent struct {
	cfg       Config
	log       zerolog.Logger
	prober    Prober
	launcher  ServiceLauncher
	client    *wire.Client
	tunneler  Tunneler
	startedAt time.Time

	// mu guards every field below against concurrent reads from the HTTP
	// surface's handler goroutines (Router, HealthSnapshot) while the
	// state-machine goroutine (Run) mutates them — the only place this
	// agent's otherwise-sequential loop crosses a goroutine boundary.
	mu               sync.RWMutex
	router           *fingercache.Router
	workerID         string
	coordinatorID    string
	coordinatorURL   string
	tunnelURL        string
	meshIP           string
	capabilities     wire.Capabilities
	assignedServices []string
	degraded         map[string]bool
}

// New builds an Agent. launcher and prober may be nil to use the
// production defaults (NewProber, NewHTTPLauncher).
func New(cfg Config, log zerolog.Logger, prober Prober, launcher ServiceLauncher) (*Agent, error) {
	tunneler, err := NewTunneler(cfg.TunnelMode, cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	if prober == nil {
		prober = NewProber()
	}
	if launcher == nil {
		launcher = NewHTTPLauncher()
	}

	client := wire.NewClient(5*time.Second, 3)
	return &Agent{
		cfg:            cfg,
		log:            log,
		prober:         prober,
		launcher:       launcher,
		client:         client,
		tunneler:       tunneler,
		coordinatorURL: cfg.CoordinatorURL,
		workerID:       cfg.WorkerID,
		degraded:       make(map[string]bool),
	}, nil
}

// Router exposes the agent's finger-cache router for the HTTP surface's
// POST /service/{name} handler. It returns nil until the first
// successful registration builds one.
func (a *Agent) Router() *fingercache.Router {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.router
}

// Run drives the state machine to completion (or until ctx is
// cancelled), returning the ExitCode the worker agent CLI should exit
// with (spec.md §6).
func (a *Agent) Run(ctx context.Context) ExitCode {
	a.startedAt = time.Now()
	state := StateBoot
	attempt := 0
	registerFailingSince := time.Time{}

	for {
		if ctx.Err() != nil {
			return ExitClean
		}

		var err error
		switch state {
		case StateBoot:
			a.log.Info().Msg("booting")
			state = StateDetect

		case StateDetect:
			caps := Detect(ctx, a.prober, a.cfg.WorkerType)
			a.mu.Lock()
			a.capabilities = caps
			a.mu.Unlock()
			a.log.Info().
				Str("worker_type", string(caps.WorkerType)).
				Bool("has_gpu", caps.HasGPU).
				Msg("detected capabilities")
			state = StateTunnel

		case StateTunnel:
			var publicURL string
			publicURL, err = a.tunneler.Open(ctx)
			if err == nil {
				a.mu.Lock()
				a.tunnelURL = publicURL
				a.meshIP = a.tunneler.MeshIP()
				a.mu.Unlock()
				state = StateRegister
			}

		case StateRegister:
			err = a.register(ctx)
			if err == nil {
				state = StateLaunch
				registerFailingSince = time.Time{}
			} else {
				if registerFailingSince.IsZero() {
					registerFailingSince = time.Now()
				} else if time.Since(registerFailingSince) >= registerBudget {
					if reseedErr := a.reseed(ctx); reseedErr != nil {
						return ExitRegistrationBudgetExceeded
					}
					registerFailingSince = time.Time{}
				}
			}

		case StateLaunch:
			a.launch(ctx)
			state = StateHeartbeat

		case StateHeartbeat:
			err = a.heartbeatLoop(ctx)
			if err != nil {
				state = StateRegister
			} else {
				state = StateShutdown
			}

		case StateShutdown:
			a.log.Info().Msg("shutting down")
			return ExitClean
		}

		if err != nil {
			attempt++
			wait := nextBackoff(attempt)
			a.log.Warn().Err(err).Str("state", state.String()).Dur("backoff", wait).Msg("transition failed, retrying")
			select {
			case <-ctx.Done():
				return ExitClean
			case <-time.After(wait):
			}
		} else {
			attempt = 0
		}
	}
}

func (a *Agent) register(ctx context.Context) error {
	a.mu.RLock()
	req := wire.RegisterRequest{
		WorkerID:     a.workerID,
		TunnelURL:    a.tunnelURL,
		MeshIP:       a.meshIP,
		Capabilities: a.capabilities,
	}
	coordinatorURL := a.coordinatorURL
	a.mu.RUnlock()

	var resp wire.RegisterResponse
	url := coordinatorURL + "/api/worker/register"
	if err := a.client.PostJSON(ctx, url, req, &resp); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	router := fingercache.New(resp.AssignedServices, fingercache.Config{
		CoordinatorURL: coordinatorURL,
		Client:         a.client,
	})

	a.mu.Lock()
	a.workerID = resp.WorkerID
	a.coordinatorID = resp.CoordinatorID
	a.assignedServices = resp.AssignedServices
	a.router = router
	a.mu.Unlock()

	a.log.Info().
		Str("worker_id", resp.WorkerID).
		Str("coordinator_id", resp.CoordinatorID).
		Strs("assigned_services", resp.AssignedServices).
		Msg("registered")
	return nil
}

// reseed implements spec.md §4.5's registration-budget recovery: fetch
// the edge router's live coordinator list and switch the effective
// coordinator URL to one of them directly, bypassing whatever dead
// coordinator the edge router's round-robin proxy kept handing back.
func (a *Agent) reseed(ctx context.Context) error {
	var coordinators []wire.CoordinatorInfo
	url := a.cfg.CoordinatorURL + "/api/coordinators"
	if err := a.client.GetJSON(ctx, url, &coordinators); err != nil {
		return fmt.Errorf("reseed: %w", err)
	}
	if len(coordinators) == 0 {
		return fmt.Errorf("reseed: edge router reports no live coordinators")
	}

	chosen := coordinators[rand.Intn(len(coordinators))]
	a.mu.Lock()
	a.coordinatorURL = chosen.TunnelURL
	a.mu.Unlock()
	a.log.Info().Str("coordinator_id", chosen.CoordinatorID).Msg("reseeded coordinator")
	return nil
}

func (a *Agent) launch(ctx context.Context) {
	a.mu.RLock()
	assigned := append([]string(nil), a.assignedServices...)
	a.mu.RUnlock()

	results := launchAll(ctx, a.launcher, assigned, a.cfg.ServiceReadyTimeout)

	a.mu.Lock()
	for _, r := range results {
		a.degraded[r.Service] = r.Degraded
	}
	a.mu.Unlock()

	for _, r := range results {
		if r.Degraded {
			a.log.Warn().Str("service", r.Service).Msg("service failed to become ready")
		}
	}
}

// heartbeatLoop ticks every HeartbeatInterval until ctx is cancelled or
// the coordinator replies re-register, matching internal/registry.Purger's
// ticker+context loop shape.
func (a *Agent) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reregister, err := a.heartbeatOnce(ctx)
			if err != nil {
				a.log.Warn().Err(err).Msg("heartbeat failed, will retry next tick")
				continue
			}
			if reregister {
				return fmt.Errorf("coordinator requested re-register")
			}
		}
	}
}

func (a *Agent) heartbeatOnce(ctx context.Context) (reregister bool, err error) {
	a.mu.RLock()
	status := "healthy"
	for _, d := range a.degraded {
		if d {
			status = "degraded"
			break
		}
	}
	workerID := a.workerID
	coordinatorURL := a.coordinatorURL
	a.mu.RUnlock()

	load := a.prober.Load(ctx)
	req := wire.HeartbeatRequest{
		WorkerID: workerID,
		Status:   status,
		Load:     &load,
	}

	var resp wire.HeartbeatResponse
	url := coordinatorURL + "/api/worker/heartbeat"
	if err := a.client.PostJSON(ctx, url, req, &resp); err != nil {
		return false, err
	}
	if !resp.OK && resp.Action == wire.ReregisterAction {
		return true, nil
	}
	return false, nil
}

// Health is the body of GET /health on the agent's own HTTP surface.
type Health struct {
	Status   string   `json:"status"`
	WorkerID string   `json:"worker_id"`
	MeshIP   string   `json:"mesh_ip,omitempty"`
	Services []string `json:"services"`
	Uptime   float64  `json:"uptime"`
}

func (a *Agent) HealthSnapshot() Health {
	a.mu.RLock()
	defer a.mu.RUnlock()

	status := "healthy"
	for _, d := range a.degraded {
		if d {
			status = "degraded"
			break
		}
	}
	return Health{
		Status:   status,
		WorkerID: a.workerID,
		MeshIP:   a.meshIP,
		Services: append([]string(nil), a.assignedServices...),
		Uptime:   time.Since(a.startedAt).Seconds(),
	}
}
