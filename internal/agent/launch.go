package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dreamware/fabric/internal/catalog"
)

// ServiceLauncher starts and health-checks the actual AI service
// containers/processes LAUNCH hands off to. Concrete container
// orchestration is out of scope per spec.md §1 ("the actual AI service
// containers, model weight management... are out of scope"), so this is
// a seam a real deployment wires into its container runtime of choice.
type ServiceLauncher interface {
	// Start brings up svc's container/process on svc.Port. It should
	// return once the process has been started, not once it is ready —
	// readiness is polled separately via Healthy.
	Start(ctx context.Context, svc catalog.Service) error
	// Healthy polls svc's local /health endpoint once, returning true
	// only on a 200 response.
	Healthy(ctx context.Context, svc catalog.Service) bool
}

// noopLauncher is a ServiceLauncher whose Start is a no-op (nothing to
// launch without a real container runtime) and whose Healthy always
// reports ready, so an agent given it completes LAUNCH and proceeds to
// HEARTBEAT without waiting on any service. It is not the default: New
// falls back to NewHTTPLauncher when no launcher is passed.
type noopLauncher struct{}

func (noopLauncher) Start(ctx context.Context, svc catalog.Service) error  { return nil }
func (noopLauncher) Healthy(ctx context.Context, svc catalog.Service) bool { return true }

// httpLauncher is a minimal real ServiceLauncher for services that are
// already running (e.g. started by an external process manager) and
// just need a readiness poll — Start is a no-op, Healthy does an actual
// GET against the service's cataloged local port.
type httpLauncher struct {
	client *http.Client
}

// NewHTTPLauncher returns a ServiceLauncher that polls each service's
// local /health over HTTP without attempting to start anything itself.
func NewHTTPLauncher() ServiceLauncher {
	return &httpLauncher{client: &http.Client{Timeout: 5 * time.Second}}
}

func (l *httpLauncher) Start(ctx context.Context, svc catalog.Service) error { return nil }

func (l *httpLauncher) Healthy(ctx context.Context, svc catalog.Service) bool {
	url := fmt.Sprintf("http://127.0.0.1:%d/health", svc.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// healthPollInterval is how often LAUNCH re-polls a not-yet-ready
// service before its readiness deadline elapses.
const healthPollInterval = 25 * time.Millisecond

// launchResult is LAUNCH's per-service outcome, reported on the next
// heartbeat as either a clean pass or a degraded status (spec.md §4.5:
// "services that fail to come up are reported back on the next
// heartbeat as status:degraded").
type launchResult struct {
	Service  string
	Degraded bool
}

// launchAll starts every assigned service and polls each one until
// healthy or readyTimeout elapses, matching spec.md §4.5's per-service
// T_svc_ready deadline. Services are polled sequentially; LAUNCH is not
// on the request-serving hot path so there is no concurrency requirement
// to justify a worker pool here.
func launchAll(ctx context.Context, launcher ServiceLauncher, assigned []string, readyTimeout time.Duration) []launchResult {
	results := make([]launchResult, 0, len(assigned))
	for _, name := range assigned {
		svc, ok := catalog.Lookup(name)
		if !ok {
			results = append(results, launchResult{Service: name, Degraded: true})
			continue
		}

		degraded := true
		if err := launcher.Start(ctx, svc); err == nil {
			deadline := time.Now().Add(readyTimeout)
			for time.Now().Before(deadline) {
				if launcher.Healthy(ctx, svc) {
					degraded = false
					break
				}
				select {
				case <-ctx.Done():
					deadline = time.Now()
				case <-time.After(healthPollInterval):
				}
			}
		}
		results = append(results, launchResult{Service: name, Degraded: degraded})
	}
	return results
}
