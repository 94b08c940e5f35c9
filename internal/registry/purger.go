package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Purger periodically sweeps stale worker records out of a Registry.
//
// Grounded on torua's internal/coordinator/health_monitor.go,
// which runs a ticker loop under a context + WaitGroup to poll worker
// health; adapted here from active polling to a passive TTL sweep,
// since spec.md §4.2 defines staleness purely from LastHeartbeat rather
// than from failed health checks.
type Purger struct {
	reg      *Registry
	log      zerolog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPurger creates a Purger that sweeps reg every interval.
func NewPurger(reg *Registry, interval time.Duration, log zerolog.Logger) *Purger {
	return &Purger{reg: reg, interval: interval, log: log}
}

// Start launches the sweep loop in a background goroutine. Call Stop to
// shut it down.
func (p *Purger) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.sweep()
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit.
func (p *Purger) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Purger) sweep() {
	now := time.Now()
	p.reg.mu.Lock()
	var purged []string
	for id, w := range p.reg.workers {
		if now.Sub(w.LastHeartbeat) > p.reg.ttl {
			delete(p.reg.workers, id)
			purged = append(purged, id)
		}
	}
	p.reg.mu.Unlock()

	for _, id := range purged {
		p.log.Info().Str("worker_id", id).Msg("purged stale worker")
	}
}
