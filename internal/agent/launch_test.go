package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/fabric/internal/catalog"
)

type fakeLauncher struct {
	healthyAfter map[string]int
	calls        map[string]int
}

func newFakeLauncher(healthyAfter map[string]int) *fakeLauncher {
	return &fakeLauncher{healthyAfter: healthyAfter, calls: make(map[string]int)}
}

func (f *fakeLauncher) Start(ctx context.Context, svc catalog.Service) error { return nil }

func (f *fakeLauncher) Healthy(ctx context.Context, svc catalog.Service) bool {
	f.calls[svc.Name]++
	threshold, ok := f.healthyAfter[svc.Name]
	if !ok {
		return false
	}
	return f.calls[svc.Name] >= threshold
}

func TestLaunchAll_MarksUnknownServiceDegraded(t *testing.T) {
	results := launchAll(context.Background(), newFakeLauncher(nil), []string{"not-a-real-service"}, time.Second)
	require.Len(t, results, 1)
	assert.True(t, results[0].Degraded)
}

func TestLaunchAll_ReadyImmediately(t *testing.T) {
	launcher := newFakeLauncher(map[string]int{"notes-coa": 1})
	results := launchAll(context.Background(), launcher, []string{"notes-coa"}, time.Second)
	require.Len(t, results, 1)
	assert.False(t, results[0].Degraded)
}

func TestLaunchAll_TimesOutAsDegraded(t *testing.T) {
	launcher := newFakeLauncher(nil) // never reports healthy
	results := launchAll(context.Background(), launcher, []string{"notes-coa"}, 50*time.Millisecond)
	require.Len(t, results, 1)
	assert.True(t, results[0].Degraded)
}

func TestNoopLauncher_AlwaysHealthy(t *testing.T) {
	svc, ok := catalog.Lookup("notes-coa")
	require.True(t, ok)
	l := noopLauncher{}
	assert.NoError(t, l.Start(context.Background(), svc))
	assert.True(t, l.Healthy(context.Background(), svc))
}
