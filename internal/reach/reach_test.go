package reach

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

// countingProber reports the configured state and counts calls.
type countingProber struct {
	online atomic.Bool
	calls  atomic.Int32
	gate   chan struct{} // if non-nil, Probe blocks until closed
}

func (p *countingProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	if p.online.Load() {
		return nil
	}
	return ErrUnreachable
}

func newTestMonitor(p Prober, clock clockwork.Clock) *Monitor {
	return NewWithConfig(p, Config{
		TTL:    5 * time.Second,
		Clock:  clock,
		Logger: log.New(io.Discard, "", 0),
	})
}

func TestIsOnline_CachesWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &countingProber{}
	p.online.Store(true)
	m := newTestMonitor(p, clock)
	ctx := context.Background()

	assert.True(t, m.IsOnline(ctx))
	assert.True(t, m.IsOnline(ctx))
	clock.Advance(4 * time.Second)
	assert.True(t, m.IsOnline(ctx))
	assert.Equal(t, int32(1), p.calls.Load())

	// The cached answer survives a change until the TTL runs out.
	p.online.Store(false)
	assert.True(t, m.IsOnline(ctx))

	clock.Advance(2 * time.Second)
	assert.False(t, m.IsOnline(ctx))
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestIsOnline_ProbeFailureIsOffline(t *testing.T) {
	m := newTestMonitor(ProberFunc(func(context.Context) error {
		return errors.New("dns lookup failed")
	}), clockwork.NewFakeClock())

	assert.False(t, m.IsOnline(context.Background()))
}

func TestIsOnline_Static(t *testing.T) {
	clock := clockwork.NewFakeClock()
	assert.True(t, newTestMonitor(Static(true), clock).IsOnline(context.Background()))
	assert.False(t, newTestMonitor(Static(false), clock).IsOnline(context.Background()))
}

func TestInvalidate_ForcesProbe(t *testing.T) {
	p := &countingProber{}
	m := newTestMonitor(p, clockwork.NewFakeClock())
	ctx := context.Background()

	assert.False(t, m.IsOnline(ctx))
	p.online.Store(true)
	assert.False(t, m.IsOnline(ctx), "still cached")

	m.Invalidate()
	assert.True(t, m.IsOnline(ctx))
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestIsOnline_SharesInFlightProbe(t *testing.T) {
	p := &countingProber{gate: make(chan struct{})}
	p.online.Store(true)
	m := newTestMonitor(p, clockwork.NewFakeClock())

	const callers = 10
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.IsOnline(context.Background())
		}()
	}

	// Let the callers pile up behind the first probe.
	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(p.gate)
	wg.Wait()
	close(results)

	for online := range results {
		assert.True(t, online)
	}
	assert.LessOrEqual(t, p.calls.Load(), int32(2), "callers should share the in-flight probe")
}

func TestIsOnline_CallerCancelled(t *testing.T) {
	p := &countingProber{gate: make(chan struct{})}
	p.online.Store(true)
	m := newTestMonitor(p, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.IsOnline(ctx), "a cancelled caller gets offline")

	close(p.gate)
	assert.True(t, m.IsOnline(context.Background()))
}
