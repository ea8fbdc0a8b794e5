// Package reach answers "is the remote reachable right now?" from a cached
// probe.
//
// A Monitor is an explicit value passed to whoever needs it; there is no
// process-wide state. The probe result is cached for a TTL so hot paths do
// not hammer the network, concurrent callers share one in-flight probe, and
// a failing probe counts as offline.
package reach

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a probe result stays valid.
const DefaultTTL = 5 * time.Second

// ErrUnreachable is returned by probers when the remote cannot be reached.
// It never escapes the monitor as a hard failure.
var ErrUnreachable = errors.New("remote unreachable")

// Prober checks connectivity once.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Static returns a prober that always reports the given state.
func Static(online bool) Prober {
	return ProberFunc(func(context.Context) error {
		if online {
			return nil
		}
		return ErrUnreachable
	})
}

// Config holds monitor configuration.
type Config struct {
	// TTL is how long a probe result is reused. Zero means DefaultTTL.
	TTL time.Duration

	// Timeout bounds a single probe. Zero means no extra bound.
	Timeout time.Duration

	// Clock drives cache expiry. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger reports online/offline transitions. Defaults to stderr.
	Logger *log.Logger
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		TTL:     DefaultTTL,
		Timeout: 3 * time.Second,
		Clock:   clockwork.NewRealClock(),
		Logger:  log.New(os.Stderr, "[reach] ", log.LstdFlags),
	}
}

// Monitor caches the reachability of one remote.
type Monitor struct {
	prober  Prober
	ttl     time.Duration
	timeout time.Duration
	clock   clockwork.Clock
	logger  *log.Logger

	group singleflight.Group

	mu        sync.Mutex
	online    bool
	checkedAt time.Time
	valid     bool
}

// New creates a monitor with default settings.
func New(prober Prober) *Monitor {
	return NewWithConfig(prober, DefaultConfig())
}

// NewWithConfig creates a monitor with custom configuration.
func NewWithConfig(prober Prober, cfg Config) *Monitor {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[reach] ", log.LstdFlags)
	}
	return &Monitor{
		prober:  prober,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}
}

// IsOnline reports whether the remote is reachable, probing only when the
// cached answer has expired.
func (m *Monitor) IsOnline(ctx context.Context) bool {
	m.mu.Lock()
	if m.valid && m.clock.Since(m.checkedAt) < m.ttl {
		online := m.online
		m.mu.Unlock()
		return online
	}
	m.mu.Unlock()

	ch := m.group.DoChan("probe", func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		pctx := context.WithoutCancel(ctx)
		if m.timeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(pctx, m.timeout)
			defer cancel()
		}
		return m.prober.Probe(pctx) == nil, nil
	})

	select {
	case res := <-ch:
		online := res.Val.(bool)
		m.record(online)
		return online
	case <-ctx.Done():
		return false
	}
}

func (m *Monitor) record(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.valid && !m.checkedAt.Before(now) {
		return
	}
	if !m.checkedAt.IsZero() && m.online != online {
		if online {
			m.logger.Printf("remote is reachable again")
		} else {
			m.logger.Printf("remote unreachable; deferring remote work")
		}
	}
	m.online = online
	m.checkedAt = now
	m.valid = true
}

// Invalidate forces the next IsOnline call to probe.
func (m *Monitor) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = false
}
