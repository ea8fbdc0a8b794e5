package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/liftlog/repsync/internal/identity"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	"github.com/liftlog/repsync/internal/remote"
)

// RetryPolicy bounds EnsureResolved.
type RetryPolicy struct {
	// Attempts is the number of sync-and-check rounds. At least 1.
	Attempts int

	// Grace is how long one round waits for its sync before re-checking.
	Grace time.Duration

	// Backoff is the pause before the second round; it doubles each round.
	Backoff time.Duration
}

// Config holds sync engine configuration.
type Config struct {
	// Concurrency bounds simultaneous remote calls within one pass.
	Concurrency int

	Retry RetryPolicy

	// Clock drives the retry policy. Defaults to the real clock.
	Clock clockwork.Clock

	// Notifier, if set, observes progress.
	Notifier Notifier

	// Logger for sync events. Defaults to stderr.
	Logger *log.Logger
}

// DefaultConfig returns the default sync configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Retry: RetryPolicy{
			Attempts: 3,
			Grace:    2 * time.Second,
			Backoff:  500 * time.Millisecond,
		},
		Clock:  clockwork.NewRealClock(),
		Logger: log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// syncer implements the Syncer interface.
type syncer struct {
	store  *store.Store
	mapper *identity.Mapper
	reach  Reachability
	remote remote.Client

	concurrency int
	retry       RetryPolicy
	clock       clockwork.Clock
	notifier    Notifier
	logger      *log.Logger

	// flights collapses concurrent work on one local id.
	flights singleflight.Group
}

// New creates a Syncer with default settings.
//
// Example:
//
//	st := store.New(database)
//	mapper := identity.New(database, nil)
//	monitor := reach.New(client)
//	syncer := sync.New(st, mapper, monitor, client)
func New(st *store.Store, mapper *identity.Mapper, reach Reachability, client remote.Client) Syncer {
	return NewWithConfig(st, mapper, reach, client, DefaultConfig())
}

// NewWithConfig creates a Syncer with custom configuration.
func NewWithConfig(st *store.Store, mapper *identity.Mapper, reach Reachability, client remote.Client, cfg Config) Syncer {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = def.Retry.Attempts
	}
	if cfg.Retry.Grace <= 0 {
		cfg.Retry.Grace = def.Retry.Grace
	}
	if cfg.Retry.Backoff < 0 {
		cfg.Retry.Backoff = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	return &syncer{
		store:       st,
		mapper:      mapper,
		reach:       reach,
		remote:      client,
		concurrency: cfg.Concurrency,
		retry:       cfg.Retry,
		clock:       cfg.Clock,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
	}
}

// syncable lists the collections pushed to the remote.
var syncable = []string{schema.CollectionSessions}

// work is one entity a pass must handle.
type work struct {
	collection string
	localID    schema.ID
	version    int64
	remoteID   schema.ID // zero when pending
}

// counters are the tallies of one pass.
type counters struct {
	pushed, updated, failed, conflicts atomic.Int64
}

// ManualSync implements Syncer.ManualSync.
func (s *syncer) ManualSync(ctx context.Context) (*Result, error) {
	start := s.clock.Now()

	pending, dirty, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	if !s.reach.IsOnline(ctx) {
		s.logger.Printf("Remote unreachable, skipping sync (%d pending)", len(pending))
		return &Result{Status: StatusSkipped, Pending: len(pending)}, nil
	}

	s.notifier.SyncStarted()
	s.logger.Printf("Starting sync: pending=%d dirty=%d", len(pending), len(dirty))

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, w := range pending {
		w := w
		g.Go(func() error {
			s.push(gctx, w, &c)
			return nil
		})
	}
	for _, w := range dirty {
		w := w
		g.Go(func() error {
			s.update(gctx, w, &c)
			return nil
		})
	}
	_ = g.Wait()

	stillPending := 0
	for _, w := range pending {
		if _, err := s.mapper.Resolve(ctx, w.localID); err != nil {
			stillPending++
		}
	}

	res := &Result{
		Status:    StatusCompleted,
		Pushed:    int(c.pushed.Load()),
		Updated:   int(c.updated.Load()),
		Failed:    int(c.failed.Load()),
		Conflicts: int(c.conflicts.Load()),
		Pending:   stillPending,
		Duration:  s.clock.Since(start),
	}
	s.logger.Printf("Sync complete: pushed=%d updated=%d failed=%d conflicts=%d pending=%d",
		res.Pushed, res.Updated, res.Failed, res.Conflicts, res.Pending)
	s.notifier.SyncFinished(res)
	return res, nil
}

// scan splits syncable records into pending (never pushed) and dirty
// (pushed, but edited since).
func (s *syncer) scan(ctx context.Context) (pending, dirty []work, err error) {
	for _, collection := range syncable {
		recs, err := s.store.List(ctx, collection)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list %s: %w", collection, err)
		}

		for _, rec := range recs {
			localID, err := schema.ParseID(rec.ID)
			if err != nil || !localID.IsLocal() {
				s.logger.Printf("WARNING: Skipping %s/%s: not a local id", collection, rec.ID)
				continue
			}

			w := work{collection: collection, localID: localID, version: rec.Version}
			remoteID, err := s.mapper.Resolve(ctx, localID)
			if errors.Is(err, identity.ErrUnresolved) {
				pending = append(pending, w)
				continue
			}
			if err != nil {
				return nil, nil, err
			}

			pushed, err := s.mapper.PushedVersion(ctx, localID)
			if err != nil {
				return nil, nil, err
			}
			if rec.Version > pushed {
				w.remoteID = remoteID
				dirty = append(dirty, w)
			}
		}
	}
	return pending, dirty, nil
}

// push creates one pending entity remotely and binds its id.
func (s *syncer) push(ctx context.Context, w work, c *counters) {
	key := w.localID.String()
	_, err, _ := s.flights.Do(key, func() (any, error) {
		// Re-check right before pushing: another pass may have bound it
		// since this one scanned.
		if _, err := s.mapper.Resolve(ctx, w.localID); err == nil {
			return nil, nil
		} else if !errors.Is(err, identity.ErrUnresolved) {
			return nil, err
		}

		sess, version, err := s.loadSession(ctx, w)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		value, err := s.remote.PushSession(ctx, remote.NewSessionPayload(sess))
		if err != nil {
			return nil, err
		}
		remoteID := schema.RemoteID(value)

		if err := s.mapper.Bind(ctx, w.localID, remoteID); err != nil {
			if identity.IsConflict(err) {
				s.logger.Printf("ERROR: %v (double sync detected; keeping original binding)", err)
				c.conflicts.Add(1)
				return nil, nil
			}
			return nil, fmt.Errorf("pushed as %s but failed to bind: %w", remoteID, err)
		}
		if err := s.mapper.MarkPushed(ctx, w.localID, version); err != nil {
			s.logger.Printf("WARNING: Failed to record pushed version of %s: %v", w.localID, err)
		}

		c.pushed.Add(1)
		s.logger.Printf("Pushed %s -> %s", w.localID, remoteID)
		s.notifier.EntityBound(w.localID, remoteID)
		return nil, nil
	})
	if err != nil {
		c.failed.Add(1)
		s.logger.Printf("WARNING: Failed to push %s: %v", w.localID, err)
	}
}

// update pushes local edits of an already bound entity.
func (s *syncer) update(ctx context.Context, w work, c *counters) {
	key := "update:" + w.localID.String()
	_, err, _ := s.flights.Do(key, func() (any, error) {
		sess, version, err := s.loadSession(ctx, w)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		pushed, err := s.mapper.PushedVersion(ctx, w.localID)
		if err != nil {
			return nil, err
		}
		if version <= pushed {
			return nil, nil
		}

		if err := s.remote.UpdateSession(ctx, w.remoteID.Value, remote.NewSessionPayload(sess)); err != nil {
			return nil, err
		}
		if err := s.mapper.MarkPushed(ctx, w.localID, version); err != nil {
			s.logger.Printf("WARNING: Failed to record pushed version of %s: %v", w.localID, err)
		}

		c.updated.Add(1)
		s.logger.Printf("Updated %s (%s) to version %d", w.localID, w.remoteID, version)
		return nil, nil
	})
	if err != nil {
		c.failed.Add(1)
		s.logger.Printf("WARNING: Failed to update %s: %v", w.localID, err)
	}
}

// loadSession reads the current state of a session and its version.
func (s *syncer) loadSession(ctx context.Context, w work) (*schema.WorkoutSession, int64, error) {
	rec, err := s.store.Get(ctx, w.collection, w.localID.String())
	if err != nil {
		return nil, 0, err
	}
	var sess schema.WorkoutSession
	if err := rec.Decode(&sess); err != nil {
		return nil, 0, err
	}
	return &sess, rec.Version, nil
}

// EnsureResolved implements Syncer.EnsureResolved.
func (s *syncer) EnsureResolved(ctx context.Context, localID schema.ID) (schema.ID, error) {
	remoteID, err := s.mapper.Resolve(ctx, localID)
	if err == nil {
		return remoteID, nil
	}
	if !errors.Is(err, identity.ErrUnresolved) {
		return schema.ID{}, err
	}

	if _, err := s.findSyncable(ctx, localID); err != nil {
		return schema.ID{}, err
	}

	for attempt := 0; attempt < s.retry.Attempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.retry.Backoff<<(attempt-1)); err != nil {
				return schema.ID{}, err
			}
		}

		res := s.trigger()
		timer := s.clock.NewTimer(s.retry.Grace)
		select {
		case <-res:
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return schema.ID{}, ctx.Err()
		}
		timer.Stop()

		remoteID, err := s.mapper.Resolve(ctx, localID)
		if err == nil {
			return remoteID, nil
		}
		if !errors.Is(err, identity.ErrUnresolved) {
			return schema.ID{}, err
		}
	}

	s.logger.Printf("Could not resolve %s after %d attempts", localID, s.retry.Attempts)
	return schema.ID{}, &SyncRequiredError{
		LocalID:  localID,
		Attempts: s.retry.Attempts,
		Online:   s.reach.IsOnline(ctx),
	}
}

// trigger starts a detached sync pass. The channel yields its result (nil
// on error) and is never closed without a value.
func (s *syncer) trigger() <-chan *Result {
	out := make(chan *Result, 1)
	go func() {
		res, err := s.ManualSync(context.Background())
		if err != nil {
			s.logger.Printf("WARNING: Triggered sync failed: %v", err)
		}
		out <- res
	}()
	return out
}

func (s *syncer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// findSyncable confirms localID names a local record in a syncable
// collection.
func (s *syncer) findSyncable(ctx context.Context, localID schema.ID) (string, error) {
	for _, collection := range syncable {
		_, err := s.store.Get(ctx, collection, localID.String())
		if err == nil {
			return collection, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", localID, store.ErrNotFound)
}

// Status implements Syncer.Status.
func (s *syncer) Status(ctx context.Context) (*Report, error) {
	pending, dirty, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	bindings, err := s.mapper.Bindings(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{Bound: len(bindings)}
	for _, w := range pending {
		r.Pending = append(r.Pending, w.localID)
	}
	for _, w := range dirty {
		r.Dirty = append(r.Dirty, w.localID)
	}
	return r, nil
}

type nopNotifier struct{}

func (nopNotifier) SyncStarted()               {}
func (nopNotifier) EntityBound(_, _ schema.ID) {}
func (nopNotifier) SyncFinished(*Result)       {}
