package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	localsync "github.com/liftlog/repsync/internal/local/sync"
)

const (
	// ImportedDir is the inbox subdirectory that receives imported files.
	ImportedDir = "imported"
	// RejectedDir is the inbox subdirectory that receives unreadable files.
	RejectedDir = "rejected"
)

// Config holds configuration for the daemon.
type Config struct {
	// UserID owns the calendar markers written for imported sessions.
	UserID string

	// DebounceInterval is how long a file must be quiet before it is
	// imported. This lets a companion device finish writing.
	DebounceInterval time.Duration

	// SyncInterval runs a manual sync periodically. Zero disables it.
	SyncInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Stats counts what the daemon has done since it was created.
type Stats struct {
	Imported int
	Rejected int
	Syncs    int
}

// Daemon imports session files dropped into an inbox directory and,
// optionally, keeps the store in sync with the remote.
type Daemon struct {
	store  *store.Store
	syncer localsync.Syncer
	inbox  string
	config *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // path -> last event
	changeQueueMu sync.Mutex

	// importMu serializes imports from the initial scan and the queue.
	importMu sync.Mutex
	statsMu  sync.Mutex
	stats    Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// New creates a daemon with default configuration. syncer may be nil, in
// which case the daemon only imports.
func New(st *store.Store, syncer localsync.Syncer, inbox string) (*Daemon, error) {
	return NewWithConfig(st, syncer, inbox, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(st *store.Store, syncer localsync.Syncer, inbox string, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if inbox == "" {
		return nil, fmt.Errorf("inbox cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.SyncInterval > 0 && syncer == nil {
		return nil, fmt.Errorf("sync interval set without a syncer")
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		store:       st,
		syncer:      syncer,
		inbox:       inbox,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Create the inbox and its imported/ and rejected/ subdirectories
// 2. Import every session file already in the inbox
// 3. Watch the inbox and import new files once they settle
// 4. Run a manual sync every SyncInterval, if set
//
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	for _, dir := range []string{d.inbox, d.subdir(ImportedDir), d.subdir(RejectedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := d.ImportAll(); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}

	if err := d.watcher.Start(d.inbox); err != nil {
		return err
	}
	d.config.Logger.Printf("Watching: %s", d.inbox)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()
	if d.config.SyncInterval > 0 {
		d.wg.Add(1)
		go d.periodicSync()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. It is safe to call more than once.
func (d *Daemon) Stop() error {
	d.stop.Do(func() {
		d.config.Logger.Println("Stopping daemon")
		d.cancel()

		if err := d.watcher.Stop(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}

		d.wg.Wait()
		d.config.Logger.Println("Daemon stopped")
	})
	return nil
}

// Stats returns a snapshot of the daemon's counters.
func (d *Daemon) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

// ImportAll imports every session file currently in the inbox in name
// order. Returns the number of sessions imported.
func (d *Daemon) ImportAll() (int, error) {
	entries, err := os.ReadDir(d.inbox)
	if err != nil {
		return 0, fmt.Errorf("failed to read inbox: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !schema.IsSessionFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	imported := 0
	for _, name := range names {
		ok, err := d.importFile(filepath.Join(d.inbox, name))
		if err != nil {
			d.config.Logger.Printf("Warning: failed to import %s: %v", name, err)
			continue
		}
		if ok {
			imported++
		}
	}
	if len(names) > 0 {
		d.config.Logger.Printf("Imported %d of %d inbox files", imported, len(names))
	}
	return imported, nil
}

// importFile imports one session file and moves it out of the inbox.
// A file that is gone by the time it is processed is skipped. A file that
// cannot be parsed is moved to rejected/ so it is not retried forever.
func (d *Daemon) importFile(path string) (bool, error) {
	d.importMu.Lock()
	defer d.importMu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	sess, err := schema.ReadSessionFile(path, time.Now())
	if err != nil {
		d.bump(func(s *Stats) { s.Rejected++ })
		if mvErr := d.move(path, RejectedDir); mvErr != nil {
			return false, mvErr
		}
		return false, err
	}

	stored, err := d.store.CompleteSession(d.ctx, d.config.UserID, sess)
	imported := err == nil
	switch {
	case errors.Is(err, store.ErrExists):
		// Already imported under this id; only the move failed last time.
		d.config.Logger.Printf("Session %s already imported", sess.ID)
	case err != nil:
		return false, fmt.Errorf("failed to store session: %w", err)
	default:
		d.config.Logger.Printf("Imported session %s (%s)", stored.ID, stored.Name)
		d.bump(func(s *Stats) { s.Imported++ })
	}

	if err := d.move(path, ImportedDir); err != nil {
		return false, err
	}
	return imported, nil
}

func (d *Daemon) move(path, sub string) error {
	dst := filepath.Join(d.subdir(sub), filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", sub, err)
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", filepath.Base(path), sub, err)
	}
	return nil
}

func (d *Daemon) subdir(name string) string {
	return filepath.Join(d.inbox, name)
}

func (d *Daemon) bump(f func(*Stats)) {
	d.statsMu.Lock()
	f(&d.stats)
	d.statsMu.Unlock()
}

// watchFileEvents queues create and modify events for import.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if event.Op == OpDelete {
				continue
			}
			d.queueChange(event.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue imports queued files once they have settled.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges imports files that have been quiet for at least the
// debounce interval.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		if _, err := d.importFile(path); err != nil {
			d.config.Logger.Printf("Error importing %s: %v", filepath.Base(path), err)
		}
	}
}

// periodicSync runs a manual sync every SyncInterval.
func (d *Daemon) periodicSync() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			res, err := d.syncer.ManualSync(d.ctx)
			if err != nil {
				d.config.Logger.Printf("Error during sync: %v", err)
				continue
			}
			d.bump(func(s *Stats) { s.Syncs++ })
			if res.Status == localsync.StatusCompleted && (res.Pushed > 0 || res.Updated > 0 || res.Failed > 0) {
				d.config.Logger.Printf("Sync: pushed=%d updated=%d failed=%d pending=%d",
					res.Pushed, res.Updated, res.Failed, res.Pending)
			}
		}
	}
}
