package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	localsync "github.com/liftlog/repsync/internal/local/sync"
)

// countingSyncer records ManualSync calls.
type countingSyncer struct {
	calls atomic.Int32
}

func (c *countingSyncer) ManualSync(context.Context) (*localsync.Result, error) {
	c.calls.Add(1)
	return &localsync.Result{Status: localsync.StatusSkipped}, nil
}

func (c *countingSyncer) EnsureResolved(context.Context, schema.ID) (schema.ID, error) {
	return schema.ID{}, localsync.ErrSyncRequired
}

func (c *countingSyncer) Status(context.Context) (*localsync.Report, error) {
	return &localsync.Report{}, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.InitSchema())

	return store.NewWithConfig(database, store.Config{
		Location: time.UTC,
		Logger:   log.New(io.Discard, "", 0),
	})
}

func testConfig() *Config {
	return &Config{
		UserID:           "u1",
		DebounceInterval: 20 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func writeSession(t *testing.T, dir, name string, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

var completed = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestNewWithConfig_Validation(t *testing.T) {
	st := setupTestStore(t)

	_, err := NewWithConfig(nil, nil, "inbox", testConfig())
	assert.Error(t, err, "nil store")

	_, err = NewWithConfig(st, nil, "", testConfig())
	assert.Error(t, err, "empty inbox")

	cfg := testConfig()
	cfg.SyncInterval = time.Second
	_, err = NewWithConfig(st, nil, "inbox", cfg)
	assert.Error(t, err, "sync interval without syncer")

	d, err := NewWithConfig(st, nil, "inbox", nil)
	require.NoError(t, err)
	assert.NotNil(t, d.config.Logger)
	require.NoError(t, d.Stop())
}

func TestImportAll(t *testing.T) {
	st := setupTestStore(t)
	inbox := setupInbox(t)

	writeSession(t, inbox, "a.json", map[string]any{
		"name":         "Push day",
		"completed_at": completed,
		"exercises":    []map[string]any{{"name": "Bench", "sets": 5, "reps": 5}},
	})
	writeSession(t, inbox, "b.json", map[string]any{"name": "", "completed_at": completed})
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("hi"), 0644))

	d, err := NewWithConfig(st, nil, inbox, testConfig())
	require.NoError(t, err)
	defer d.Stop()

	n, err := d.ImportAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sessions, err := st.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Push day", sessions[0].Name)
	assert.True(t, sessions[0].ID.IsLocal())

	assert.FileExists(t, filepath.Join(inbox, ImportedDir, "a.json"))
	assert.FileExists(t, filepath.Join(inbox, RejectedDir, "b.json"))
	assert.NoFileExists(t, filepath.Join(inbox, "a.json"))
	assert.FileExists(t, filepath.Join(inbox, "notes.txt"))

	markers, err := st.Markers(context.Background(), "u1")
	require.NoError(t, err)
	m := markers[calendar.Of(completed, time.UTC)]
	require.NotNil(t, m)
	assert.Equal(t, schema.MarkerTrained, m.Kind)

	stats := d.Stats()
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 1, stats.Rejected)
}

func TestImportAll_SameSessionTwice(t *testing.T) {
	st := setupTestStore(t)
	inbox := setupInbox(t)

	sess := map[string]any{
		"id":           "local:2f1c7a52-8a43-4b8e-9d0b-1b8f3a4c5d6e",
		"name":         "Pull day",
		"completed_at": completed,
	}
	writeSession(t, inbox, "first.json", sess)
	writeSession(t, inbox, "second.json", sess)

	d, err := NewWithConfig(st, nil, inbox, testConfig())
	require.NoError(t, err)
	defer d.Stop()

	n, err := d.ImportAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := st.Count(context.Background(), schema.CollectionSessions)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.FileExists(t, filepath.Join(inbox, ImportedDir, "second.json"))
}

func TestStart_ImportsDroppedFiles(t *testing.T) {
	st := setupTestStore(t)
	inbox := setupInbox(t)

	writeSession(t, inbox, "existing.json", map[string]any{"name": "Before start", "completed_at": completed})

	d, err := NewWithConfig(st, nil, inbox, testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(inbox, ImportedDir, "existing.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "initial scan")

	writeSession(t, inbox, "dropped.json", map[string]any{"name": "After start", "completed_at": completed})

	require.Eventually(t, func() bool {
		n, err := st.Count(context.Background(), schema.CollectionSessions)
		return err == nil && n == 2
	}, 2*time.Second, 10*time.Millisecond, "watched import")
	assert.FileExists(t, filepath.Join(inbox, ImportedDir, "dropped.json"))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_PeriodicSync(t *testing.T) {
	st := setupTestStore(t)
	syncer := &countingSyncer{}

	cfg := testConfig()
	cfg.SyncInterval = 10 * time.Millisecond
	d, err := NewWithConfig(st, syncer, filepath.Join(t.TempDir(), "inbox"), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	require.Eventually(t, func() bool {
		return syncer.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.Stop())
	calls := syncer.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, syncer.calls.Load(), "no syncs after Stop")
	assert.GreaterOrEqual(t, d.Stats().Syncs, 2)
}

func TestStop_Idempotent(t *testing.T) {
	d, err := NewWithConfig(setupTestStore(t), nil, setupInbox(t), testConfig())
	require.NoError(t, err)

	assert.NoError(t, d.Stop())
	assert.NoError(t, d.Stop())
}
