package backup

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlog/repsync/internal/identity"
	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
)

type testEnv struct {
	db     *db.DB
	store  *store.Store
	mapper *identity.Mapper
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.InitSchema())

	return &testEnv{
		db: database,
		store: store.NewWithConfig(database, store.Config{
			Location: time.UTC,
			Logger:   log.New(io.Discard, "", 0),
		}),
		mapper: identity.New(database, nil),
	}
}

var day = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// populate writes a workout, two sessions (one bound and pushed), a rest
// day, and the free rest day scalar.
func populate(t *testing.T, env *testEnv) (bound, unbound *schema.WorkoutSession) {
	t.Helper()
	ctx := context.Background()

	_, err := env.store.CreateSavedWorkout(ctx, &schema.SavedWorkout{
		Name:      "Push",
		Exercises: []schema.ExerciseEntry{{Name: "Bench", Sets: 5, Reps: 5, Weight: 80}},
	})
	require.NoError(t, err)

	bound, err = env.store.CompleteSession(ctx, "u1", &schema.WorkoutSession{Name: "Mon", CompletedAt: day.Add(-48 * time.Hour)})
	require.NoError(t, err)
	unbound, err = env.store.CompleteSession(ctx, "u1", &schema.WorkoutSession{Name: "Tue", CompletedAt: day.Add(-24 * time.Hour)})
	require.NoError(t, err)

	require.NoError(t, env.mapper.Bind(ctx, bound.ID, schema.RemoteID("srv-1")))
	require.NoError(t, env.mapper.MarkPushed(ctx, bound.ID, 1))

	_, err = env.store.LogRestDay(ctx, "u1", &schema.RestDayCompletion{
		Date:       day,
		Activities: []string{"stretching"},
		Caption:    "easy",
	}, true)
	require.NoError(t, err)

	require.NoError(t, env.store.SetValue(ctx, "free_rest_day.last_used", "2026-03-14"))
	return bound, unbound
}

func TestExportImport_RoundTrip(t *testing.T) {
	for _, name := range []string{"backup.jsonl", "backup.yaml"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src := setupTestEnv(t)
			bound, unbound := populate(t, src)

			path := filepath.Join(t.TempDir(), "out", name)
			exp, err := Export(ctx, src.db, ExportOptions{Path: path})
			require.NoError(t, err)
			assert.Equal(t, FormatFor(name), exp.Format)
			// workout, 2 sessions, 3 markers (2 trained, 1 rested)
			assert.Equal(t, 6, exp.Records)
			assert.Equal(t, 1, exp.RestDays)
			assert.Equal(t, 1, exp.Bindings)
			assert.Equal(t, 1, exp.Values)
			assert.NoFileExists(t, path+".tmp")

			dst := setupTestEnv(t)
			res, err := Import(ctx, dst.db, dst.mapper, ImportOptions{Path: path})
			require.NoError(t, err)
			assert.Empty(t, res.Errors)
			assert.Equal(t, 6, res.Records)
			assert.Equal(t, 1, res.RestDays)
			assert.Equal(t, 1, res.Bindings)
			assert.Equal(t, 1, res.Values)

			workouts, err := dst.store.SavedWorkouts(ctx)
			require.NoError(t, err)
			require.Len(t, workouts, 1)
			assert.Equal(t, "Push", workouts[0].Name)
			assert.Equal(t, 80.0, workouts[0].Exercises[0].Weight)

			remoteID, err := dst.mapper.Resolve(ctx, bound.ID)
			require.NoError(t, err)
			assert.Equal(t, schema.RemoteID("srv-1"), remoteID)
			_, err = dst.mapper.Resolve(ctx, unbound.ID)
			assert.ErrorIs(t, err, identity.ErrUnresolved)

			// The bound session was clean at export and stays clean.
			rec, err := dst.store.Get(ctx, schema.CollectionSessions, bound.ID.String())
			require.NoError(t, err)
			pushed, err := dst.mapper.PushedVersion(ctx, bound.ID)
			require.NoError(t, err)
			assert.Equal(t, rec.Version, pushed)

			rest, err := dst.store.RestDays(ctx)
			require.NoError(t, err)
			require.Len(t, rest, 1)
			assert.Equal(t, []string{"stretching"}, rest[0].Activities)

			value, ok, err := dst.store.GetValue(ctx, "free_rest_day.last_used")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2026-03-14", value)

			markers, err := dst.store.Markers(ctx, "u1")
			require.NoError(t, err)
			assert.Len(t, markers, 3)
		})
	}
}

func TestImport_TwiceSkipsRestLog(t *testing.T) {
	ctx := context.Background()
	src := setupTestEnv(t)
	populate(t, src)

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	_, err := Export(ctx, src.db, ExportOptions{Path: path})
	require.NoError(t, err)

	// Importing into the source database changes nothing but versions.
	res, err := Import(ctx, src.db, src.mapper, ImportOptions{Path: path})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 0, res.RestDays)
	assert.Equal(t, 1, res.Skipped)

	rest, err := src.store.RestDays(ctx)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	n, err := src.store.Count(ctx, schema.CollectionSavedWorkouts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImport_BindingConflict(t *testing.T) {
	ctx := context.Background()
	src := setupTestEnv(t)
	bound, _ := populate(t, src)

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	_, err := Export(ctx, src.db, ExportOptions{Path: path})
	require.NoError(t, err)

	dst := setupTestEnv(t)
	require.NoError(t, dst.mapper.Bind(ctx, bound.ID, schema.RemoteID("srv-other")))

	res, err := Import(ctx, dst.db, dst.mapper, ImportOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], bound.ID.String())

	remoteID, err := dst.mapper.Resolve(ctx, bound.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RemoteID("srv-other"), remoteID, "existing binding kept")
}

func TestImport_SavedWorkoutLimit(t *testing.T) {
	ctx := context.Background()
	src := setupTestEnv(t)
	populate(t, src)

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	_, err := Export(ctx, src.db, ExportOptions{Path: path})
	require.NoError(t, err)

	dst := setupTestEnv(t)
	for i := 0; i < schema.MaxSavedWorkouts; i++ {
		_, err := dst.store.CreateSavedWorkout(ctx, &schema.SavedWorkout{Name: "W"})
		require.NoError(t, err)
	}

	res, err := Import(ctx, dst.db, dst.mapper, ImportOptions{Path: path})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "limit")

	n, err := dst.store.Count(ctx, schema.CollectionSavedWorkouts)
	require.NoError(t, err)
	assert.Equal(t, schema.MaxSavedWorkouts, n)
}

func TestImport_DryRun(t *testing.T) {
	ctx := context.Background()
	src := setupTestEnv(t)
	populate(t, src)

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	_, err := Export(ctx, src.db, ExportOptions{Path: path})
	require.NoError(t, err)

	dst := setupTestEnv(t)
	res, err := Import(ctx, dst.db, dst.mapper, ImportOptions{Path: path, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Records)
	assert.Equal(t, 1, res.Bindings)

	counts, err := dst.db.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
	bindings, err := dst.mapper.Bindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, bindings)
}

func TestImport_InvalidEntries(t *testing.T) {
	ctx := context.Background()
	dst := setupTestEnv(t)

	lines := []string{
		`{"kind":"record","collection":"saved_workouts","id":"local:a","data":{"id":"local:b","name":"x","emoji":"x","exercises":[],"created_at":"2026-03-14T00:00:00Z"}}`,
		`{"kind":"record","collection":"sessions","id":"local:s","data":{"id":"local:s","name":""}}`,
		`{"kind":"binding","local_id":"nope","database_id":"1"}`,
		`{"kind":"value","key":"","value":"x"}`,
		`{"kind":"mystery"}`,
		``,
		`{"kind":"value","key":"k","value":"v"}`,
	}
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644))

	res, err := Import(ctx, dst.db, dst.mapper, ImportOptions{Path: path})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 5)
	assert.Equal(t, 1, res.Values)
	assert.Equal(t, 0, res.Records)
}

func TestReadFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"kind\":\"value\"}\n{oops\n"), 0644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("a.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("a.YML"))
	assert.Equal(t, FormatJSONL, FormatFor("a.jsonl"))
	assert.Equal(t, FormatJSONL, FormatFor("backup"))
}
