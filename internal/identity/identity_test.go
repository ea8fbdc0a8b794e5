package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
)

func setupTestMapper(t *testing.T) *Mapper {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.InitSchema())

	return New(database, nil)
}

func TestResolve_Unresolved(t *testing.T) {
	m := setupTestMapper(t)

	_, err := m.Resolve(context.Background(), schema.NewLocalID())
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolve_RejectsRemoteID(t *testing.T) {
	m := setupTestMapper(t)

	_, err := m.Resolve(context.Background(), schema.RemoteID("42"))
	assert.ErrorIs(t, err, schema.ErrInvalid)
}

func TestBind_SameValueIsNoop(t *testing.T) {
	m := setupTestMapper(t)
	ctx := context.Background()
	local := schema.NewLocalID()

	require.NoError(t, m.Bind(ctx, local, schema.RemoteID("42")))
	require.NoError(t, m.Bind(ctx, local, schema.RemoteID("42")))

	got, err := m.Resolve(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, schema.RemoteID("42"), got)
}

func TestBind_DifferentValueConflicts(t *testing.T) {
	m := setupTestMapper(t)
	ctx := context.Background()
	local := schema.NewLocalID()

	require.NoError(t, m.Bind(ctx, local, schema.RemoteID("42")))

	err := m.Bind(ctx, local, schema.RemoteID("43"))
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, schema.RemoteID("42"), conflict.Existing)
	assert.Equal(t, schema.RemoteID("43"), conflict.Attempted)

	got, err := m.Resolve(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, schema.RemoteID("42"), got, "original mapping left intact")
}

func TestBind_RequiresTaggedIDs(t *testing.T) {
	m := setupTestMapper(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.Bind(ctx, schema.RemoteID("1"), schema.RemoteID("2")), schema.ErrInvalid)
	assert.ErrorIs(t, m.Bind(ctx, schema.NewLocalID(), schema.LocalID("2")), schema.ErrInvalid)
}

func TestBind_ConcurrentRace(t *testing.T) {
	m := setupTestMapper(t)
	ctx := context.Background()
	local := schema.NewLocalID()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Bind(ctx, local, schema.RemoteID(fmt.Sprintf("r%d", i)))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, IsConflict(err), "loser must see a conflict, got %v", err)
	}
	assert.Equal(t, 1, winners)

	bindings, err := m.Bindings(ctx)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestPushedVersion(t *testing.T) {
	m := setupTestMapper(t)
	ctx := context.Background()
	local := schema.NewLocalID()

	v, err := m.PushedVersion(ctx, local)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, m.MarkPushed(ctx, local, 2))
	v, err = m.PushedVersion(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}
