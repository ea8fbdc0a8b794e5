package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlog/repsync/internal/local/schema"
)

// fakeServer is a create-or-get session endpoint keyed by Idempotency-Key.
type fakeServer struct {
	mu      sync.Mutex
	byKey   map[string]string
	updates map[string]SessionPayload
	posts   int
	auth    []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{byKey: map[string]string{}, updates: map[string]SessionPayload{}}
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == "/sessions":
		f.posts++
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			http.Error(w, "missing idempotency key", http.StatusBadRequest)
			return
		}
		id, ok := f.byKey[key]
		if !ok {
			id = "srv-" + key
			f.byKey[key] = id
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	case r.Method == http.MethodPut:
		var p SessionPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates[r.URL.Path] = p
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func testSession() *schema.WorkoutSession {
	return &schema.WorkoutSession{
		ID:          schema.LocalID("abc"),
		Name:        "Push day",
		CompletedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestPushSession_IdempotentByLocalID(t *testing.T) {
	f := newFakeServer()
	c := newTestClient(t, f)
	ctx := context.Background()
	payload := NewSessionPayload(testSession())

	first, err := c.PushSession(ctx, payload)
	require.NoError(t, err)
	second, err := c.PushSession(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "srv-session:local:abc", first)
	assert.Len(t, f.byKey, 1)
	assert.Equal(t, "Bearer secret", f.auth[0])
}

func TestUpdateSession(t *testing.T) {
	f := newFakeServer()
	c := newTestClient(t, f)

	payload := NewSessionPayload(testSession())
	payload.Notes = "felt strong"
	require.NoError(t, c.UpdateSession(context.Background(), "srv/1", payload))

	got, ok := f.updates["/sessions/srv/1"]
	require.True(t, ok, "updates: %v", f.updates)
	assert.Equal(t, "felt strong", got.Notes)
}

func TestProbe(t *testing.T) {
	c := newTestClient(t, newFakeServer())
	assert.NoError(t, c.Probe(context.Background()))
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))

	_, err := c.PushSession(context.Background(), NewSessionPayload(testSession()))
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "overloaded", se.Body)
	assert.True(t, se.Temporary())
}

func TestPushSession_MissingID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.PushSession(context.Background(), NewSessionPayload(testSession()))
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestNewSessionPayload(t *testing.T) {
	s := testSession()
	workout := schema.LocalID("w1")
	s.SavedWorkoutID = &workout

	p := NewSessionPayload(s)
	assert.Equal(t, "local:abc", p.LocalID)
	assert.Equal(t, "local:w1", p.SavedWorkoutID)
	assert.Nil(t, p.StartedAt)
}
