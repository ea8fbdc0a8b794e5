// Package remote is the client for the remote system of record.
//
// Only the calls the sync engine needs are implemented: push a session
// (create-or-get, keyed by an idempotency token derived from the local id),
// update a pushed session, and a health probe.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liftlog/repsync/internal/local/schema"
)

// ErrNotConfigured is returned when no remote URL is set.
var ErrNotConfigured = errors.New("remote URL not configured")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// SessionPayload is the wire form of a pushed workout session.
type SessionPayload struct {
	LocalID         string                 `json:"local_id"`
	SavedWorkoutID  string                 `json:"saved_workout_id,omitempty"`
	Name            string                 `json:"name"`
	Exercises       []schema.ExerciseEntry `json:"exercises"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     time.Time              `json:"completed_at"`
	DurationSeconds int                    `json:"duration_seconds"`
	Notes           string                 `json:"notes,omitempty"`
}

// NewSessionPayload builds the payload for a local session.
func NewSessionPayload(s *schema.WorkoutSession) SessionPayload {
	p := SessionPayload{
		LocalID:         s.ID.String(),
		Name:            s.Name,
		Exercises:       s.Exercises,
		CompletedAt:     s.CompletedAt,
		DurationSeconds: s.DurationSeconds,
		Notes:           s.Notes,
	}
	if s.SavedWorkoutID != nil {
		p.SavedWorkoutID = s.SavedWorkoutID.String()
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		p.StartedAt = &started
	}
	return p
}

// IdempotencyKey returns the token that makes repeated pushes of one local
// session resolve to the same remote record.
func IdempotencyKey(localID string) string {
	return "session:" + localID
}

// Client is the remote collaborator as seen by the sync engine.
type Client interface {
	// PushSession creates the session remotely, or returns the id of the
	// session already created for the same local id.
	PushSession(ctx context.Context, payload SessionPayload) (string, error)

	// UpdateSession replaces a pushed session.
	UpdateSession(ctx context.Context, remoteID string, payload SessionPayload) error

	// Probe returns nil when the remote answers its health check.
	Probe(ctx context.Context) error
}

// Config holds HTTP client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// HTTPClient talks to the remote over HTTP/JSON.
type HTTPClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New creates an HTTP client.
func New(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote URL %q: scheme must be http or https", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{base: base, token: cfg.Token, http: hc}, nil
}

type pushResponse struct {
	ID string `json:"id"`
}

// PushSession implements Client.
func (c *HTTPClient) PushSession(ctx context.Context, payload SessionPayload) (string, error) {
	var out pushResponse
	headers := map[string]string{"Idempotency-Key": IdempotencyKey(payload.LocalID)}
	if err := c.do(ctx, http.MethodPost, "/sessions", headers, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("POST /sessions: response has no id")
	}
	return out.ID, nil
}

// UpdateSession implements Client.
func (c *HTTPClient) UpdateSession(ctx context.Context, remoteID string, payload SessionPayload) error {
	return c.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(remoteID), nil, payload, nil)
}

// Probe implements Client and reach.Prober.
func (c *HTTPClient) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
