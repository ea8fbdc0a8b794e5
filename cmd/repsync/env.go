package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/liftlog/repsync/internal/derived"
	"github.com/liftlog/repsync/internal/identity"
	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	localsync "github.com/liftlog/repsync/internal/local/sync"
	"github.com/liftlog/repsync/internal/reach"
	"github.com/liftlog/repsync/internal/remote"
)

// observer follows store writes and sync progress. The dashboard handler
// is the only implementation.
type observer interface {
	localsync.Notifier
	OnRecordChange(store.Change)
}

// env is everything a command needs, opened from the loaded config.
type env struct {
	db     *db.DB
	store  *store.Store
	mapper *identity.Mapper
	syncer localsync.Syncer
	calc   *derived.Calculator
	loc    *time.Location
	clock  clockwork.Clock
	online bool // a remote is configured
}

// openEnv opens the database and wires the components. obs may be nil.
func openEnv(obs observer) (*env, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	clock := clockwork.NewRealClock()

	storeCfg := store.Config{
		Clock:    clock,
		Location: loc,
		Logger:   logs.Logger("store"),
	}
	if obs != nil {
		storeCfg.OnChange = obs.OnRecordChange
	}
	st := store.NewWithConfig(database, storeCfg)
	mapper := identity.New(database, clock)

	var client remote.Client = offlineClient{}
	var prober reach.Prober = reach.Static(false)
	if cfg.RemoteConfigured() {
		hc, err := remote.New(remote.Config{
			BaseURL: cfg.Remote.URL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
		})
		if err != nil {
			database.Close()
			return nil, err
		}
		client, prober = hc, hc
	}

	monitor := reach.NewWithConfig(prober, reach.Config{
		TTL:     cfg.Reach.TTL,
		Timeout: cfg.Reach.Timeout,
		Clock:   clock,
		Logger:  logs.Logger("reach"),
	})

	syncCfg := localsync.Config{
		Concurrency: cfg.Sync.Concurrency,
		Retry: localsync.RetryPolicy{
			Attempts: cfg.Sync.Attempts,
			Grace:    cfg.Sync.Grace,
			Backoff:  cfg.Sync.Backoff,
		},
		Clock:  clock,
		Logger: logs.Logger("sync"),
	}
	if obs != nil {
		syncCfg.Notifier = obs
	}

	return &env{
		db:     database,
		store:  st,
		mapper: mapper,
		syncer: localsync.NewWithConfig(st, mapper, monitor, client, syncCfg),
		calc:   derived.New(st, clock, loc),
		loc:    loc,
		clock:  clock,
		online: cfg.RemoteConfigured(),
	}, nil
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

// mustOpenEnv is openEnv for commands that cannot continue without it.
func mustOpenEnv(obs observer) *env {
	e, err := openEnv(obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return e
}

// offlineClient stands in for the remote when none is configured. The
// reachability monitor reports offline, so it is never called.
type offlineClient struct{}

func (offlineClient) PushSession(context.Context, remote.SessionPayload) (string, error) {
	return "", remote.ErrNotConfigured
}

func (offlineClient) UpdateSession(context.Context, string, remote.SessionPayload) error {
	return remote.ErrNotConfigured
}

func (offlineClient) Probe(context.Context) error {
	return remote.ErrNotConfigured
}

// parseID accepts a tagged id ("local:<uuid>") or a bare local value.
func parseID(s string) (schema.ID, error) {
	if strings.Contains(s, ":") {
		return schema.ParseID(s)
	}
	if s == "" {
		return schema.ID{}, fmt.Errorf("id is required")
	}
	return schema.LocalID(s), nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
