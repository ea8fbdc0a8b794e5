package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/liftlog/repsync/internal/derived"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	localsync "github.com/liftlog/repsync/internal/local/sync"
)

// RecordUpdateData describes one committed store write.
type RecordUpdateData struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Action     string `json:"action"` // create, update, delete
	Version    int64  `json:"version,omitempty"`
}

// EntityBoundData links a local id to the remote id it was assigned.
type EntityBoundData struct {
	LocalID  string `json:"local_id"`
	RemoteID string `json:"remote_id"`
}

// StatsData is a snapshot of local state.
type StatsData struct {
	SavedWorkouts        int  `json:"saved_workouts"`
	Sessions             int  `json:"sessions"`
	Pending              int  `json:"pending"`
	Dirty                int  `json:"dirty"`
	Bound                int  `json:"bound"`
	Streak               int  `json:"streak"`
	FreeRestDayAvailable bool `json:"free_rest_day_available"`
}

// StatsFunc computes a stats snapshot.
type StatsFunc func(ctx context.Context) (*StatsData, error)

// Handler turns store changes and sync progress into dashboard messages.
// It implements the sync engine's Notifier, and OnRecordChange matches the
// store's OnChange hook. None of its event methods block.
type Handler struct {
	server *Server
	stats  StatsFunc
	logger *log.Logger

	refresh chan struct{}

	mu   sync.Mutex
	last StatsData
}

var _ localsync.Notifier = (*Handler)(nil)

// NewHandler creates a handler that broadcasts through server. stats may be
// nil, in which case no stats messages are sent.
func NewHandler(server *Server, stats StatsFunc, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	return &Handler{
		server:  server,
		stats:   stats,
		logger:  logger,
		refresh: make(chan struct{}, 1),
	}
}

// Run recomputes and broadcasts stats whenever an event asks for it, until
// ctx is cancelled. Requests that arrive while a refresh runs are coalesced.
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.refresh:
			if err := h.RefreshStats(ctx); err != nil && ctx.Err() == nil {
				h.logger.Printf("Failed to refresh stats: %v", err)
			}
		}
	}
}

// RefreshStats computes a snapshot now and broadcasts it.
func (h *Handler) RefreshStats(ctx context.Context) error {
	if h.stats == nil {
		return nil
	}
	st, err := h.stats(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.last = *st
	h.mu.Unlock()

	h.send(MessageTypeStats, st)
	return nil
}

// GetStats returns the latest snapshot.
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// OnRecordChange handles a committed store write.
func (h *Handler) OnRecordChange(c store.Change) {
	h.send(MessageTypeRecordUpdate, RecordUpdateData{
		Collection: c.Collection,
		ID:         c.ID,
		Action:     string(c.Op),
		Version:    c.Version,
	})
	h.requestStats()
}

// SyncStarted handles the start of a sync pass.
func (h *Handler) SyncStarted() {
	h.send(MessageTypeSyncStarted, nil)
}

// EntityBound handles a new identity binding.
func (h *Handler) EntityBound(localID, remoteID schema.ID) {
	h.logger.Printf("Bound %s -> %s", localID, remoteID)
	h.send(MessageTypeEntityBound, EntityBoundData{
		LocalID:  localID.String(),
		RemoteID: remoteID.String(),
	})
}

// SyncFinished handles the end of a sync pass.
func (h *Handler) SyncFinished(res *localsync.Result) {
	h.logger.Printf("Sync %s: pushed=%d updated=%d failed=%d pending=%d in %v",
		res.Status, res.Pushed, res.Updated, res.Failed, res.Pending, res.Duration)
	h.send(MessageTypeSyncComplete, res)
	h.requestStats()
}

func (h *Handler) requestStats() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

func (h *Handler) send(typ MessageType, v any) {
	msg := Message{Type: typ, Timestamp: time.Now()}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			h.logger.Printf("Failed to marshal %s data: %v", typ, err)
			return
		}
		msg.Data = data
	}
	h.server.Broadcast(msg)
}

// StoreStats returns a StatsFunc over the local store, the syncer's status
// report, and the derived calculators.
func StoreStats(st *store.Store, syncer localsync.Syncer, calc *derived.Calculator, userID string) StatsFunc {
	return func(ctx context.Context) (*StatsData, error) {
		var out StatsData
		var err error

		if out.SavedWorkouts, err = st.Count(ctx, schema.CollectionSavedWorkouts); err != nil {
			return nil, err
		}
		if out.Sessions, err = st.Count(ctx, schema.CollectionSessions); err != nil {
			return nil, err
		}

		report, err := syncer.Status(ctx)
		if err != nil {
			return nil, err
		}
		out.Pending = len(report.Pending)
		out.Dirty = len(report.Dirty)
		out.Bound = report.Bound

		if out.Streak, err = calc.CurrentStreak(ctx, userID); err != nil {
			return nil, err
		}
		if out.FreeRestDayAvailable, err = calc.IsFreeRestDayAvailable(ctx); err != nil {
			return nil, err
		}
		return &out, nil
	}
}
