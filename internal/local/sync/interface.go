package sync

import (
	"context"
	"time"

	"github.com/liftlog/repsync/internal/local/schema"
)

// Syncer reconciles local records with the remote system of record.
//
// Local writes never wait on the syncer. It is demand-driven: the user asks
// for a sync, or an operation needs a remote id that does not exist yet.
// Per-entity failures are logged and retried on the next pass; they never
// abort a batch and never touch local data.
type Syncer interface {
	// ManualSync pushes every pending entity and every bound entity with
	// unpushed edits.
	//
	// When the remote is unreachable it returns a Skipped result at once
	// and makes no remote calls. Concurrent calls never push the same
	// entity twice.
	//
	// Example:
	//   res, err := syncer.ManualSync(ctx)
	ManualSync(ctx context.Context) (*Result, error)

	// EnsureResolved returns the remote id of localID, syncing on demand.
	//
	// Each attempt triggers a sync and waits for it or the grace window,
	// whichever comes first, then re-checks the identity mapper. After the
	// configured attempts it returns a *SyncRequiredError. The triggered
	// sync keeps running after the caller gives up.
	//
	// Example:
	//   remoteID, err := syncer.EnsureResolved(ctx, session.ID)
	//   if errors.Is(err, sync.ErrSyncRequired) {
	//       // ask the user to try again shortly
	//   }
	EnsureResolved(ctx context.Context, localID schema.ID) (schema.ID, error)

	// Status reports what the next sync would do, without remote calls.
	Status(ctx context.Context) (*Report, error)
}

// Reachability is the online signal consulted before remote work.
type Reachability interface {
	IsOnline(ctx context.Context) bool
}

// Notifier observes sync progress. Methods must not block.
type Notifier interface {
	SyncStarted()
	EntityBound(localID, remoteID schema.ID)
	SyncFinished(res *Result)
}

// ResultStatus says whether a sync pass ran.
type ResultStatus string

const (
	// StatusSkipped means the remote was unreachable; nothing was pushed.
	StatusSkipped ResultStatus = "skipped"
	// StatusCompleted means the pass ran. Some entities may have failed.
	StatusCompleted ResultStatus = "completed"
)

// Result summarizes one sync pass.
type Result struct {
	Status    ResultStatus  `json:"status"`
	Pushed    int           `json:"pushed"`
	Updated   int           `json:"updated"`
	Failed    int           `json:"failed"`
	Conflicts int           `json:"conflicts"`
	Pending   int           `json:"pending"`
	Duration  time.Duration `json:"duration"`
}

// Report is the sync state of local records.
type Report struct {
	Pending []schema.ID `json:"pending"`
	Dirty   []schema.ID `json:"dirty"`
	Bound   int         `json:"bound"`
}
