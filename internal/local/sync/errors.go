package sync

import (
	"errors"
	"fmt"

	"github.com/liftlog/repsync/internal/local/schema"
)

// ErrSyncRequired matches every *SyncRequiredError.
var ErrSyncRequired = errors.New("sync required")

// SyncRequiredError means a dependent operation needed a remote id that
// could not be resolved within the retry budget. The local record is intact
// and later syncs will keep trying.
type SyncRequiredError struct {
	LocalID  schema.ID
	Attempts int
	Online   bool
}

func (e *SyncRequiredError) Error() string {
	if !e.Online {
		return fmt.Sprintf("sync required: %s is not synced and the remote is unreachable", e.LocalID)
	}
	return fmt.Sprintf("sync required: %s not synced after %d attempts", e.LocalID, e.Attempts)
}

// Is makes errors.Is(err, ErrSyncRequired) true.
func (e *SyncRequiredError) Is(target error) bool {
	return target == ErrSyncRequired
}
