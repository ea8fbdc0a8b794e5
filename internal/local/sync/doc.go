// Package sync reconciles the local record store with the remote system of
// record.
//
// Overview
//
// Records are written locally first and carry local ids. The syncer pushes
// them to the remote when it is reachable and binds each local id to the id
// the remote assigns:
//
//	Local Record Store (sessions)
//	     │  scan: unbound → pending, bound but edited → dirty
//	     ▼
//	  Syncer ──── IsOnline? ──── Reachability Monitor
//	     │
//	     ├── pending → remote.PushSession → identity.Bind
//	     └── dirty   → remote.UpdateSession
//
// Usage
//
//	syncer := sync.New(st, mapper, monitor, client)
//
//	// User pulled to refresh
//	res, err := syncer.ManualSync(ctx)
//
//	// A post needs the remote id of a just-completed session
//	remoteID, err := syncer.EnsureResolved(ctx, session.ID)
//
// Error Handling
//
// The syncer is resilient to individual entity failures:
//
//   - An unreachable remote yields a Skipped result, not an error
//   - A failed push is logged and the entity stays pending for the next pass
//   - An identity conflict is logged loudly and the original binding kept
//   - Only EnsureResolved surfaces a failure, as ErrSyncRequired
//
// Concurrency
//
// Pushes within a pass run concurrently up to Config.Concurrency. Work on one
// local id is collapsed across concurrent passes and the identity mapper is
// re-checked immediately before each push, so an entity is pushed once no
// matter how many passes race.
//
// Edits made while a push is in flight win: the record's version moves past
// the pushed version and the next pass sends it as an update.
package sync
