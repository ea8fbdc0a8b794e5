// Package daemon runs the background side of repsync: it imports workout
// sessions that companion devices drop into an inbox directory and can keep
// the local store synced with the remote on an interval.
//
// # Architecture
//
// The daemon consists of two components:
//
//   - FileWatcher: inbox monitoring using fsnotify
//   - Daemon: debounces file events, imports sessions into the store, and
//     optionally runs the sync engine periodically
//
// # Inbox Layout
//
//	inbox/
//	  2026-03-14-push-day.json   waiting to be imported
//	  imported/                  sessions stored locally
//	  rejected/                  files that could not be parsed
//
// Each file holds one WorkoutSession as JSON. The id, duration, and
// completion time may be omitted; the daemon fills them in. Importing a
// session also marks its completion day as trained, exactly as completing a
// session from the CLI does. A file whose id is already stored is moved to
// imported/ without creating a second session.
//
// # Usage
//
//	d, err := daemon.NewWithConfig(st, syncer, inbox, &daemon.Config{
//	    UserID:           "me",
//	    DebounceInterval: 250 * time.Millisecond,
//	    SyncInterval:     time.Minute,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = d.Start(ctx) // blocks until ctx is cancelled
//
// # File Watching
//
// FileWatcher reports create, modify, and delete events for *.json files
// directly in the inbox. Dot files, temp files, and subdirectories are
// ignored. Events are delivered on Events() and watcher errors on Errors();
// both channels are closed by Stop().
//
// # Debouncing
//
// A file is imported once no event has been seen for it for
// DebounceInterval, so a device still writing a file is not read half way.
//
// # Error Handling
//
// A failure to import one file is logged and does not stop the daemon.
// Periodic sync failures are logged and retried on the next tick. Start only
// returns an error when the inbox cannot be created or watched.
//
// # Graceful Shutdown
//
// Cancel the context passed to Start, or call Stop(). Stop waits for the
// event loop, the debounce loop, and the sync loop to exit.
package daemon
