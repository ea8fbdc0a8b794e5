// Package schema defines the record types persisted by the local store.
//
// # Overview
//
// Every record is stored as one JSON document keyed by collection and id.
// The store owns persistence; this package owns shapes, limits and
// validation so that the same rules apply whether a record is created from
// the CLI, imported from a TOML template, or dropped into the daemon inbox
// by a companion device.
//
// # Collections
//
//   - saved_workouts - SavedWorkout templates (max 10, max 20 exercises each)
//   - sessions       - completed WorkoutSession records, pushed to the remote
//   - calendar       - CalendarMarker, one per user per local day
//
// Rest-day completions are not a collection; they live in an append-only
// log (see store.LogRestDay).
//
// # Identifiers
//
// Identifiers are tagged: an ID is either Local (minted on this device) or
// Remote (assigned by the system of record). The text form always carries
// the tag:
//
//	local:3f1c2b8e-0d7a-4c55-9a51-5b0f5a3a6c10
//	remote:8812
//
// Untagged strings are rejected by ParseID; there is no guessing based on
// whether a value "looks numeric".
//
// # Example session file (daemon inbox)
//
//	{
//	  "id": "local:3f1c2b8e-0d7a-4c55-9a51-5b0f5a3a6c10",
//	  "name": "Push day",
//	  "exercises": [{"name": "Bench press", "sets": 5, "reps": 5, "weight": 80}],
//	  "started_at": "2026-01-10T07:00:00Z",
//	  "completed_at": "2026-01-10T08:05:00Z"
//	}
package schema
