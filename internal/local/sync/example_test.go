package sync_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/liftlog/repsync/internal/identity"
	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	"github.com/liftlog/repsync/internal/local/sync"
	"github.com/liftlog/repsync/internal/reach"
	"github.com/liftlog/repsync/internal/remote"
)

// This example wires the syncer against an HTTP remote.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	database, err := db.Open(".repsync/repsync.db")
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		log.Fatal(err)
	}

	client, err := remote.New(remote.Config{BaseURL: "https://api.example.com", Token: "token"})
	if err != nil {
		log.Fatal(err)
	}

	syncer := sync.New(store.New(database), identity.New(database, nil), reach.New(client), client)

	res, err := syncer.ManualSync(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("sync %s: pushed=%d pending=%d\n", res.Status, res.Pushed, res.Pending)
}

// This example resolves the remote id of a session before referencing it.
func ExampleSyncer_EnsureResolved() {
	var syncer sync.Syncer // from sync.New
	var sessionID schema.ID

	remoteID, err := syncer.EnsureResolved(context.Background(), sessionID)
	if errors.Is(err, sync.ErrSyncRequired) {
		fmt.Println("Not synced yet, try again shortly")
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("attach post to", remoteID)
}
