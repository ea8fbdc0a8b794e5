package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupInbox creates an empty inbox directory.
func setupInbox(t *testing.T) string {
	t.Helper()

	inbox := filepath.Join(t.TempDir(), "inbox")
	if err := os.MkdirAll(inbox, 0755); err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	return inbox
}

// startWatcher starts a watcher on inbox and stops it at test end.
func startWatcher(t *testing.T, inbox string) *FileWatcher {
	t.Helper()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	t.Cleanup(func() { fw.Stop() })

	if err := fw.Start(inbox); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return fw
}

func waitEvent(t *testing.T, fw *FileWatcher) FileEvent {
	t.Helper()

	select {
	case event := <-fw.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
	}
	return FileEvent{}
}

func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	inbox := setupInbox(t)

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(inbox); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}

	if _, ok := <-fw.Events(); ok {
		t.Error("Events channel should be closed after Stop()")
	}
}

func TestFileWatcher_StartAlreadyRunning(t *testing.T) {
	inbox := setupInbox(t)
	fw := startWatcher(t, inbox)

	if err := fw.Start(inbox); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}
}

func TestFileWatcher_StartMissingDir(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after a failed Start()")
	}
}

func TestFileWatcher_SessionFileCreated(t *testing.T) {
	inbox := setupInbox(t)
	fw := startWatcher(t, inbox)

	path := filepath.Join(inbox, "leg-day.json")
	if err := os.WriteFile(path, []byte(`{"name":"Leg day"}`), 0644); err != nil {
		t.Fatalf("Failed to write session file: %v", err)
	}

	event := waitEvent(t, fw)
	if event.Op != OpCreate {
		t.Errorf("Expected OpCreate, got %v", event.Op)
	}
	if filepath.Base(event.Path) != "leg-day.json" {
		t.Errorf("Expected leg-day.json, got %s", filepath.Base(event.Path))
	}
}

func TestFileWatcher_SessionFileModified(t *testing.T) {
	inbox := setupInbox(t)

	path := filepath.Join(inbox, "leg-day.json")
	if err := os.WriteFile(path, []byte(`{"name":"Leg day"}`), 0644); err != nil {
		t.Fatalf("Failed to write session file: %v", err)
	}

	fw := startWatcher(t, inbox)

	// Give watcher time to stabilize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"name":"Leg day","notes":"heavy"}`), 0644); err != nil {
		t.Fatalf("Failed to update session file: %v", err)
	}

	if event := waitEvent(t, fw); event.Op != OpModify {
		t.Errorf("Expected OpModify, got %v", event.Op)
	}
}

func TestFileWatcher_SessionFileDeleted(t *testing.T) {
	inbox := setupInbox(t)

	path := filepath.Join(inbox, "leg-day.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write session file: %v", err)
	}

	fw := startWatcher(t, inbox)
	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to delete session file: %v", err)
	}

	if event := waitEvent(t, fw); event.Op != OpDelete {
		t.Errorf("Expected OpDelete, got %v", event.Op)
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	inbox := setupInbox(t)
	fw := startWatcher(t, inbox)

	for _, name := range []string{"notes.txt", ".hidden.json", "partial.json.tmp"} {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(inbox, ImportedDir), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	// A session file written last must be the first event seen.
	if err := os.WriteFile(filepath.Join(inbox, "real.json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write session file: %v", err)
	}

	event := waitEvent(t, fw)
	if filepath.Base(event.Path) != "real.json" {
		t.Errorf("Expected real.json first, got %s", filepath.Base(event.Path))
	}
}

func TestEventOp_String(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
