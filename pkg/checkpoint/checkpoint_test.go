package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tokenimages/pkg/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(t.TempDir(), "base", "0xABC", logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return mgr
}

func TestCheckpointManager(t *testing.T) {
	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, err := mgr.Create("base", "0xABC")
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.Chain != "base" || cp.Contract != "0xABC" {
			t.Errorf("Unexpected checkpoint identity: %+v", cp)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Version != Version {
			t.Errorf("Expected version %d, got %d", Version, loaded.Version)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, err := mgr.Load()
		if err != nil {
			t.Fatalf("Expected no error for missing checkpoint, got %v", err)
		}
		if cp != nil {
			t.Errorf("Expected nil checkpoint, got %+v", cp)
		}
	})

	t.Run("UpdateProgress", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, err := mgr.Create("base", "0xABC")
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if err := mgr.UpdateProgress(cp, "c1", 1, []Entry{{"1", "a"}, {"2", "b"}}); err != nil {
			t.Fatalf("Failed to update progress: %v", err)
		}
		if err := mgr.UpdateProgress(cp, "c2", 2, []Entry{{"3", "c"}}); err != nil {
			t.Fatalf("Failed to update progress: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded.Cursor != "c2" {
			t.Errorf("Expected cursor c2, got %s", loaded.Cursor)
		}
		if loaded.Attempts != 2 {
			t.Errorf("Expected 2 attempts, got %d", loaded.Attempts)
		}
		if len(loaded.Entries) != 3 || loaded.Entries[2].TokenID != "3" {
			t.Errorf("Expected entries to accumulate in order, got %+v", loaded.Entries)
		}
	})

	t.Run("MarkDone", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, _ := mgr.Create("base", "0xABC")
		if err := mgr.MarkDone(cp); err != nil {
			t.Fatalf("Failed to mark done: %v", err)
		}

		loaded, _ := mgr.Load()
		if !loaded.Done {
			t.Error("Expected checkpoint to be marked done")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr := newTestManager(t)

		if _, err := mgr.Create("base", "0xABC"); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}

		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting a missing checkpoint should not fail: %v", err)
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		mgr := newTestManager(t)

		if err := os.WriteFile(mgr.Path(), []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write corrupt file: %v", err)
		}
		if _, err := mgr.Load(); err == nil {
			t.Error("Expected corrupt checkpoint to fail loading")
		}
	})

	t.Run("VersionMismatch", func(t *testing.T) {
		mgr := newTestManager(t)

		if err := os.WriteFile(mgr.Path(), []byte(`{"version": 99}`), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := mgr.Load(); err == nil || !strings.Contains(err.Error(), "version 99") {
			t.Errorf("Expected version error, got %v", err)
		}
	})
}

func TestCheckpointFileName(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "checkpoints"), "monad-testnet", "0xAbC/../x", logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	want := filepath.Join(dir, "checkpoints", "monad-testnet_0xabc_.._x.checkpoint.json")
	if mgr.Path() != want {
		t.Errorf("Expected path %s, got %s", want, mgr.Path())
	}
}
