package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	return ss
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ss := newTestSQLite(t)

	if err := ss.Create("rooms/AAAAAA", newTestDoc()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := ss.WriteFields("rooms/AAAAAA", map[string]any{
		"votes/Ana": "Bo",
	}); err != nil {
		t.Fatalf("nested write failed: %v", err)
	}

	var doc testDoc
	ok, err := ss.Read("rooms/AAAAAA", &doc)
	if err != nil || !ok {
		t.Fatalf("read failed: ok=%v err=%v", ok, err)
	}
	if doc.Votes["Ana"] != "Bo" {
		t.Fatalf("nested field lost: %+v", doc.Votes)
	}
}

func TestSQLiteStore_ConditionalWrite(t *testing.T) {
	ss := newTestSQLite(t)

	if err := ss.Create("rooms/AAAAAA", newTestDoc()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	guard := map[string]any{"phaseVersion": 0}

	if err := ss.WriteFieldsIf("rooms/AAAAAA", guard, map[string]any{
		"phaseVersion": 1,
	}); err != nil {
		t.Fatalf("first conditional write should win: %v", err)
	}

	if err := ss.WriteFieldsIf("rooms/AAAAAA", guard, map[string]any{
		"phaseVersion": 2,
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale conditional write should conflict, got %v", err)
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")

	ss, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := ss.Create("rooms/AAAAAA", newTestDoc()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := ss.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	var doc testDoc
	ok, err := reopened.Read("rooms/AAAAAA", &doc)
	if err != nil || !ok {
		t.Fatalf("doc lost across restart: ok=%v err=%v", ok, err)
	}
	if doc.Phase != "LOBBY" {
		t.Fatalf("doc corrupted across restart: %+v", doc)
	}
}

func TestSQLiteStore_SubscribeDelivers(t *testing.T) {
	ss := newTestSQLite(t)

	if err := ss.Create("rooms/AAAAAA", newTestDoc()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sub := ss.Subscribe("rooms/AAAAAA")
	defer sub.Cancel()

	if snap := recvSnapshot(t, sub); !snap.Exists() {
		t.Fatalf("initial snapshot should exist")
	}

	if err := ss.WriteFields("rooms/AAAAAA", map[string]any{
		"phase": "REVEAL",
	}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var doc testDoc
	if err := recvSnapshot(t, sub).Decode(&doc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if doc.Phase != "REVEAL" {
		t.Fatalf("committed change not delivered, got %q", doc.Phase)
	}
}
