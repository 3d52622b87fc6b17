package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"rolewatch/internal/listing"
	logx "rolewatch/pkg/logx"
)

func newSnaps(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := NewSnapshotStore(t.TempDir(), logx.Nop())
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newSnaps(t)

	in := []listing.Record{
		{ID: "1", CompanyName: "Acme", Active: listing.LooseOf(true)},
		{ID: "2", CompanyName: "Globex", Active: listing.LooseOf("false")},
	}
	if err := s.Save("main", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := s.Load("main")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 || out[0].ID != "1" || out[1].CompanyName != "Globex" {
		t.Fatalf("round trip lost data: %+v", out)
	}
	if out[0].IsActive() != true || out[1].IsActive() != false {
		t.Fatalf("flags did not survive the round trip")
	}
}

func TestSnapshotMissingFileIsFresh(t *testing.T) {
	s := newSnaps(t)

	out, err := s.Load("nothing")
	if err != nil {
		t.Fatalf("missing snapshot must not error: %v", err)
	}
	if out != nil {
		t.Fatalf("missing snapshot should load as nil, got %v", out)
	}
}

func TestSnapshotSaveKeepsBackup(t *testing.T) {
	s := newSnaps(t)

	if err := s.Save("main", []listing.Record{{ID: "1"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save("main", []listing.Record{{ID: "2"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(s.BackupPath("main")); err != nil {
		t.Fatalf("backup of the prior snapshot missing: %v", err)
	}
	out, err := s.Load("main")
	if err != nil || len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("live snapshot should hold the latest save: %+v, %v", out, err)
	}
}

func TestSnapshotCorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSnapshotStore(dir, logx.Nop())
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := s.Load("main"); err == nil {
		t.Fatalf("corrupt snapshot must surface an error")
	}
}

func TestSnapshotStat(t *testing.T) {
	s := newSnaps(t)

	st, err := s.Stat("main")
	if err != nil {
		t.Fatalf("Stat on missing snapshot: %v", err)
	}
	if st.Modified != 0 || st.Records != 0 {
		t.Fatalf("missing snapshot should stat empty, got %+v", st)
	}

	if err := s.Save("main", []listing.Record{{ID: "1"}, {ID: "2"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err = s.Stat("main")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Records != 2 || st.Size == 0 || st.Modified == 0 {
		t.Fatalf("unexpected stat: %+v", st)
	}
}
