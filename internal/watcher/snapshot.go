package watcher

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"rolewatch/internal/listing"
	logx "rolewatch/pkg/logx"
)

// SnapshotStore keeps one pretty-printed JSON array per feed: the full
// listing set as of the last successful fetch. Snapshots are replaced
// wholesale; there is no partial merge.
//
// The write path is crash-safe the blunt way: the prior file is renamed to
// <path>.backup before the new one is written, and restored if the write
// fails. A crash mid-write therefore never leaves a feed with zero baseline
// data, which would make the next diff announce the entire feed as new.
type SnapshotStore struct {
	dir string
	log logx.Logger
}

func NewSnapshotStore(dir string, log logx.Logger) (*SnapshotStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &SnapshotStore{dir: dir, log: log}, nil
}

func (s *SnapshotStore) path(feed string) string {
	return filepath.Join(s.dir, feed+".json")
}

// BackupPath returns where Save parks the previous snapshot.
func (s *SnapshotStore) BackupPath(feed string) string {
	return s.path(feed) + ".backup"
}

// Load reads the stored snapshot for a feed. A missing file is not an
// error: the feed is simply new and everything in it will classify as New.
func (s *SnapshotStore) Load(feed string) ([]listing.Record, error) {
	b, err := os.ReadFile(s.path(feed))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []listing.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Save replaces the feed's snapshot with records.
func (s *SnapshotStore) Save(feed string, records []listing.Record) error {
	// Marshal before touching the old file so an encode error costs nothing.
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	path := s.path(feed)
	backup := s.BackupPath(feed)

	hadPrior := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return err
		}
		hadPrior = true
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		if hadPrior {
			if rerr := os.Rename(backup, path); rerr != nil {
				s.log.Error("snapshot backup restore failed",
					logx.String("feed", feed), logx.Err(rerr))
			} else {
				s.log.Warn("snapshot write failed; backup restored",
					logx.String("feed", feed))
			}
		}
		return err
	}

	s.log.Debug("snapshot saved",
		logx.String("feed", feed), logx.Int("records", len(records)))
	return nil
}

// Stat describes a stored snapshot for status output.
type Stat struct {
	Feed     string
	Records  int
	Size     int64
	Modified int64 // unix seconds, 0 when the file is missing
}

// Stat reports snapshot file statistics without loading it into the cycle.
func (s *SnapshotStore) Stat(feed string) (Stat, error) {
	st := Stat{Feed: feed}
	fi, err := os.Stat(s.path(feed))
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.Size = fi.Size()
	st.Modified = fi.ModTime().Unix()

	records, err := s.Load(feed)
	if err != nil {
		return st, err
	}
	st.Records = len(records)
	return st, nil
}
