// Package postcache is the durable per-author completion cache (spec.md §4.4,
// C4). It records, per post, which filter categories have already been
// downloaded and at which remote modification timestamp, so a re-run only
// does the work a prior run left undone.
//
// It is backed by an embedded SQLite database opened with database/sql and
// the pure-Go modernc.org/sqlite driver — the same driver/API pair the
// teacher repo uses to talk to Plex's own SQLite database
// (internal/plex/dvr.go in the reference tree this package was adapted
// from), here repurposed as the archive's own store instead of a foreign
// one.
package postcache

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
)

// CacheError wraps a failure to open or query the database (spec.md §7:
// fatal, instructs the user to run with --clean-cache).
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("postcache: %s: %v", e.Op, e.Err) }
func (e *CacheError) Unwrap() error { return e.Err }

// Store is the per-author cache database. One Store is opened per author
// run; it is not shared across authors and is only ever used from the
// single logical execution line described in spec.md §5.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS post_cache (
	post_id     TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	last_updated TEXT NOT NULL,
	categories  TEXT NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CacheError{Op: "open " + path, Err: err}
	}
	db.SetMaxOpenConns(1) // single logical execution line (spec.md §5); avoid SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &CacheError{Op: "create schema", Err: err}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	title      string
	lastUpdate string
	categories category.Set
}

func (s *Store) lookup(postID string) (*record, error) {
	row := s.db.QueryRow(
		`SELECT title, last_updated, categories FROM post_cache WHERE post_id = ?`, postID)
	var r record
	var cats string
	err := row.Scan(&r.title, &r.lastUpdate, &cats)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &CacheError{Op: "lookup " + postID, Err: err}
	}
	r.categories = category.ParseSet(cats)
	return &r, nil
}

// GetMissing implements spec.md §4.4's get_missing operation: it returns the
// subset of requested that still needs to be downloaded.
//
// If no record exists, the stored last_updated differs from
// remoteUpdatedAt, destinationDir no longer exists on disk, or the stored
// title differs from currentTitle, any existing record is purged and the
// full requested set is returned (invariant I2: staleness forces a full
// refresh). Otherwise requested minus the already-completed categories is
// returned.
func (s *Store) GetMissing(
	postID string,
	currentTitle string,
	remoteUpdatedAt time.Time,
	requested category.Set,
	destinationDir string,
) (category.Set, error) {
	r, err := s.lookup(postID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return requested, nil
	}

	remoteStamp := remoteUpdatedAt.UTC().Format(time.RFC3339)
	dirExists := true
	if _, statErr := os.Stat(destinationDir); statErr != nil {
		if os.IsNotExist(statErr) {
			dirExists = false
		} else {
			return nil, &CacheError{Op: "stat " + destinationDir, Err: statErr}
		}
	}

	if r.lastUpdate != remoteStamp || !dirExists || r.title != currentTitle {
		if err := s.Purge(postID); err != nil {
			return nil, err
		}
		return requested, nil
	}

	return requested.Subtract(r.categories), nil
}

// StoredTitle returns the title recorded for postID, if any. Used by the
// directory-rename reconciliation (spec.md §4.4's ensure_folder_matches),
// which is implemented in internal/destpath since it needs to know the
// destination-root naming convention that this package is deliberately
// ignorant of.
func (s *Store) StoredTitle(postID string) (title string, ok bool, err error) {
	r, err := s.lookup(postID)
	if err != nil {
		return "", false, err
	}
	if r == nil {
		return "", false, nil
	}
	return r.title, true, nil
}

// RecordCompletion upserts the cache record for postID (spec.md §4.4's
// record_completion). If a prior record exists with the same
// remoteUpdatedAt, completed is unioned with the existing categories;
// otherwise the record is replaced outright (a new remoteUpdatedAt means the
// prior categories no longer apply — they were already re-downloaded by the
// caller, via GetMissing's staleness branch, before this call).
func (s *Store) RecordCompletion(
	postID string,
	title string,
	remoteUpdatedAt time.Time,
	completed category.Set,
) error {
	remoteStamp := remoteUpdatedAt.UTC().Format(time.RFC3339)
	r, err := s.lookup(postID)
	if err != nil {
		return err
	}

	final := completed
	if r != nil && r.lastUpdate == remoteStamp {
		final = completed.Union(r.categories)
	}

	_, err = s.db.Exec(
		`INSERT INTO post_cache (post_id, title, last_updated, categories) VALUES (?, ?, ?, ?)
		 ON CONFLICT(post_id) DO UPDATE SET title = excluded.title,
			last_updated = excluded.last_updated, categories = excluded.categories`,
		postID, title, remoteStamp, final.String(),
	)
	if err != nil {
		return &CacheError{Op: "record completion " + postID, Err: err}
	}
	return nil
}

// Purge removes any cache record for postID. Not an error if none exists.
func (s *Store) Purge(postID string) error {
	if _, err := s.db.Exec(`DELETE FROM post_cache WHERE post_id = ?`, postID); err != nil {
		return &CacheError{Op: "purge " + postID, Err: err}
	}
	return nil
}

// PurgeAll removes every cache record (the --clean-cache operation).
func (s *Store) PurgeAll() error {
	if _, err := s.db.Exec(`DELETE FROM post_cache`); err != nil {
		return &CacheError{Op: "purge all", Err: err}
	}
	return nil
}
