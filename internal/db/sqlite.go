package db

import (
	"context"
	"database/sql"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrLocked is returned when another scan holds the store.
var ErrLocked = errors.New("seen store is locked by another process")

// SQLiteDB is a file-backed set of links that were already notified.
type SQLiteDB struct {
	db   *sql.DB
	lock *flock.Flock
}

// NewSQLiteDB opens the store at path, locks it for this process and creates
// the schema if absent.
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock seen store")
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "failed to open seen store")
	}
	// One writer, one handle: the store lives for a single scan.
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{
		db:   db,
		lock: lock,
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the seen_jobs table. Safe to call on every start.
func (s *SQLiteDB) Init(ctx context.Context) error {
	createSeenTableSQL := `CREATE TABLE IF NOT EXISTS seen_jobs (
		"link" TEXT PRIMARY KEY
	  );`
	if _, err := s.db.ExecContext(ctx, createSeenTableSQL); err != nil {
		return errors.Wrap(err, "failed to create table")
	}
	return nil
}

// Contains reports whether link was committed by an earlier notification.
func (s *SQLiteDB) Contains(ctx context.Context, link string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen_jobs WHERE link = ?`, link).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, "failed to query seen link")
	}
	return true, nil
}

// Add records link as seen. Adding the same link twice is a no-op.
func (s *SQLiteDB) Add(ctx context.Context, link string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO seen_jobs(link) VALUES (?)`, link)
	if err != nil {
		return errors.Wrap(err, "failed to insert seen link")
	}
	return nil
}

// Count returns the number of seen links.
func (s *SQLiteDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_jobs`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count seen links")
	}
	return n, nil
}

// Close closes the database and releases the process lock.
func (s *SQLiteDB) Close() error {
	err := s.db.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return errors.WithStack(err)
}
