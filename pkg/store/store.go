// Package store implements the embedded SQLite-backed persistence layer
// for git-pkgs: schema DDL and versioning, pragma tuning for bulk loads,
// deferred index creation, transaction batching, and single-writer file
// locking.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
)

// ErrSchemaOutdated is returned when the on-disk schema_info.version does
// not match the code's expected schemaVersion.
var ErrSchemaOutdated = gperrors.New(gperrors.KindSchemaOutdated, "store schema is outdated; rebuild with --force")

// ErrStoreBusy is returned when a writer cannot acquire the exclusive file
// lock because another process holds it.
var ErrStoreBusy = gperrors.New(gperrors.KindStoreBusy, "store is locked by another process")

// Mode selects the access mode a Store is opened with.
type Mode int

const (
	// ModeWrite opens for exclusive single-writer access (init/update),
	// taking the sentinel file lock.
	ModeWrite Mode = iota
	// ModeRead opens for shared read-only access (query commands).
	ModeRead
)

// Store wraps the SQLite connection pool and the DDL/versioning/locking
// machinery layered on top of it.
type Store struct {
	db   *sql.DB
	path string
	mode Mode
	lock *flock.Flock
}

// Open opens (creating if absent, for ModeWrite) the store at path.
func Open(ctx context.Context, path string, mode Mode) (*Store, error) {
	var fileLock *flock.Flock

	if mode == ModeWrite {
		fileLock = flock.New(path + ".lock")

		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire store lock: %w", err)
		}

		if !locked {
			return nil, ErrStoreBusy
		}
	}

	dsn := path + "?_txlock=immediate"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		if fileLock != nil {
			_ = fileLock.Unlock()
		}

		return nil, fmt.Errorf("open store: %w", err)
	}

	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, mode: mode, lock: fileLock}

	if err := s.init(ctx); err != nil {
		_ = s.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("set journal_mode: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("set foreign_keys: %w", err)
	}

	if s.mode != ModeWrite {
		return s.checkSchemaVersion(ctx)
	}

	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return s.ensureSchemaVersion(ctx)
}

func (s *Store) checkSchemaVersion(ctx context.Context) error {
	var version int

	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	if err != nil {
		return fmt.Errorf("%w: %w", gperrors.New(gperrors.KindNotInitialized, "store not initialized"), err)
	}

	if version != schemaVersion {
		return ErrSchemaOutdated
	}

	return nil
}

func (s *Store) ensureSchemaVersion(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_info`).Scan(&count); err != nil {
		return fmt.Errorf("count schema_info: %w", err)
	}

	if count == 0 {
		_, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion)
		if err != nil {
			return fmt.Errorf("insert schema_info: %w", err)
		}

		return nil
	}

	return s.checkSchemaVersion(ctx)
}

// Reset wipes all persisted rows and reinstates a fresh schema_info row,
// for `init --force`.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"dependency_snapshots", "dependency_changes", "manifests",
		"branch_commits", "commits", "branches", "schema_info",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range tables {
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM `+table); execErr != nil {
			return fmt.Errorf("delete %s: %w", table, execErr)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("reset schema_info: %w", err)
	}

	return tx.Commit()
}

// BeginBulkLoad relaxes durability for a bulk index run: synchronous mode
// drops to NORMAL and the page cache is enlarged. Call EndBulkLoad to
// restore safe durability once the run completes.
func (s *Store) BeginBulkLoad(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA synchronous=NORMAL`); err != nil {
		return fmt.Errorf("relax synchronous: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA cache_size=-20000`); err != nil {
		return fmt.Errorf("raise cache_size: %w", err)
	}

	return nil
}

// EndBulkLoad restores normal-use durability and creates the indexes held
// back during bulk load.
func (s *Store) EndBulkLoad(ctx context.Context) error {
	for _, stmt := range deferredIndexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create deferred index: %w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA synchronous=FULL`); err != nil {
		return fmt.Errorf("restore synchronous: %w", err)
	}

	return nil
}

// DB exposes the underlying *sql.DB for the bulk-insert pipeline and query
// surface to build statements against.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Summary reports the on-disk schema version plus basic row counts, for
// the `info` subcommand.
type Summary struct {
	SchemaVersion   int
	ExpectedVersion int
	Path            string
	CommitCount     int
	ChangeCount     int
	ManifestCount   int
	BranchCount     int
	SchemaUpToDate  bool
}

// Upgrade brings an existing store's on-disk schema_info up to the code's
// expected schemaVersion. The store has no incremental migration path
// (schemaDDL's CREATE TABLE IF NOT EXISTS columns never change shape
// without a version bump), so "upgrading" means wiping persisted rows and
// reinstating a fresh schema_info — equivalent to `init --force`'s Reset,
// but reachable even when Open itself would refuse the mismatched store.
// upgraded is false when the store was already current or never
// initialized (nothing to do).
func Upgrade(ctx context.Context, path string) (upgraded bool, err error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return false, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return false, fmt.Errorf("apply schema: %w", err)
	}

	var version int

	err = db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return false, fmt.Errorf("insert schema_info: %w", err)
		}

		return false, nil
	case err != nil:
		return false, fmt.Errorf("read schema version: %w", err)
	case version == schemaVersion:
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upgrade transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{
		"dependency_snapshots", "dependency_changes", "manifests",
		"branch_commits", "commits", "branches", "schema_info",
	} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return false, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
		return false, fmt.Errorf("reset schema_info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upgrade: %w", err)
	}

	return true, nil
}

// Summarize reads Summary for an already-opened store (schema already
// known current, since Open itself refuses a mismatched schema_info).
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	sum := Summary{Path: s.path, ExpectedVersion: schemaVersion}

	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&sum.SchemaVersion); err != nil {
		return Summary{}, fmt.Errorf("read schema version: %w", err)
	}

	sum.SchemaUpToDate = sum.SchemaVersion == schemaVersion

	counts := []struct {
		table string
		dest  *int
	}{
		{"commits", &sum.CommitCount},
		{"dependency_changes", &sum.ChangeCount},
		{"manifests", &sum.ManifestCount},
		{"branches", &sum.BranchCount},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(c.dest); err != nil {
			return Summary{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	return sum, nil
}

// Close releases the database connection and the write-mode file lock.
func (s *Store) Close() error {
	err := s.db.Close()

	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}

	return err
}

// nowRFC3339 is the canonical timestamp format used for created_at/updated_at.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
