package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CommitRow is one buffered commit metadata row.
type CommitRow struct {
	SHA                  string
	Message              string
	AuthorName           string
	AuthorEmail          string
	CommittedAt          string // RFC3339 UTC
	HasDependencyChanges bool
}

// ManifestRow is one buffered manifest path row.
type ManifestRow struct {
	Path      string
	Ecosystem string
	Kind      string
}

// ChangeRow is one buffered dependency_changes row, referencing its commit
// and manifest by natural key (sha/path) rather than surrogate id — the
// batch resolves ids during Flush.
type ChangeRow struct {
	CommitSHA           string
	ManifestPath        string
	Name                string
	Ecosystem           string
	ChangeType          string
	Requirement         string
	PreviousRequirement *string
	DependencyType      string
}

// SnapshotRow is one buffered dependency_snapshots row.
type SnapshotRow struct {
	CommitSHA      string
	ManifestPath   string
	Name           string
	Ecosystem      string
	Requirement    string
	DependencyType string
}

// Batch accumulates rows for one or more commits and flushes them together
// inside a single transaction, matching the indexer's batch_size tunable.
type Batch struct {
	Commits          []CommitRow
	Manifests        []ManifestRow
	Changes          []ChangeRow
	Snapshots        []SnapshotRow
	BranchName       string
	BranchCommitSHAs []string // commits to attach to BranchName, in walk order
}

// IsEmpty reports whether the batch has nothing to flush.
func (b *Batch) IsEmpty() bool {
	return len(b.Commits) == 0 && len(b.Manifests) == 0 && len(b.Changes) == 0 &&
		len(b.Snapshots) == 0 && len(b.BranchCommitSHAs) == 0
}

// Reset empties the batch for reuse, keeping its backing arrays.
func (b *Batch) Reset() {
	b.Commits = b.Commits[:0]
	b.Manifests = b.Manifests[:0]
	b.Changes = b.Changes[:0]
	b.Snapshots = b.Snapshots[:0]
	b.BranchCommitSHAs = b.BranchCommitSHAs[:0]
}

// Flush writes the batch's contents inside one transaction: commits and
// manifests are upserted first (so changes/snapshots can resolve their
// ids), then changes, snapshots, and branch_commits are inserted.
func (s *Store) Flush(ctx context.Context, batch *Batch) error {
	if batch.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	commitIDs, err := upsertCommits(ctx, tx, batch.Commits)
	if err != nil {
		return err
	}

	manifestIDs, err := upsertManifests(ctx, tx, batch.Manifests)
	if err != nil {
		return err
	}

	if err := insertChanges(ctx, tx, batch.Changes, commitIDs, manifestIDs); err != nil {
		return err
	}

	if err := insertSnapshots(ctx, tx, batch.Snapshots, commitIDs, manifestIDs); err != nil {
		return err
	}

	if batch.BranchName != "" && len(batch.BranchCommitSHAs) > 0 {
		if err := insertBranchCommits(ctx, tx, batch.BranchName, batch.BranchCommitSHAs, commitIDs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const upsertCommitSQL = `
INSERT INTO commits (sha, message, author_name, author_email, committed_at, has_dependency_changes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sha) DO UPDATE SET
	message = excluded.message,
	author_name = excluded.author_name,
	author_email = excluded.author_email,
	committed_at = excluded.committed_at,
	has_dependency_changes = CASE WHEN excluded.has_dependency_changes = 1 THEN 1 ELSE commits.has_dependency_changes END,
	updated_at = excluded.updated_at`

func upsertCommits(ctx context.Context, tx *sql.Tx, rows []CommitRow) (map[string]int64, error) {
	ids := make(map[string]int64, len(rows))
	if len(rows) == 0 {
		return ids, nil
	}

	stmt, err := tx.PrepareContext(ctx, upsertCommitSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare commit upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	idStmt, err := tx.PrepareContext(ctx, `SELECT id FROM commits WHERE sha = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare commit id lookup: %w", err)
	}
	defer func() { _ = idStmt.Close() }()

	now := nowRFC3339()

	for _, row := range rows {
		hasChanges := 0
		if row.HasDependencyChanges {
			hasChanges = 1
		}

		if _, err := stmt.ExecContext(ctx, row.SHA, row.Message, row.AuthorName, row.AuthorEmail, row.CommittedAt, hasChanges, now, now); err != nil {
			return nil, fmt.Errorf("upsert commit %s: %w", row.SHA, err)
		}

		var id int64
		if err := idStmt.QueryRowContext(ctx, row.SHA).Scan(&id); err != nil {
			return nil, fmt.Errorf("resolve commit id %s: %w", row.SHA, err)
		}

		ids[row.SHA] = id
	}

	return ids, nil
}

const upsertManifestSQL = `
INSERT INTO manifests (path, ecosystem, kind, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	ecosystem = excluded.ecosystem,
	kind = excluded.kind,
	updated_at = excluded.updated_at`

func upsertManifests(ctx context.Context, tx *sql.Tx, rows []ManifestRow) (map[string]int64, error) {
	ids := make(map[string]int64, len(rows))
	if len(rows) == 0 {
		return ids, nil
	}

	stmt, err := tx.PrepareContext(ctx, upsertManifestSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare manifest upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	idStmt, err := tx.PrepareContext(ctx, `SELECT id FROM manifests WHERE path = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare manifest id lookup: %w", err)
	}
	defer func() { _ = idStmt.Close() }()

	now := nowRFC3339()

	for _, row := range rows {
		if _, ok := ids[row.Path]; ok {
			continue
		}

		if _, err := stmt.ExecContext(ctx, row.Path, row.Ecosystem, row.Kind, now, now); err != nil {
			return nil, fmt.Errorf("upsert manifest %s: %w", row.Path, err)
		}

		var id int64
		if err := idStmt.QueryRowContext(ctx, row.Path).Scan(&id); err != nil {
			return nil, fmt.Errorf("resolve manifest id %s: %w", row.Path, err)
		}

		ids[row.Path] = id
	}

	return ids, nil
}

func insertChanges(ctx context.Context, tx *sql.Tx, rows []ChangeRow, commitIDs, manifestIDs map[string]int64) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dependency_changes
			(commit_id, manifest_id, name, ecosystem, change_type, requirement, previous_requirement, dependency_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare change insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := nowRFC3339()

	for _, row := range rows {
		commitID, ok := commitIDs[row.CommitSHA]
		if !ok {
			return fmt.Errorf("change references unresolved commit %s", row.CommitSHA)
		}

		manifestID, ok := manifestIDs[row.ManifestPath]
		if !ok {
			return fmt.Errorf("change references unresolved manifest %s", row.ManifestPath)
		}

		_, err := stmt.ExecContext(ctx, commitID, manifestID, row.Name, row.Ecosystem, row.ChangeType,
			row.Requirement, row.PreviousRequirement, row.DependencyType, now, now)
		if err != nil {
			return fmt.Errorf("insert change %s/%s: %w", row.ManifestPath, row.Name, err)
		}
	}

	return nil
}

func insertSnapshots(ctx context.Context, tx *sql.Tx, rows []SnapshotRow, commitIDs, manifestIDs map[string]int64) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dependency_snapshots
			(commit_id, manifest_id, name, ecosystem, requirement, dependency_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(commit_id, manifest_id, name) DO UPDATE SET
			requirement = excluded.requirement,
			dependency_type = excluded.dependency_type,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := nowRFC3339()

	for _, row := range rows {
		commitID, ok := commitIDs[row.CommitSHA]
		if !ok {
			return fmt.Errorf("snapshot references unresolved commit %s", row.CommitSHA)
		}

		manifestID, ok := manifestIDs[row.ManifestPath]
		if !ok {
			return fmt.Errorf("snapshot references unresolved manifest %s", row.ManifestPath)
		}

		_, err := stmt.ExecContext(ctx, commitID, manifestID, row.Name, row.Ecosystem, row.Requirement, row.DependencyType, now, now)
		if err != nil {
			return fmt.Errorf("insert snapshot %s/%s: %w", row.ManifestPath, row.Name, err)
		}
	}

	return nil
}

func insertBranchCommits(ctx context.Context, tx *sql.Tx, branchName string, shas []string, commitIDs map[string]int64) error {
	branchID, err := upsertBranch(ctx, tx, branchName)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO branch_commits (branch_id, commit_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT(branch_id, commit_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare branch_commit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	position, err := nextBranchPosition(ctx, tx, branchID)
	if err != nil {
		return err
	}

	for _, sha := range shas {
		commitID, ok := commitIDs[sha]
		if !ok {
			return fmt.Errorf("branch_commit references unresolved commit %s", sha)
		}

		if _, err := stmt.ExecContext(ctx, branchID, commitID, position); err != nil {
			return fmt.Errorf("insert branch_commit %s: %w", sha, err)
		}

		position++
	}

	return nil
}

func nextBranchPosition(ctx context.Context, tx *sql.Tx, branchID int64) (int, error) {
	var maxPosition sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(position) FROM branch_commits WHERE branch_id = ?`, branchID).Scan(&maxPosition); err != nil {
		return 0, fmt.Errorf("query max branch position: %w", err)
	}

	if !maxPosition.Valid {
		return 0, nil
	}

	return int(maxPosition.Int64) + 1, nil
}

func upsertBranch(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	now := nowRFC3339()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO branches (name, last_analyzed_sha, created_at, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(name) DO NOTHING`, name, now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert branch %s: %w", name, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM branches WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve branch id %s: %w", name, err)
	}

	return id, nil
}

// SetBranchCheckpoint advances last_analyzed_sha for branchName, in its
// own transaction. The updater calls it after each commit's flush; the
// indexer calls it once, after the whole run has been flushed.
func (s *Store) SetBranchCheckpoint(ctx context.Context, branchName, sha string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := upsertBranch(ctx, tx, branchName); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE branches SET last_analyzed_sha = ?, updated_at = ? WHERE name = ?`, sha, nowRFC3339(), branchName)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}

	return tx.Commit()
}

// BranchCheckpoint returns the last_analyzed_sha for branchName, or "" if
// the branch has never been indexed.
func (s *Store) BranchCheckpoint(ctx context.Context, branchName string) (string, error) {
	var sha string

	err := s.db.QueryRowContext(ctx, `SELECT last_analyzed_sha FROM branches WHERE name = ?`, branchName).Scan(&sha)
	if err == sql.ErrNoRows {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("query checkpoint: %w", err)
	}

	return sha, nil
}
