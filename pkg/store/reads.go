package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CommitMeta is a commits row as read back by query/reconstruct code.
type CommitMeta struct {
	ID                   int64
	SHA                  string
	Message              string
	AuthorName           string
	AuthorEmail          string
	CommittedAt          string
	HasDependencyChanges bool
}

// LookupCommitBySHA returns the commit row for sha, or ok=false if absent.
func (s *Store) LookupCommitBySHA(ctx context.Context, sha string) (CommitMeta, bool, error) {
	return s.scanCommit(ctx, `SELECT id, sha, message, author_name, author_email, committed_at, has_dependency_changes FROM commits WHERE sha = ?`, sha)
}

// LookupCommitByID returns the commit row for id, or ok=false if absent.
func (s *Store) LookupCommitByID(ctx context.Context, id int64) (CommitMeta, bool, error) {
	return s.scanCommit(ctx, `SELECT id, sha, message, author_name, author_email, committed_at, has_dependency_changes FROM commits WHERE id = ?`, id)
}

func (s *Store) scanCommit(ctx context.Context, query string, arg any) (CommitMeta, bool, error) {
	var (
		m          CommitMeta
		hasChanges int
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.SHA, &m.Message, &m.AuthorName, &m.AuthorEmail, &m.CommittedAt, &hasChanges)
	if err == sql.ErrNoRows {
		return CommitMeta{}, false, nil
	}

	if err != nil {
		return CommitMeta{}, false, fmt.Errorf("lookup commit: %w", err)
	}

	m.HasDependencyChanges = hasChanges != 0

	return m, true, nil
}

// LazyMaterializeCommit inserts a metadata-only commit row
// (has_dependency_changes=false) if sha is not already present, for the
// ad-hoc ref resolution of list/blame/stale/diff/show (§4.6). Returns the
// resulting row either way.
func (s *Store) LazyMaterializeCommit(ctx context.Context, meta CommitMeta) (CommitMeta, error) {
	if existing, ok, err := s.LookupCommitBySHA(ctx, meta.SHA); err != nil {
		return CommitMeta{}, err
	} else if ok {
		return existing, nil
	}

	now := nowRFC3339()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commits (sha, message, author_name, author_email, committed_at, has_dependency_changes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(sha) DO NOTHING`,
		meta.SHA, meta.Message, meta.AuthorName, meta.AuthorEmail, meta.CommittedAt, now, now)
	if err != nil {
		return CommitMeta{}, fmt.Errorf("lazy materialize commit %s: %w", meta.SHA, err)
	}

	inserted, _, err := s.LookupCommitBySHA(ctx, meta.SHA)

	return inserted, err
}

// SnapshotEntry is one dependency_snapshots row joined with its manifest
// path, as consumed by the reconstructor.
type SnapshotEntry struct {
	ManifestPath   string
	Name           string
	Ecosystem      string
	Kind           string
	Requirement    string
	DependencyType string
}

// LatestSnapshotCommit returns the most recent commit at or before
// beforeOrAtCommittedAt that has any dependency_snapshots rows. ok=false
// means no snapshot exists yet and reconstruction must start from empty.
func (s *Store) LatestSnapshotCommit(ctx context.Context, beforeOrAtCommittedAt string) (CommitMeta, bool, error) {
	var id int64

	err := s.db.QueryRowContext(ctx, `
		SELECT DISTINCT c.id
		FROM commits c
		JOIN dependency_snapshots s ON s.commit_id = c.id
		WHERE c.committed_at <= ?
		ORDER BY c.committed_at DESC, c.id DESC
		LIMIT 1`, beforeOrAtCommittedAt).Scan(&id)
	if err == sql.ErrNoRows {
		return CommitMeta{}, false, nil
	}

	if err != nil {
		return CommitMeta{}, false, fmt.Errorf("find latest snapshot commit: %w", err)
	}

	meta, ok, err := s.LookupCommitByID(ctx, id)

	return meta, ok, err
}

// SnapshotAt returns every dependency_snapshots row for commitID joined
// with its manifest.
func (s *Store) SnapshotAt(ctx context.Context, commitID int64) ([]SnapshotEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.path, s.name, s.ecosystem, m.kind, s.requirement, s.dependency_type
		FROM dependency_snapshots s
		JOIN manifests m ON m.id = s.manifest_id
		WHERE s.commit_id = ?`, commitID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SnapshotEntry

	for rows.Next() {
		var e SnapshotEntry
		if err := rows.Scan(&e.ManifestPath, &e.Name, &e.Ecosystem, &e.Kind, &e.Requirement, &e.DependencyType); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

// ChangeEntry is one dependency_changes row as consumed by the
// reconstructor's replay step and the query surface.
type ChangeEntry struct {
	CommitSHA           string
	CommitID            int64
	CommittedAt         string
	AuthorName          string
	AuthorEmail         string
	ManifestPath        string
	Name                string
	Ecosystem           string
	Kind                string
	ChangeType          string
	Requirement         string
	PreviousRequirement *string
	DependencyType      string
}

// ChangesInRange returns dependency_changes rows whose commit's
// committed_at falls in (afterCommittedAt, uptoCommittedAt], ordered
// ascending by (committed_at, commit.id) — the replay order the
// reconstructor requires. An empty afterCommittedAt includes everything
// up to and including uptoCommittedAt.
func (s *Store) ChangesInRange(ctx context.Context, afterCommittedAt, uptoCommittedAt string) ([]ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.sha, c.id, c.committed_at, c.author_name, c.author_email,
			m.path, dc.name, dc.ecosystem, m.kind, dc.change_type, dc.requirement, dc.previous_requirement, dc.dependency_type
		FROM dependency_changes dc
		JOIN commits c ON c.id = dc.commit_id
		JOIN manifests m ON m.id = dc.manifest_id
		WHERE c.committed_at > ? AND c.committed_at <= ?
		ORDER BY c.committed_at ASC, c.id ASC`, afterCommittedAt, uptoCommittedAt)
	if err != nil {
		return nil, fmt.Errorf("query changes in range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChangeEntries(rows)
}

// ChangesForCommit returns every dependency_changes row for a single
// commit sha (the `show` query).
func (s *Store) ChangesForCommit(ctx context.Context, sha string) ([]ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.sha, c.id, c.committed_at, c.author_name, c.author_email,
			m.path, dc.name, dc.ecosystem, m.kind, dc.change_type, dc.requirement, dc.previous_requirement, dc.dependency_type
		FROM dependency_changes dc
		JOIN commits c ON c.id = dc.commit_id
		JOIN manifests m ON m.id = dc.manifest_id
		WHERE c.sha = ?
		ORDER BY dc.id ASC`, sha)
	if err != nil {
		return nil, fmt.Errorf("query changes for commit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChangeEntries(rows)
}

// HistoryForName returns every dependency_changes row for name (optionally
// filtered by ecosystem), ordered by committed-time.
func (s *Store) HistoryForName(ctx context.Context, name, ecosystem string) ([]ChangeEntry, error) {
	query := `
		SELECT c.sha, c.id, c.committed_at, c.author_name, c.author_email,
			m.path, dc.name, dc.ecosystem, m.kind, dc.change_type, dc.requirement, dc.previous_requirement, dc.dependency_type
		FROM dependency_changes dc
		JOIN commits c ON c.id = dc.commit_id
		JOIN manifests m ON m.id = dc.manifest_id
		WHERE (? = '' OR dc.name = ?) AND (? = '' OR dc.ecosystem = ?)
		ORDER BY c.committed_at ASC, c.id ASC`

	rows, err := s.db.QueryContext(ctx, query, name, name, ecosystem, ecosystem)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChangeEntries(rows)
}

func scanChangeEntries(rows *sql.Rows) ([]ChangeEntry, error) {
	var out []ChangeEntry

	for rows.Next() {
		var e ChangeEntry
		if err := rows.Scan(&e.CommitSHA, &e.CommitID, &e.CommittedAt, &e.AuthorName, &e.AuthorEmail,
			&e.ManifestPath, &e.Name, &e.Ecosystem, &e.Kind, &e.ChangeType, &e.Requirement, &e.PreviousRequirement, &e.DependencyType); err != nil {
			return nil, fmt.Errorf("scan change row: %w", err)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

// LoggedCommits returns commits with has_dependency_changes = true,
// newest first, annotated with their change counts (the `log` query).
func (s *Store) LoggedCommits(ctx context.Context, author string, limit int) ([]LoggedCommit, error) {
	query := `
		SELECT c.sha, c.message, c.author_name, c.author_email, c.committed_at,
			(SELECT COUNT(*) FROM dependency_changes dc WHERE dc.commit_id = c.id) AS change_count
		FROM commits c
		WHERE c.has_dependency_changes = 1 AND (? = '' OR c.author_name = ?)
		ORDER BY c.committed_at DESC, c.id DESC`

	args := []any{author, author}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LoggedCommit

	for rows.Next() {
		var c LoggedCommit
		if err := rows.Scan(&c.SHA, &c.Message, &c.AuthorName, &c.AuthorEmail, &c.CommittedAt, &c.ChangeCount); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

// LoggedCommit is one row of the `log` query's output.
type LoggedCommit struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	CommittedAt string
	ChangeCount int
}

// StatsByAuthor aggregates change counts per author (the `stats --by-author` query).
func (s *Store) StatsByAuthor(ctx context.Context, ecosystem, since, until string) (map[string]int, error) {
	return s.statsBy(ctx, "c.author_name", ecosystem, since, until)
}

// StatsByEcosystem aggregates change counts per ecosystem.
func (s *Store) StatsByEcosystem(ctx context.Context, since, until string) (map[string]int, error) {
	return s.statsBy(ctx, "dc.ecosystem", "", since, until)
}

// StatsByManifest aggregates change counts per manifest path.
func (s *Store) StatsByManifest(ctx context.Context, ecosystem, since, until string) (map[string]int, error) {
	return s.statsBy(ctx, "m.path", ecosystem, since, until)
}

// StatsByName aggregates change counts per dependency name.
func (s *Store) StatsByName(ctx context.Context, ecosystem, since, until string) (map[string]int, error) {
	return s.statsBy(ctx, "dc.name", ecosystem, since, until)
}

// statsBy groups dependency_changes rows by a fixed, internally-chosen
// column expression (never user input) and counts them, filtered by the
// usual ecosystem/date-range predicates.
func (s *Store) statsBy(ctx context.Context, groupExpr, ecosystem, since, until string) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM dependency_changes dc
		JOIN commits c ON c.id = dc.commit_id
		JOIN manifests m ON m.id = dc.manifest_id
		WHERE (? = '' OR dc.ecosystem = ?) AND (? = '' OR c.committed_at >= ?) AND (? = '' OR c.committed_at <= ?)
		GROUP BY %s`, groupExpr, groupExpr)

	rows, err := s.db.QueryContext(ctx, query, ecosystem, ecosystem, since, since, until, until)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)

	for rows.Next() {
		var (
			key   string
			count int
		)

		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}

		out[key] = count
	}

	return out, rows.Err()
}

// ManifestPaths returns every known manifest path, optionally filtered by
// ecosystem, for the `where` query's working-tree scan.
func (s *Store) ManifestPaths(ctx context.Context, ecosystem string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT path FROM manifests WHERE ? = '' OR ecosystem = ? ORDER BY path`, ecosystem, ecosystem)
	if err != nil {
		return nil, fmt.Errorf("query manifest paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string

	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan manifest path: %w", err)
		}

		out = append(out, path)
	}

	return out, rows.Err()
}

// ChangesForDependency returns every dependency_changes row for a single
// (manifestPath, name) pair, ordered ascending by committed-time — the
// per-dependency history blame/stale need.
func (s *Store) ChangesForDependency(ctx context.Context, manifestPath, name string) ([]ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.sha, c.id, c.committed_at, c.author_name, c.author_email,
			m.path, dc.name, dc.ecosystem, m.kind, dc.change_type, dc.requirement, dc.previous_requirement, dc.dependency_type
		FROM dependency_changes dc
		JOIN commits c ON c.id = dc.commit_id
		JOIN manifests m ON m.id = dc.manifest_id
		WHERE m.path = ? AND dc.name = ?
		ORDER BY c.committed_at ASC, c.id ASC`, manifestPath, name)
	if err != nil {
		return nil, fmt.Errorf("query changes for dependency: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChangeEntries(rows)
}
