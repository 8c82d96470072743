package store

// schemaVersion is the code's expected schema version. Bump alongside any
// DDL change; the store refuses writes against a mismatched on-disk
// version rather than migrating incrementally.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS branches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	last_analyzed_sha TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sha TEXT NOT NULL UNIQUE,
	message TEXT NOT NULL DEFAULT '',
	author_name TEXT NOT NULL DEFAULT '',
	author_email TEXT NOT NULL DEFAULT '',
	committed_at TEXT NOT NULL,
	has_dependency_changes INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS branch_commits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	branch_id INTEGER NOT NULL REFERENCES branches(id),
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	position INTEGER NOT NULL,
	UNIQUE(branch_id, commit_id)
);

CREATE TABLE IF NOT EXISTS manifests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	ecosystem TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(path)
);

CREATE TABLE IF NOT EXISTS dependency_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	manifest_id INTEGER NOT NULL REFERENCES manifests(id),
	name TEXT NOT NULL,
	ecosystem TEXT NOT NULL,
	change_type TEXT NOT NULL,
	requirement TEXT NOT NULL DEFAULT '',
	previous_requirement TEXT,
	dependency_type TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dependency_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	manifest_id INTEGER NOT NULL REFERENCES manifests(id),
	name TEXT NOT NULL,
	ecosystem TEXT NOT NULL,
	requirement TEXT NOT NULL DEFAULT '',
	dependency_type TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(commit_id, manifest_id, name)
);
`

// deferredIndexes are created only after the bulk insert pipeline
// completes, per the store's init-time tuning (§4.4).
var deferredIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_manifests_path ON manifests(path)`,
	`CREATE INDEX IF NOT EXISTS idx_dep_changes_name ON dependency_changes(name)`,
	`CREATE INDEX IF NOT EXISTS idx_dep_changes_ecosystem ON dependency_changes(ecosystem)`,
	`CREATE INDEX IF NOT EXISTS idx_dep_changes_commit_name ON dependency_changes(commit_id, name)`,
	`CREATE INDEX IF NOT EXISTS idx_dep_snapshots_name ON dependency_snapshots(name)`,
	`CREATE INDEX IF NOT EXISTS idx_dep_snapshots_ecosystem ON dependency_snapshots(ecosystem)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_committed_at ON commits(committed_at)`,
}
