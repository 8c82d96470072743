// Package version provides the build version information for the gitpkgs binary.
package version

// Version is the release version, injected via ldflags at build time.
var Version = "dev"

// Commit is the git commit hash, injected via ldflags at build time.
var Commit = "none"

// Date is the build date, injected via ldflags at build time.
var Date = "unknown"

// SchemaVersion is the store schema version this binary was built against.
// Surfaced by `gitpkgs info` alongside Version so a schema mismatch can be
// diagnosed without opening the store.
const SchemaVersion = 1
