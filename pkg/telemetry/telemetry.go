// Package telemetry provides structured logging and optional Prometheus
// counters for index/update runs (§2 A3, §7's "absorbed ParseFailure and
// BlobMissing are still logged at slog.LevelDebug").
package telemetry

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger builds the process-wide slog.Logger, text-handler by default
// (matching the teacher's plain slog.Default() usage), debug level when
// verbose is set, warn level when quiet is set.
func NewLogger(verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo

	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	return slog.New(handler)
}

// LogAbsorbedError logs a ParseFailure/BlobMissing swallowed inside
// pkg/analyzer at debug level, so --verbose runs show why a file was
// skipped instead of silently dropping it.
func LogAbsorbedError(ctx context.Context, logger *slog.Logger, kind, path string, err error) {
	logger.DebugContext(ctx, "absorbed error", "kind", kind, "path", path, "error", err)
}

// Counters holds the Prometheus counters an index/update run increments.
// There is no HTTP scrape endpoint — the spec's Non-goals exclude server
// mode — so they are read once, when init/update's --metrics-file writes
// the gathered counters in Prometheus text format at the end of the run,
// repurposing the teacher's Prometheus dependency rather than its OTel
// exporter stack.
type Counters struct {
	CommitsIndexed  prometheus.Counter
	ChangesRecorded prometheus.Counter
	ParseFailures   prometheus.Counter
	BlobsMissing    prometheus.Counter
}

// NewCounters registers a fresh set of counters against registry. Passing
// nil registers against prometheus.DefaultRegisterer.
func NewCounters(registry prometheus.Registerer) *Counters {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	c := &Counters{
		CommitsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "git_pkgs_commits_indexed_total",
			Help: "Commits processed by the indexer or updater.",
		}),
		ChangesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "git_pkgs_dependency_changes_total",
			Help: "Dependency changes recorded across all commits.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "git_pkgs_parse_failures_total",
			Help: "Manifest parse failures absorbed by the analyzer.",
		}),
		BlobsMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "git_pkgs_blobs_missing_total",
			Help: "Git blob lookups that found no object, absorbed by the analyzer.",
		}),
	}

	registry.MustRegister(c.CommitsIndexed, c.ChangesRecorded, c.ParseFailures, c.BlobsMissing)

	return c
}
