package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/indexer"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
	"github.com/Sumatoshi-tech/codefang/pkg/render"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
	"github.com/Sumatoshi-tech/codefang/pkg/telemetry"
)

// InitCommand holds the init subcommand's flags.
type InitCommand struct {
	branch      string
	since       string
	force       bool
	metricsFile string
}

// NewInitCommand builds a full from-scratch (or --force-rebuilt) index of
// a branch's history (C5 §4.5).
func NewInitCommand() *cobra.Command {
	ic := &InitCommand{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build the dependency-history index from scratch",
		RunE:  ic.run,
	}

	cmd.Flags().StringVar(&ic.branch, "branch", "", "branch to index (default: repository's default branch)")
	cmd.Flags().StringVar(&ic.since, "since", "", "commit-ish to start the walk at, inclusive (default: the root commit)")
	cmd.Flags().BoolVar(&ic.force, "force", false, "wipe and rebuild unconditionally")
	cmd.Flags().StringVar(&ic.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this path ('-' for stdout) once the run finishes")

	return cmd
}

func (ic *InitCommand) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	repo, err := openRepo()
	if err != nil {
		return gperrors.Wrap(gperrors.KindNotInGitRepo, err)
	}
	defer repo.Free()

	cfg, err := loadConfig(repo)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, repo, cfg, store.ModeWrite)
	if err != nil {
		return err
	}
	defer st.Close()

	log := logger(cfg)
	counters := telemetry.NewCounters(nil)

	reg := manifest.Default().WithFilter(manifest.EcosystemFilter(ecosystemFilter(cfg)))

	opts := indexer.Options{
		Branch:           ic.branch,
		Since:            ic.since,
		Force:            ic.force,
		BatchSize:        cfg.Index.BatchSize,
		SnapshotInterval: cfg.Index.SnapshotInterval,
		Threads:          cfg.Index.Threads,
		Progress:         indexProgressLogger(log, counters),
	}

	if err := indexer.Run(ctx, repo, st, reg, opts); err != nil {
		return err
	}

	if err := writeMetrics(ic.metricsFile); err != nil {
		return err
	}

	render.Info(cmd.OutOrStdout(), renderOptions(cfg), "index built")

	return nil
}

// indexProgressLogger logs each indexer phase at debug level and updates
// the run's Prometheus counters as commits are analyzed.
func indexProgressLogger(log *slog.Logger, counters *telemetry.Counters) indexer.ProgressFunc {
	lastChangesFound := 0

	return func(ev indexer.ProgressEvent) {
		log.Debug("index progress", "phase", ev.Phase, "processed", ev.CommitsProcessed, "total", ev.TotalCommits, "changes", ev.ChangesFound)

		if ev.Phase != indexer.PhaseAnalyzing {
			return
		}

		counters.CommitsIndexed.Inc()

		if delta := ev.ChangesFound - lastChangesFound; delta > 0 {
			counters.ChangesRecorded.Add(float64(delta))
		}

		lastChangesFound = ev.ChangesFound
	}
}
