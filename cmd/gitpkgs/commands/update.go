package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
	"github.com/Sumatoshi-tech/codefang/pkg/render"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
	"github.com/Sumatoshi-tech/codefang/pkg/telemetry"
	"github.com/Sumatoshi-tech/codefang/pkg/updater"
)

// UpdateCommand holds the update subcommand's flags.
type UpdateCommand struct {
	branch      string
	metricsFile string
}

// NewUpdateCommand incrementally advances the index from a branch's
// stored checkpoint to its current tip (C6 §4.6).
func NewUpdateCommand() *cobra.Command {
	uc := &UpdateCommand{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Advance the index to the branch's current tip",
		RunE:  uc.run,
	}

	cmd.Flags().StringVar(&uc.branch, "branch", "", "branch to update (default: repository's default branch)")
	cmd.Flags().StringVar(&uc.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this path ('-' for stdout) once the run finishes")

	return cmd
}

func (uc *UpdateCommand) run(cmd *cobra.Command, _ []string) error {
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

	result, err := updater.Run(ctx, repo, st, reg, updater.Options{
		Branch:   uc.branch,
		Progress: updateProgressLogger(log, counters),
	})
	if err != nil {
		return err
	}

	if result.ChangesFound > 0 {
		counters.ChangesRecorded.Add(float64(result.ChangesFound))
	}

	if err := writeMetrics(uc.metricsFile); err != nil {
		return err
	}

	render.Info(cmd.OutOrStdout(), renderOptions(cfg), fmt.Sprintf(
		"%s: %d commit(s) processed, %d dependency change(s) (%s..%s)",
		result.Branch, result.CommitsProcessed, result.ChangesFound, shortSHA(result.FromSHA), shortSHA(result.ToSHA),
	))

	return nil
}

// updateProgressLogger logs each processed commit at debug level and
// increments the run's commit-indexed counter.
func updateProgressLogger(log *slog.Logger, counters *telemetry.Counters) func(commitsProcessed, totalCommits int, sha string) {
	return func(commitsProcessed, totalCommits int, sha string) {
		log.Debug("update progress", "processed", commitsProcessed, "total", totalCommits, "sha", sha)
		counters.CommitsIndexed.Inc()
	}
}

func shortSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}

	return sha[:7]
}

// firstLine returns a commit message's subject line for table display.
func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}

	return message
}
