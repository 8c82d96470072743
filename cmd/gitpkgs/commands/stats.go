package commands

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// StatsCommand holds the stats subcommand's flags.
type StatsCommand struct {
	byAuthor  bool
	ecosystem string
	since     string
	until     string
}

// NewStatsCommand reports change-count aggregations (§4.8 "stats").
func NewStatsCommand() *cobra.Command {
	sc := &StatsCommand{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dependency-change count aggregations",
		RunE:  sc.run,
	}

	cmd.Flags().BoolVar(&sc.byAuthor, "by-author", false, "aggregate by author only")
	cmd.Flags().StringVar(&sc.ecosystem, "ecosystem", "", "restrict to a single ecosystem")
	cmd.Flags().StringVar(&sc.since, "since", "", "only changes committed at or after this RFC3339 timestamp")
	cmd.Flags().StringVar(&sc.until, "until", "", "only changes committed at or before this RFC3339 timestamp")

	return cmd
}

func (sc *StatsCommand) run(cmd *cobra.Command, _ []string) error {
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

	st, err := openStore(ctx, repo, cfg, store.ModeRead)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := query.Stats(ctx, st, query.StatsOptions{
		ByAuthor: sc.byAuthor, Ecosystem: sc.ecosystem, Since: sc.since, Until: sc.until,
	}, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"dimension", "key", "changes"}

	var rows [][]any

	rows = appendStatsRows(rows, "author", result.ByAuthor)

	if !sc.byAuthor {
		rows = appendStatsRows(rows, "ecosystem", result.ByEcosystem)
		rows = appendStatsRows(rows, "manifest", result.ByManifest)
		rows = appendStatsRows(rows, "name", result.ByName)
	}

	return renderPaged(cmd, cfg, columns, rows)
}

func appendStatsRows(rows [][]any, dimension string, counts map[string]int) [][]any {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		rows = append(rows, []any{dimension, k, counts[k]})
	}

	return rows
}
