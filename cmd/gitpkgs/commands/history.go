package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// HistoryCommand holds the history subcommand's flags.
type HistoryCommand struct {
	name      string
	ecosystem string
	author    string
	since     string
	until     string
}

// NewHistoryCommand reports every recorded change for a dependency name
// (§4.8 "history of a name").
func NewHistoryCommand() *cobra.Command {
	hc := &HistoryCommand{}

	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "Show the change history of a dependency",
		Args:  cobra.ExactArgs(1),
		RunE:  hc.run,
	}

	cmd.Flags().StringVar(&hc.ecosystem, "ecosystem", "", "restrict to a single ecosystem")
	cmd.Flags().StringVar(&hc.author, "author", "", "restrict to a single author")
	cmd.Flags().StringVar(&hc.since, "since", "", "only changes committed at or after this RFC3339 timestamp")
	cmd.Flags().StringVar(&hc.until, "until", "", "only changes committed at or before this RFC3339 timestamp")

	return cmd
}

func (hc *HistoryCommand) run(cmd *cobra.Command, args []string) error {
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

	changes, err := query.History(ctx, st, query.HistoryOptions{
		Name: args[0], Ecosystem: hc.ecosystem, Author: hc.author, Since: hc.since, Until: hc.until,
	}, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"commit", "committed_at", "author", "manifest", "change", "requirement"}
	rows := make([][]any, 0, len(changes))

	for _, c := range changes {
		rows = append(rows, []any{shortSHA(c.CommitSHA), c.CommittedAt, c.AuthorName, c.ManifestPath, c.ChangeType, c.Requirement})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
