package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// LogCommand holds the log subcommand's flags.
type LogCommand struct {
	author string
	limit  int
}

// NewLogCommand lists commits that touched a dependency manifest, newest
// first (§4.8 "log").
func NewLogCommand() *cobra.Command {
	lc := &LogCommand{limit: 20}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List commits with recorded dependency changes",
		RunE:  lc.run,
	}

	cmd.Flags().StringVar(&lc.author, "author", "", "restrict to a single author")
	cmd.Flags().IntVar(&lc.limit, "limit", 20, "maximum number of commits to show")

	return cmd
}

func (lc *LogCommand) run(cmd *cobra.Command, _ []string) error {
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

	commits, err := query.Log(ctx, st, lc.author, lc.limit)
	if err != nil {
		return err
	}

	columns := []string{"commit", "committed_at", "author", "changes", "message"}
	rows := make([][]any, 0, len(commits))

	for _, c := range commits {
		rows = append(rows, []any{shortSHA(c.SHA), c.CommittedAt, c.AuthorName, c.ChangeCount, firstLine(c.Message)})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
