package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// WhereCommand holds the where subcommand's flags.
type WhereCommand struct {
	ecosystem string
	context   int
}

// NewWhereCommand scans the current working tree for a dependency name
// (§4.8 "where", §9's persisted/live-tree boundary split).
func NewWhereCommand() *cobra.Command {
	wc := &WhereCommand{}

	cmd := &cobra.Command{
		Use:   "where <name>",
		Short: "Locate a dependency in the current working tree's manifests",
		Args:  cobra.ExactArgs(1),
		RunE:  wc.run,
	}

	cmd.Flags().StringVar(&wc.ecosystem, "ecosystem", "", "restrict to a single ecosystem")
	cmd.Flags().IntVar(&wc.context, "context", 0, "lines of surrounding context to include")

	return cmd
}

func (wc *WhereCommand) run(cmd *cobra.Command, args []string) error {
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

	matches, err := query.Where(ctx, repo, st, args[0], wc.ecosystem, wc.context, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"manifest", "line", "text"}
	rows := make([][]any, 0, len(matches))

	for _, m := range matches {
		rows = append(rows, []any{m.Path, m.Line, m.Text})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
