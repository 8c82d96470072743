package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// ShowCommand holds the show subcommand's flags.
type ShowCommand struct {
	ref string
}

// NewShowCommand reports every dependency change recorded for a single
// commit (§4.8 "show").
func NewShowCommand() *cobra.Command {
	sc := &ShowCommand{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show dependency changes recorded at a single commit",
		RunE:  sc.run,
	}

	cmd.Flags().StringVar(&sc.ref, "ref", "", "commit-ish to show (default: repository's default branch)")

	return cmd
}

func (sc *ShowCommand) run(cmd *cobra.Command, _ []string) error {
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

	changes, err := query.Show(ctx, repo, st, sc.ref, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"manifest", "name", "change", "requirement"}
	rows := make([][]any, 0, len(changes))

	for _, c := range changes {
		rows = append(rows, []any{c.ManifestPath, c.Name, c.ChangeType, c.Requirement})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
