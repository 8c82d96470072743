package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// DiffCommand holds the diff subcommand's flags.
type DiffCommand struct {
	from string
	to   string
}

// NewDiffCommand reports added/removed/modified dependencies between two
// refs (§4.8 "diff", P4), lazily materializing either ref if the store
// has never indexed it (scenario 6).
func NewDiffCommand() *cobra.Command {
	dc := &DiffCommand{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show dependency changes between two commits",
		RunE:  dc.run,
	}

	cmd.Flags().StringVar(&dc.from, "from", "", "base commit-ish (default: repository's default branch)")
	cmd.Flags().StringVar(&dc.to, "to", "", "target commit-ish (default: repository's default branch)")

	return cmd
}

func (dc *DiffCommand) run(cmd *cobra.Command, _ []string) error {
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

	result, err := query.Diff(ctx, repo, st, dc.from, dc.to, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"change", "manifest", "name", "from", "to"}

	rows := make([][]any, 0, len(result.Added)+len(result.Removed)+len(result.Modified))

	for _, d := range result.Added {
		rows = append(rows, []any{"added", d.ManifestPath, d.Name, "", d.Requirement})
	}

	for _, d := range result.Removed {
		rows = append(rows, []any{"removed", d.ManifestPath, d.Name, d.Requirement, ""})
	}

	for _, m := range result.Modified {
		rows = append(rows, []any{"modified", m.ManifestPath, m.Name, m.From, m.To})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
