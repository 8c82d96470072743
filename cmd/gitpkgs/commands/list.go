package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// ListCommand holds the list subcommand's flags.
type ListCommand struct {
	ref       string
	ecosystem string
	manifest  string
}

// NewListCommand reports the dependency set at a ref (§4.8 "list").
func NewListCommand() *cobra.Command {
	lc := &ListCommand{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dependencies at a commit",
		RunE:  lc.run,
	}

	cmd.Flags().StringVar(&lc.ref, "ref", "", "commit-ish to list at (default: repository's default branch)")
	cmd.Flags().StringVar(&lc.ecosystem, "ecosystem", "", "restrict to a single ecosystem")
	cmd.Flags().StringVar(&lc.manifest, "manifest", "", "restrict to a single manifest path")

	return cmd
}

func (lc *ListCommand) run(cmd *cobra.Command, _ []string) error {
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

	deps, err := query.List(ctx, repo, st, lc.ref, lc.ecosystem, lc.manifest, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"manifest", "ecosystem", "name", "requirement", "type"}
	rows := make([][]any, 0, len(deps))

	for _, d := range deps {
		rows = append(rows, []any{d.ManifestPath, d.Ecosystem, d.Name, d.Requirement, string(d.DependencyType)})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
