package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// StaleCommand holds the stale subcommand's flags.
type StaleCommand struct {
	ref       string
	ecosystem string
}

// NewStaleCommand reports, oldest-first, when each current dependency
// last changed (§4.8 "stale").
func NewStaleCommand() *cobra.Command {
	sc := &StaleCommand{}

	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List dependencies ordered by how long since they last changed",
		RunE:  sc.run,
	}

	cmd.Flags().StringVar(&sc.ref, "ref", "", "commit-ish to evaluate at (default: repository's default branch)")
	cmd.Flags().StringVar(&sc.ecosystem, "ecosystem", "", "restrict to a single ecosystem")

	return cmd
}

func (sc *StaleCommand) run(cmd *cobra.Command, _ []string) error {
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

	entries, err := query.Stale(ctx, repo, st, sc.ref, sc.ecosystem, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"manifest", "name", "requirement", "last_changed"}
	rows := make([][]any, 0, len(entries))

	for _, e := range entries {
		rows = append(rows, []any{e.Dependency.ManifestPath, e.Dependency.Name, e.Dependency.Requirement, e.LastChanged})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
