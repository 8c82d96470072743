package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// BlameCommand holds the blame subcommand's flags.
type BlameCommand struct {
	ref       string
	ecosystem string
}

// NewBlameCommand reports which commit introduced each current
// dependency's requirement (§4.8 "blame").
func NewBlameCommand() *cobra.Command {
	bc := &BlameCommand{}

	cmd := &cobra.Command{
		Use:   "blame",
		Short: "Show which commit introduced each dependency's current requirement",
		RunE:  bc.run,
	}

	cmd.Flags().StringVar(&bc.ref, "ref", "", "commit-ish to blame at (default: repository's default branch)")
	cmd.Flags().StringVar(&bc.ecosystem, "ecosystem", "", "restrict to a single ecosystem")

	return cmd
}

func (bc *BlameCommand) run(cmd *cobra.Command, _ []string) error {
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

	entries, err := query.Blame(ctx, repo, st, bc.ref, bc.ecosystem, ecosystemFilter(cfg))
	if err != nil {
		return err
	}

	columns := []string{"manifest", "name", "requirement", "commit", "committed_at", "author"}
	rows := make([][]any, 0, len(entries))

	for _, e := range entries {
		rows = append(rows, []any{
			e.Dependency.ManifestPath, e.Dependency.Name, e.Dependency.Requirement,
			shortSHA(e.Change.CommitSHA), e.Change.CommittedAt, e.Change.AuthorName,
		})
	}

	return renderPaged(cmd, cfg, columns, rows)
}
