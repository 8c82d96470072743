package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/render"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// NewUpgradeCommand brings an outdated on-disk schema up to the binary's
// expected version. The store has no incremental migration path, so an
// upgrade wipes persisted rows; the caller must re-run `init` afterward.
func NewUpgradeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the on-disk store schema",
		RunE:  runUpgrade,
	}

	return cmd
}

func runUpgrade(cmd *cobra.Command, _ []string) error {
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

	upgraded, err := store.Upgrade(ctx, storePath(repo, cfg))
	if err != nil {
		return err
	}

	opts := renderOptions(cfg)

	if !upgraded {
		render.Info(cmd.OutOrStdout(), opts, "store schema already up to date")

		return nil
	}

	render.Info(cmd.OutOrStdout(), opts, "store schema upgraded; run `init --force` to rebuild the index")

	return nil
}
