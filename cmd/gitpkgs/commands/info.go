package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/render"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// NewInfoCommand reports the store's schema version and row counts, or a
// clear KindSchemaOutdated/KindNotInitialized error if it can't be opened.
func NewInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index status and row counts",
		RunE:  runInfo,
	}

	return cmd
}

func runInfo(cmd *cobra.Command, _ []string) error {
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

	summary, err := st.Summarize(ctx)
	if err != nil {
		return err
	}

	opts := renderOptions(cfg)
	columns := []string{"field", "value"}
	rows := [][]any{
		{"path", summary.Path},
		{"schema_version", summary.SchemaVersion},
		{"expected_version", summary.ExpectedVersion},
		{"up_to_date", summary.SchemaUpToDate},
		{"commits", summary.CommitCount},
		{"dependency_changes", summary.ChangeCount},
		{"manifests", summary.ManifestCount},
		{"branches", summary.BranchCount},
	}

	return render.Table(cmd.OutOrStdout(), opts, columns, rows)
}
