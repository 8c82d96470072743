package reconstruct_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/gittest"
	"github.com/Sumatoshi-tech/codefang/pkg/indexer"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
	"github.com/Sumatoshi-tech/codefang/pkg/reconstruct"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pkgs.sqlite3")

	st, err := store.Open(context.Background(), path, store.ModeWrite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func names(deps []reconstruct.Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Name)
	}

	return out
}

func TestDepsAtReflectsFullHistoryWithoutSnapshots(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0"}}`)
	first := repo.Commit("add left-pad")

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.1.0", "chalk": "1.0.0"}}`)
	second := repo.Commit("bump and add chalk")

	repo.WriteFile("package.json", `{"dependencies": {"chalk": "1.0.0"}}`)
	third := repo.Commit("remove left-pad")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{SnapshotInterval: 1000}))

	ctx := context.Background()

	firstMeta, ok, err := st.LookupCommitBySHA(ctx, first.String())
	require.NoError(t, err)
	require.True(t, ok)

	deps, err := reconstruct.DepsAt(ctx, st, firstMeta)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"left-pad"}, names(deps))

	secondMeta, ok, err := st.LookupCommitBySHA(ctx, second.String())
	require.NoError(t, err)
	require.True(t, ok)

	deps, err = reconstruct.DepsAt(ctx, st, secondMeta)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"left-pad", "chalk"}, names(deps))

	thirdMeta, ok, err := st.LookupCommitBySHA(ctx, third.String())
	require.NoError(t, err)
	require.True(t, ok)

	deps, err = reconstruct.DepsAt(ctx, st, thirdMeta)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chalk"}, names(deps))
}

func TestDepsAtUsesNearestSnapshotAndReplaysRemainder(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0"}}`)
	repo.Commit("add left-pad")

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0", "chalk": "1.0.0"}}`)
	repo.Commit("add chalk")

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0", "chalk": "1.0.0", "yargs": "1.0.0"}}`)
	third := repo.Commit("add yargs")

	gr := repo.Open()
	st := openTestStore(t)

	// snapshot_interval=1 writes a snapshot after every change-bearing
	// commit, exercising the snapshot-plus-delta path instead of a full
	// from-scratch replay.
	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{SnapshotInterval: 1}))

	ctx := context.Background()

	thirdMeta, ok, err := st.LookupCommitBySHA(ctx, third.String())
	require.NoError(t, err)
	require.True(t, ok)

	deps, err := reconstruct.DepsAt(ctx, st, thirdMeta)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"left-pad", "chalk", "yargs"}, names(deps))
}

func TestDepsAtWithNoChangesEver(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("README.md", "# hello")
	sha := repo.Commit("docs only")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	ctx := context.Background()

	meta, ok, err := st.LookupCommitBySHA(ctx, sha.String())
	require.NoError(t, err)
	require.True(t, ok)

	deps, err := reconstruct.DepsAt(ctx, st, meta)
	require.NoError(t, err)
	assert.Empty(t, deps)
}
