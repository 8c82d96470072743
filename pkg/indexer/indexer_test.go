package indexer_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/gittest"
	"github.com/Sumatoshi-tech/codefang/pkg/indexer"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
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

func TestRunIndexesLinearHistory(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0"}}`)
	first := repo.Commit("add left-pad")

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.1.0", "chalk": "2.0.0"}}`)
	second := repo.Commit("bump left-pad, add chalk")

	repo.WriteFile("README.md", "# hello")
	third := repo.Commit("docs only")

	gr := repo.Open()
	st := openTestStore(t)

	var events []indexer.ProgressEvent

	err := indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{
		Progress: func(ev indexer.ProgressEvent) { events = append(events, ev) },
	})
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	assert.Equal(t, indexer.PhaseDone, events[len(events)-1].Phase)

	firstMeta, ok, err := st.LookupCommitBySHA(context.Background(), first.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, firstMeta.HasDependencyChanges)

	secondMeta, ok, err := st.LookupCommitBySHA(context.Background(), second.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, secondMeta.HasDependencyChanges)

	thirdMeta, ok, err := st.LookupCommitBySHA(context.Background(), third.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, thirdMeta.HasDependencyChanges)

	changes, err := st.ChangesForCommit(context.Background(), second.String())
	require.NoError(t, err)
	require.Len(t, changes, 2)

	byName := map[string]store.ChangeEntry{}
	for _, c := range changes {
		byName[c.Name] = c
	}

	assert.Equal(t, "modified", byName["left-pad"].ChangeType)
	assert.Equal(t, "1.1.0", byName["left-pad"].Requirement)
	require.NotNil(t, byName["left-pad"].PreviousRequirement)
	assert.Equal(t, "1.0.0", *byName["left-pad"].PreviousRequirement)
	assert.Equal(t, "added", byName["chalk"].ChangeType)

	branch, err := gr.DefaultBranch()
	require.NoError(t, err)

	checkpoint, err := st.BranchCheckpoint(context.Background(), branch)
	require.NoError(t, err)
	assert.Equal(t, third.String(), checkpoint)
}

func TestRunIndexesOneOfTwoDivergedBranches(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0"}}`)
	repo.Commit("base")
	repo.Branch("feature")

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0", "chalk": "1.0.0"}}`)
	repo.Commit("on main")

	repo.Checkout("feature")
	repo.WriteFile("other.txt", "x")
	repo.Commit("on feature")

	gr := repo.Open()
	st := openTestStore(t)

	branch, err := gr.DefaultBranch()
	require.NoError(t, err)

	err = indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{Branch: branch})
	require.NoError(t, err)
}

func TestRunRecordsZeroDependencyManifestWithoutChanges(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {}}`)
	sha := repo.Commit("empty manifest")

	gr := repo.Open()
	st := openTestStore(t)

	err := indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{})
	require.NoError(t, err)

	meta, ok, err := st.LookupCommitBySHA(context.Background(), sha.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, meta.HasDependencyChanges)
}

func TestRunForceRebuildsFromScratch(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0"}}`)
	sha := repo.Commit("add left-pad")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))
	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{Force: true}))

	meta, ok, err := st.LookupCommitBySHA(context.Background(), sha.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, meta.HasDependencyChanges)
}

// TestRunStoresCommitterTimeNotAuthorTime simulates a cherry-pick, where
// the author timestamp is carried over from the original commit but the
// committer timestamp reflects when it actually landed on this branch.
// committed_at must reflect the latter, since it drives chronological
// ordering for P3, blame, and stale.
func TestRunStoresCommitterTimeNotAuthorTime(t *testing.T) {
	repo := gittest.New(t)

	authorTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	committerTime := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	repo.WriteFile("package.json", `{"dependencies": {"left-pad": "1.0.0"}}`)
	sha := repo.CommitAs("cherry-picked commit", gittest.CommitOpts{
		When:          authorTime,
		CommitterWhen: committerTime,
	})

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	meta, ok, err := st.LookupCommitBySHA(context.Background(), sha.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, committerTime.Format(time.RFC3339), meta.CommittedAt)
	assert.NotEqual(t, authorTime.Format(time.RFC3339), meta.CommittedAt)
}
