package query_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/gittest"
	"github.com/Sumatoshi-tech/codefang/pkg/indexer"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
	"github.com/Sumatoshi-tech/codefang/pkg/query"
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

func TestListAtTipMatchesLatestRequirement(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.Commit("add rails")

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.1\"")
	repo.Commit("bump rails")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	deps, err := query.List(context.Background(), gr, st, "", "", "", nil)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "rails", deps[0].Name)
	assert.Equal(t, "~> 7.1", deps[0].Requirement)
}

func TestListFiltersByEcosystem(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)
	repo.Commit("multi ecosystem")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	deps, err := query.List(context.Background(), gr, st, "", "npm", "", nil)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "lodash", deps[0].Name)
}

func TestListShortCircuitsOnDisallowedEcosystem(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.Commit("add rails")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	deps, err := query.List(context.Background(), gr, st, "", "npm", "", func(string) bool { return false })
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestHistoryOrdersByCommittedTime(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.Commit("add rails")

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.1\"")
	repo.Commit("bump rails")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	changes, err := query.History(context.Background(), st, query.HistoryOptions{Name: "rails"}, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "added", changes[0].ChangeType)
	assert.Equal(t, "modified", changes[1].ChangeType)
}

func TestBlameReportsEarliestChangeForCurrentRequirement(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	first := repo.Commit("add rails")

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.1\"")
	repo.Commit("bump rails")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	entries, err := query.Blame(context.Background(), gr, st, "", "", nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rails", entries[0].Dependency.Name)
	assert.NotEqual(t, first.String(), entries[0].Change.CommitSHA, "blame should attribute to the commit that introduced the current requirement, not the first ever change")
}

func TestStaleReportsMostRecentChangeTime(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.Commit("add rails")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	entries, err := query.Stale(context.Background(), gr, st, "", "", nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rails", entries[0].Dependency.Name)
	assert.NotEmpty(t, entries[0].LastChanged)
}

func TestStatsByAuthorAttributesMultiEcosystemCommitToOneAuthor(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)
	repo.Commit("multi ecosystem")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	result, err := query.Stats(context.Background(), st, query.StatsOptions{ByAuthor: true}, nil)
	require.NoError(t, err)
	require.Len(t, result.ByAuthor, 1)

	for _, count := range result.ByAuthor {
		assert.Equal(t, 2, count)
	}
}

func TestDiffAcrossLazyUnindexedCommit(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)
	repo.Commit("add lodash")

	gr := repo.Open()
	st := openTestStore(t)

	branch, err := gr.DefaultBranch()
	require.NoError(t, err)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{Branch: branch}))

	repo.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0", "chalk": "^1.0.0"}}`)
	head := repo.Commit("add chalk, not yet indexed")

	result, err := query.Diff(context.Background(), gr, st, branch, head.String(), nil)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	assert.Equal(t, "chalk", result.Added[0].Name)
	assert.Empty(t, result.Removed)

	meta, ok, err := st.LookupCommitBySHA(context.Background(), head.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, meta.HasDependencyChanges, "lazily materialized commit has no recorded changes yet")
}

func TestShowReturnsAllChangesForCommit(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)
	sha := repo.Commit("multi ecosystem")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	changes, err := query.Show(context.Background(), gr, st, sha.String(), nil)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestWhereScansCurrentWorkingTreeForName(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)
	repo.Commit("add lodash")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	matches, err := query.Where(context.Background(), gr, st, "lodash", "", 0, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "package.json", matches[0].Path)
}

func TestLogOnlyReturnsCommitsWithDependencyChanges(t *testing.T) {
	repo := gittest.New(t)

	repo.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"")
	repo.Commit("add rails")

	repo.WriteFile("README.md", "# hello")
	repo.Commit("docs only")

	gr := repo.Open()
	st := openTestStore(t)

	require.NoError(t, indexer.Run(context.Background(), gr, st, manifest.Default(), indexer.Options{}))

	commits, err := query.Log(context.Background(), st, "", 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, 1, commits[0].ChangeCount)
}
