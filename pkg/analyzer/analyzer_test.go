package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
	"github.com/Sumatoshi-tech/codefang/pkg/gittest"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
)

func analyzeTip(t *testing.T, repo *gitlib.Repository, a *analyzer.Analyzer, snapshot analyzer.Snapshot) []analyzer.Change {
	t.Helper()

	head, err := repo.Head()
	require.NoError(t, err)

	commit, err := repo.LookupCommit(head)
	require.NoError(t, err)
	defer commit.Free()

	var parent *gitlib.Commit

	if commit.NumParents() > 0 {
		parent, err = commit.Parent(0)
		require.NoError(t, err)
		defer parent.Free()
	}

	paths, err := gitlib.ChangedPaths(repo, commit)
	require.NoError(t, err)

	changes, err := a.AnalyzeCommit(repo, commit, parent, paths, snapshot)
	require.NoError(t, err)

	return changes
}

func TestScenarioInitialAdd(t *testing.T) {
	fixture := gittest.New(t)
	fixture.WriteFile("Gemfile", "source \"https://rubygems.org\"\ngem \"rails\", \"~> 7.0\"\n")
	fixture.Commit("add rails")

	repo := fixture.Open()
	a := analyzer.New(manifest.Default())
	snapshot := analyzer.Snapshot{}

	changes := analyzeTip(t, repo, a, snapshot)

	require.Len(t, changes, 1)
	assert.Equal(t, "rails", changes[0].Name)
	assert.Equal(t, analyzer.ChangeAdded, changes[0].ChangeType)
	assert.Equal(t, "~> 7.0", changes[0].Requirement)
	assert.Equal(t, "rubygems", changes[0].Ecosystem)

	key := analyzer.SnapshotKey{ManifestPath: "Gemfile", Name: "rails"}
	assert.Equal(t, "~> 7.0", snapshot[key].Requirement)
}

func TestScenarioModifyRequirement(t *testing.T) {
	fixture := gittest.New(t)
	fixture.WriteFile("Gemfile", "gem \"rails\", \"~> 7.0\"\n")
	fixture.Commit("add rails")
	fixture.WriteFile("Gemfile", "gem \"rails\", \"~> 7.1\"\n")
	fixture.Commit("bump rails")

	repo := fixture.Open()
	a := analyzer.New(manifest.Default())
	snapshot := analyzer.Snapshot{}

	changes := analyzeTip(t, repo, a, snapshot)

	require.Len(t, changes, 1)
	assert.Equal(t, analyzer.ChangeModified, changes[0].ChangeType)
	assert.Equal(t, "~> 7.1", changes[0].Requirement)
	require.NotNil(t, changes[0].PreviousRequirement)
	assert.Equal(t, "~> 7.0", *changes[0].PreviousRequirement)
}

func TestScenarioRemoveViaFileDeletion(t *testing.T) {
	fixture := gittest.New(t)
	fixture.WriteFile("Gemfile", "gem \"rails\", \"~> 7.1\"\n")
	fixture.Commit("add rails")
	fixture.RemoveFile("Gemfile")
	fixture.Commit("remove gemfile")

	repo := fixture.Open()
	a := analyzer.New(manifest.Default())
	snapshot := analyzer.Snapshot{}

	changes := analyzeTip(t, repo, a, snapshot)

	require.Len(t, changes, 1)
	assert.Equal(t, analyzer.ChangeRemoved, changes[0].ChangeType)
	require.NotNil(t, changes[0].PreviousRequirement)
	assert.Equal(t, "~> 7.1", *changes[0].PreviousRequirement)
	assert.Empty(t, snapshot)
}

func TestScenarioMultiEcosystemCommit(t *testing.T) {
	fixture := gittest.New(t)
	fixture.WriteFile("Gemfile", "gem \"rails\", \"~> 7.0\"\n")
	fixture.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)
	fixture.Commit("add both ecosystems")

	repo := fixture.Open()
	a := analyzer.New(manifest.Default())
	snapshot := analyzer.Snapshot{}

	changes := analyzeTip(t, repo, a, snapshot)

	require.Len(t, changes, 2)
	assert.Len(t, snapshot, 2)
}

func TestScenarioDevVsRuntimeDistinction(t *testing.T) {
	fixture := gittest.New(t)
	fixture.WriteFile("package.json", `{"dependencies": {"lodash": "^4.0.0"}, "devDependencies": {"jest": "^29"}}`)
	fixture.Commit("add deps")

	repo := fixture.Open()
	a := analyzer.New(manifest.Default())
	snapshot := analyzer.Snapshot{}

	changes := analyzeTip(t, repo, a, snapshot)

	require.Len(t, changes, 2)

	byName := map[string]analyzer.Change{}
	for _, c := range changes {
		byName[c.Name] = c
	}

	assert.Equal(t, manifest.DependencyRuntime, byName["lodash"].DependencyType)
	assert.Equal(t, manifest.DependencyDevelopment, byName["jest"].DependencyType)
}

func TestQuickMatchSkipsNonManifestCommit(t *testing.T) {
	a := analyzer.New(manifest.Default())

	assert.False(t, a.QuickMatch([]gitlib.PathChange{{Path: "README.md", Status: gitlib.PathAdded}}))
	assert.True(t, a.QuickMatch([]gitlib.PathChange{{Path: "Gemfile", Status: gitlib.PathAdded}}))
}

func TestParseReturningZeroDependenciesLeavesSnapshotUnchanged(t *testing.T) {
	fixture := gittest.New(t)
	fixture.WriteFile("Gemfile", "source \"https://rubygems.org\"\n")
	fixture.Commit("empty gemfile")

	repo := fixture.Open()
	a := analyzer.New(manifest.Default())
	snapshot := analyzer.Snapshot{}

	changes := analyzeTip(t, repo, a, snapshot)

	assert.Empty(t, changes)
	assert.Empty(t, snapshot)
}
