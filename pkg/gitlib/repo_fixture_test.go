package gitlib_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
)

// testRepo wraps a throwaway repository for gitlib's own integration tests.
type testRepo struct {
	t       *testing.T
	path    string
	native  *git2go.Repository
	cleanup func()
}

// newTestRepo initializes an empty repository under t.TempDir().
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		cleanup: func() {
			repo.Free()
		},
	}
}

// createFile writes a file into the working directory, creating parent dirs
// as needed.
func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	dir := filepath.Dir(path)

	if dir != tr.path {
		require.NoError(tr.t, os.MkdirAll(dir, 0o755))
	}

	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

// deleteFile removes a file from the working directory ahead of a commit.
func (tr *testRepo) deleteFile(name string) {
	tr.t.Helper()

	require.NoError(tr.t, os.Remove(filepath.Join(tr.path, name)))
}

// commit stages the entire working directory and creates a commit on HEAD.
func (tr *testRepo) commit(message string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)
	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)
	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	var parents []*git2go.Commit

	if head, headErr := tr.native.Head(); headErr == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}
