// Package gittest builds small throwaway git repositories for exercising
// the indexer, updater, and reconstructor against real commit history
// instead of hand-rolled fixtures.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
)

// Repo is a disposable git repository rooted at a t.TempDir().
type Repo struct {
	t      *testing.T
	Path   string
	native *git2go.Repository
}

// New initializes an empty repository. The native handle is freed
// automatically via t.Cleanup.
func New(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()

	native, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	r := &Repo{t: t, Path: dir, native: native}
	t.Cleanup(native.Free)

	return r
}

// Open returns a gitlib.Repository handle on this fixture, freed via
// t.Cleanup.
func (r *Repo) Open() *gitlib.Repository {
	r.t.Helper()

	repo, err := gitlib.OpenRepository(r.Path)
	require.NoError(r.t, err)

	r.t.Cleanup(repo.Free)

	return repo
}

// WriteFile writes content at path relative to the repository root,
// creating parent directories as needed. It does not stage or commit.
func (r *Repo) WriteFile(path, content string) {
	r.t.Helper()

	full := filepath.Join(r.Path, path)

	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o644))
}

// RemoveFile deletes a file from the working directory ahead of a commit.
func (r *Repo) RemoveFile(path string) {
	r.t.Helper()

	require.NoError(r.t, os.Remove(filepath.Join(r.Path, path)))
}

// CommitOpts customizes a fixture commit's authorship and timestamp.
// CommitterWhen (and the Committer* fields) default to the author's
// values when left zero, so most fixtures get a single effective
// signature; set them explicitly to simulate a rebase or cherry-pick,
// where the author timestamp is carried over but the committer
// timestamp is not.
type CommitOpts struct {
	AuthorName     string
	AuthorEmail    string
	When           time.Time
	CommitterName  string
	CommitterEmail string
	CommitterWhen  time.Time
}

func (o CommitOpts) withDefaults() CommitOpts {
	if o.AuthorName == "" {
		o.AuthorName = "Fixture User"
	}

	if o.AuthorEmail == "" {
		o.AuthorEmail = "fixture@example.com"
	}

	if o.When.IsZero() {
		o.When = time.Now()
	}

	if o.CommitterName == "" {
		o.CommitterName = o.AuthorName
	}

	if o.CommitterEmail == "" {
		o.CommitterEmail = o.AuthorEmail
	}

	if o.CommitterWhen.IsZero() {
		o.CommitterWhen = o.When
	}

	return o
}

// Commit stages the entire working tree and commits it to HEAD.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	return r.CommitAs(message, CommitOpts{})
}

// CommitAs is Commit with explicit authorship/timestamp, letting scenario
// tests control commit ordering for committed-time-ordering assertions.
func (r *Repo) CommitAs(message string, opts CommitOpts) gitlib.Hash {
	r.t.Helper()

	opts = opts.withDefaults()

	index, err := r.native.Index()
	require.NoError(r.t, err)
	defer index.Free()

	require.NoError(r.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(r.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	tree, err := r.native.LookupTree(treeID)
	require.NoError(r.t, err)
	defer tree.Free()

	authorSig := &git2go.Signature{Name: opts.AuthorName, Email: opts.AuthorEmail, When: opts.When}
	committerSig := &git2go.Signature{Name: opts.CommitterName, Email: opts.CommitterEmail, When: opts.CommitterWhen}

	var parents []*git2go.Commit

	if head, headErr := r.native.Head(); headErr == nil {
		headCommit, lookupErr := r.native.LookupCommit(head.Target())
		require.NoError(r.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := r.native.CreateCommit("HEAD", authorSig, committerSig, message, tree, parents...)
	require.NoError(r.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// Tag creates a lightweight tag at HEAD.
func (r *Repo) Tag(name string) {
	r.t.Helper()

	head, err := r.native.Head()
	require.NoError(r.t, err)
	defer head.Free()

	headCommit, err := r.native.LookupCommit(head.Target())
	require.NoError(r.t, err)
	defer headCommit.Free()

	_, err = r.native.Tags.CreateLightweight(name, headCommit, false)
	require.NoError(r.t, err)
}

// Branch creates a new branch at HEAD without checking it out.
func (r *Repo) Branch(name string) {
	r.t.Helper()

	head, err := r.native.Head()
	require.NoError(r.t, err)
	defer head.Free()

	headCommit, err := r.native.LookupCommit(head.Target())
	require.NoError(r.t, err)
	defer headCommit.Free()

	_, err = r.native.CreateBranch(name, headCommit, false)
	require.NoError(r.t, err)
}

// Checkout switches HEAD to the named branch and updates the working tree.
func (r *Repo) Checkout(branch string) {
	r.t.Helper()

	ref := "refs/heads/" + branch

	require.NoError(r.t, r.native.SetHead(ref))

	opts, err := git2go.DefaultCheckoutOptions()
	require.NoError(r.t, err)

	opts.Strategy = git2go.CheckoutForce
	require.NoError(r.t, r.native.CheckoutHead(&opts))
}

// SetConfig sets a local repo-config key, for exercising pkgs.* resolution.
func (r *Repo) SetConfig(key, value string) {
	r.t.Helper()

	cfg, err := r.native.Config()
	require.NoError(r.t, err)
	defer cfg.Free()

	require.NoError(r.t, cfg.SetString(key, value))
}
