package gitlib

import (
	"errors"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrRefNotFound is returned when a ref string cannot be resolved to a commit.
var ErrRefNotFound = errors.New("ref not found")

// RevParse resolves a ref expression to a commit hash. It accepts HEAD,
// HEAD~N, tags, branch names, and abbreviated shas. Range forms (a..b,
// a...b) are the caller's responsibility to split before calling RevParse.
func (r *Repository) RevParse(ref string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(ref)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s is not a commit-ish", ErrRefNotFound, ref)
	}
	defer peeled.Free()

	return HashFromOid(peeled.Id()), nil
}

// DefaultBranch returns the short name of the repository's default branch,
// resolved from the symbolic HEAD reference.
func (r *Repository) DefaultBranch() (string, error) {
	ref, err := r.repo.References.Lookup("HEAD")
	if err != nil {
		return "", fmt.Errorf("lookup HEAD: %w", err)
	}
	defer ref.Free()

	target := ref.SymbolicTarget()
	if target == "" {
		return "", fmt.Errorf("%w: HEAD is detached", ErrRefNotFound)
	}

	return strings.TrimPrefix(target, "refs/heads/"), nil
}

// ConfigString reads a single string value from the repository's git config
// (merging system/global/local scopes as libgit2 does), e.g. "pkgs.batchSize".
// Returns ok=false if the key is unset.
func (r *Repository) ConfigString(key string) (value string, ok bool) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", false
	}
	defer cfg.Free()

	val, err := cfg.LookupString(key)
	if err != nil {
		return "", false
	}

	return val, true
}

// ConfigStrings reads a multivalued git config key (e.g. "pkgs.ecosystems"
// set via repeated `git config --add`).
func (r *Repository) ConfigStrings(key string) []string {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil
	}
	defer cfg.Free()

	var values []string

	iter, err := cfg.MultivarIterator(key, "")
	if err != nil {
		return nil
	}
	defer iter.Free()

	for {
		entry, iterErr := iter.Next()
		if iterErr != nil {
			break
		}

		values = append(values, entry.Value)
	}

	return values
}
