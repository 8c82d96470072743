package gitlib

import (
	"runtime"
	"sync"
)

// PrefetchThreshold is the commit-count floor below which PrefetchChangedPaths
// processes everything on the calling goroutine. Below it, worker-pool startup
// overhead exceeds the gain from parallel diffing.
const PrefetchThreshold = 1500

// PathStatus classifies how a path changed relative to a commit's first parent.
type PathStatus int

const (
	// PathAdded means the path did not exist in the first parent.
	PathAdded PathStatus = iota
	// PathModified means the path existed in both and its content changed.
	PathModified
	// PathDeleted means the path existed in the first parent but not in the commit.
	PathDeleted
)

// PathChange is one changed path in a commit, relative to its first parent.
type PathChange struct {
	Path   string
	Status PathStatus
}

// ChangedPaths returns the set of paths changed by commit relative to its
// first parent. A root commit (no parents) reports every blob as added.
func ChangedPaths(repo *Repository, commit *Commit) ([]PathChange, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	var parentTree *Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return nil, parentErr
		}

		parentTree, err = parent.Tree()
		parent.Free()

		if err != nil {
			return nil, err
		}

		defer parentTree.Free()
	}

	var changes Changes

	if parentTree == nil {
		changes, err = InitialTreeChanges(repo, tree)
	} else {
		changes, err = TreeDiff(repo, parentTree, tree)
	}

	if err != nil {
		return nil, err
	}

	return toPathChanges(changes), nil
}

func toPathChanges(changes Changes) []PathChange {
	out := make([]PathChange, 0, len(changes))

	for _, c := range changes {
		switch c.Action {
		case Insert:
			out = append(out, PathChange{Path: c.To.Name, Status: PathAdded})
		case Delete:
			out = append(out, PathChange{Path: c.From.Name, Status: PathDeleted})
		case Modify:
			out = append(out, PathChange{Path: c.To.Name, Status: PathModified})
		}
	}

	return out
}

// PrefetchChangedPaths computes ChangedPaths for every commit in parallel and
// returns a map keyed by commit hash. The ordering guarantee is external:
// callers still consume commits in walker order; this only warms the map.
//
// Each worker opens its own Repository handle on repoPath so libgit2 object
// reads never cross goroutines on a shared handle. threads<=1, or a commit
// count below PrefetchThreshold, runs serially on the calling goroutine.
func PrefetchChangedPaths(repoPath string, commits []*Commit, threads int) (map[Hash][]PathChange, error) {
	hashes := make([]Hash, len(commits))
	for i, c := range commits {
		hashes[i] = c.Hash()
	}

	result := make(map[Hash][]PathChange, len(hashes))

	if threads <= 1 || len(hashes) < PrefetchThreshold {
		repo, err := OpenRepository(repoPath)
		if err != nil {
			return nil, err
		}
		defer repo.Free()

		for _, h := range hashes {
			changes, changesErr := changedPathsByHash(repo, h)
			if changesErr != nil {
				continue
			}

			result[h] = changes
		}

		return result, nil
	}

	if threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	}

	jobs := make(chan Hash)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for range threads {
		wg.Add(1)

		go func() {
			defer wg.Done()

			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			repo, err := OpenRepository(repoPath)
			if err != nil {
				return
			}
			defer repo.Free()

			for h := range jobs {
				changes, changesErr := changedPathsByHash(repo, h)
				if changesErr != nil {
					continue
				}

				mu.Lock()
				result[h] = changes
				mu.Unlock()
			}
		}()
	}

	for _, h := range hashes {
		jobs <- h
	}

	close(jobs)
	wg.Wait()

	return result, nil
}

// changedPathsByHash looks up the commit on repo's own handle before diffing,
// since libgit2 objects are only safe to use on the handle that produced them.
func changedPathsByHash(repo *Repository, h Hash) ([]PathChange, error) {
	commit, err := repo.LookupCommit(h)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	return ChangedPaths(repo, commit)
}
