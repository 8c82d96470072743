// Package indexer implements the init(branch?) algorithm (C5): a full
// history walk that bulk-populates the store from scratch, maintaining a
// live dependency snapshot and periodic snapshot checkpoints as it goes.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/codefang/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
	git2go "github.com/libgit2/git2go/v34"
)

// Phase identifies which step of the algorithm a ProgressEvent was emitted from.
type Phase string

const (
	PhaseResolving  Phase = "resolving"
	PhaseWalking    Phase = "walking"
	PhasePrefetch   Phase = "prefetch"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
)

// ProgressEvent is one update emitted to the caller-supplied ProgressFunc.
// The indexer never renders terminal output itself.
type ProgressEvent struct {
	Phase            Phase
	CommitsProcessed int
	TotalCommits     int
	ChangesFound     int
	CurrentSHA       string
}

// ProgressFunc receives ProgressEvents as the index run proceeds. A nil
// func is valid and disables reporting (quiet mode).
type ProgressFunc func(ProgressEvent)

// Options configures one init(branch?) run.
type Options struct {
	Branch           string // empty resolves the repo's default branch
	Since            string // commit-ish to start the walk at (inclusive); empty walks from the root
	Force            bool   // wipe and rebuild an existing store
	BatchSize        int
	SnapshotInterval int
	Threads          int
	Progress         ProgressFunc
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}

	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = 50
	}

	if o.Threads <= 0 {
		o.Threads = 4
	}

	return o
}

func (o Options) report(ev ProgressEvent) {
	if o.Progress != nil {
		o.Progress(ev)
	}
}

// Run executes the full init(branch?) algorithm against repo, writing into st.
func Run(ctx context.Context, repo *gitlib.Repository, st *store.Store, reg *manifest.Registry, opts Options) error {
	opts = opts.withDefaults()

	opts.report(ProgressEvent{Phase: PhaseResolving})

	branch := opts.Branch
	if branch == "" {
		resolved, err := repo.DefaultBranch()
		if err != nil {
			return gperrors.Wrap(gperrors.KindRefNotFound, err)
		}

		branch = resolved
	}

	tip, err := repo.RevParse(branch)
	if err != nil {
		return gperrors.Wrap(gperrors.KindRefNotFound, err)
	}

	if opts.Force {
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}

	var since string

	if opts.Since != "" {
		sinceHash, sinceErr := repo.RevParse(opts.Since)
		if sinceErr != nil {
			return gperrors.Wrap(gperrors.KindRefNotFound, sinceErr)
		}

		since = sinceHash.String()
	}

	commits, err := walkFullHistory(repo, tip, since)
	if err != nil {
		return fmt.Errorf("walk history: %w", err)
	}
	defer freeCommits(commits)

	opts.report(ProgressEvent{Phase: PhaseWalking, TotalCommits: len(commits)})

	var prefetched map[gitlib.Hash][]gitlib.PathChange

	if len(commits) >= gitlib.PrefetchThreshold {
		opts.report(ProgressEvent{Phase: PhasePrefetch, TotalCommits: len(commits)})

		prefetched, err = gitlib.PrefetchChangedPaths(repo.Path(), commits, opts.Threads)
		if err != nil {
			return fmt.Errorf("prefetch changed paths: %w", err)
		}
	}

	if err := st.BeginBulkLoad(ctx); err != nil {
		return fmt.Errorf("begin bulk load: %w", err)
	}

	an := analyzer.New(reg)
	snapshot := analyzer.Snapshot{}
	manifestsSeen := map[string]manifest.Kind{}
	manifestEcosystem := map[string]string{}

	batch := &store.Batch{BranchName: branch}

	var (
		changesSinceSnapshot int
		lastSnapshotSHA      string
		totalChanges         int
		tipSHA               string
		tipHasChanges        bool
	)

	for i, commit := range commits {
		if err := ctx.Err(); err != nil {
			return gperrors.Wrap(gperrors.KindCancelled, err)
		}

		sha := commit.Hash().String()

		row := store.CommitRow{
			SHA:         sha,
			Message:     commit.Message(),
			AuthorName:  commit.Author().Name,
			AuthorEmail: commit.Author().Email,
			CommittedAt: commit.Committer().When.UTC().Format(time.RFC3339),
		}

		var changes []analyzer.Change

		if commit.NumParents() < 2 {
			paths, pathsErr := changedPathsFor(repo, commit, prefetched)
			if pathsErr != nil {
				return fmt.Errorf("changed paths for %s: %w", sha, pathsErr)
			}

			if an.QuickMatch(paths) {
				var parent *gitlib.Commit

				if commit.NumParents() > 0 {
					parent, err = commit.Parent(0)
					if err != nil {
						return fmt.Errorf("load parent of %s: %w", sha, err)
					}
				}

				changes, err = an.AnalyzeCommit(repo, commit, parent, paths, snapshot)

				if parent != nil {
					parent.Free()
				}

				if err != nil {
					return fmt.Errorf("analyze %s: %w", sha, err)
				}
			}
		}

		row.HasDependencyChanges = len(changes) > 0
		batch.Commits = append(batch.Commits, row)
		batch.BranchCommitSHAs = append(batch.BranchCommitSHAs, sha)
		tipSHA = sha
		tipHasChanges = row.HasDependencyChanges

		if len(changes) > 0 {
			totalChanges += len(changes)
			changesSinceSnapshot++

			for _, c := range changes {
				manifestsSeen[c.ManifestPath] = c.Kind
				manifestEcosystem[c.ManifestPath] = c.Ecosystem

				batch.Changes = append(batch.Changes, store.ChangeRow{
					CommitSHA:           sha,
					ManifestPath:        c.ManifestPath,
					Name:                c.Name,
					Ecosystem:           c.Ecosystem,
					ChangeType:          string(c.ChangeType),
					Requirement:         c.Requirement,
					PreviousRequirement: c.PreviousRequirement,
					DependencyType:      string(c.DependencyType),
				})
			}

			if changesSinceSnapshot >= opts.SnapshotInterval {
				appendSnapshotRows(batch, sha, snapshot, manifestsSeen, manifestEcosystem)
				lastSnapshotSHA = sha
				changesSinceSnapshot = 0
			}
		}

		opts.report(ProgressEvent{
			Phase: PhaseAnalyzing, CommitsProcessed: i + 1, TotalCommits: len(commits),
			ChangesFound: totalChanges, CurrentSHA: sha,
		})

		if len(batch.Commits) >= opts.BatchSize {
			flushManifests(batch, manifestsSeen, manifestEcosystem)

			if err := st.Flush(ctx, batch); err != nil {
				return fmt.Errorf("flush batch: %w", err)
			}

			batch.Reset()
		}
	}

	opts.report(ProgressEvent{Phase: PhaseFinalizing})

	if tipSHA != "" && tipHasChanges && lastSnapshotSHA != tipSHA {
		appendSnapshotRows(batch, tipSHA, snapshot, manifestsSeen, manifestEcosystem)
	}

	flushManifests(batch, manifestsSeen, manifestEcosystem)

	if err := st.Flush(ctx, batch); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	if err := st.EndBulkLoad(ctx); err != nil {
		return fmt.Errorf("end bulk load: %w", err)
	}

	if err := st.SetBranchCheckpoint(ctx, branch, tip.String()); err != nil {
		return fmt.Errorf("set branch checkpoint: %w", err)
	}

	opts.report(ProgressEvent{Phase: PhaseDone, CommitsProcessed: len(commits), TotalCommits: len(commits), ChangesFound: totalChanges})

	return nil
}

// flushManifests appends every manifest path discovered so far to the
// batch's Manifests slice (idempotent thanks to the store's upsert-by-path),
// then clears the discovery maps for the next batch.
func flushManifests(batch *store.Batch, seen map[string]manifest.Kind, ecosystem map[string]string) {
	for path, kind := range seen {
		batch.Manifests = append(batch.Manifests, store.ManifestRow{
			Path: path, Ecosystem: ecosystem[path], Kind: string(kind),
		})
	}

	clear(seen)
	clear(ecosystem)
}

func appendSnapshotRows(batch *store.Batch, sha string, snapshot analyzer.Snapshot, seen map[string]manifest.Kind, ecosystem map[string]string) {
	for key, value := range snapshot {
		seen[key.ManifestPath] = value.Kind
		ecosystem[key.ManifestPath] = value.Ecosystem

		batch.Snapshots = append(batch.Snapshots, store.SnapshotRow{
			CommitSHA: sha, ManifestPath: key.ManifestPath, Name: key.Name,
			Ecosystem: value.Ecosystem, Requirement: value.Requirement, DependencyType: string(value.DependencyType),
		})
	}
}

func changedPathsFor(repo *gitlib.Repository, commit *gitlib.Commit, prefetched map[gitlib.Hash][]gitlib.PathChange) ([]gitlib.PathChange, error) {
	if prefetched != nil {
		if paths, ok := prefetched[commit.Hash()]; ok {
			return paths, nil
		}
	}

	return gitlib.ChangedPaths(repo, commit)
}

// walkFullHistory returns every commit reachable from tip, oldest first
// (parent-first topological order), matching the teacher's Log+Reverse
// idiom but rooted at an arbitrary branch tip instead of HEAD. When since
// is non-empty, the walk is bounded to start at (and include) that
// commit, using the same walk-the-whole-range-then-truncate approach as
// the updater's commitsSince, since gitlib's RevWalk exposes no
// ancestor-hiding primitive to stop the walk early.
func walkFullHistory(repo *gitlib.Repository, tip gitlib.Hash, since string) ([]*gitlib.Commit, error) {
	walk, err := repo.Walk()
	if err != nil {
		return nil, err
	}
	defer walk.Free()

	if err := walk.Push(tip); err != nil {
		return nil, err
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	var commits []*gitlib.Commit

	err = walk.Iterate(func(c *gitlib.Commit) bool {
		commits = append(commits, c)

		return true
	})
	if err != nil {
		return nil, err
	}

	gitlib.ReverseCommits(commits)

	if since == "" {
		return commits, nil
	}

	splitAt := -1

	for i, c := range commits {
		if c.Hash().String() == since {
			splitAt = i

			break
		}
	}

	if splitAt < 0 {
		freeCommits(commits)

		return nil, gperrors.New(gperrors.KindRefNotFound, fmt.Sprintf("commit %s is not an ancestor of the walked tip", since))
	}

	for _, c := range commits[:splitAt] {
		c.Free()
	}

	return commits[splitAt:], nil
}

func freeCommits(commits []*gitlib.Commit) {
	for _, c := range commits {
		c.Free()
	}
}
