// Package query implements the read-only query surface (C8): list,
// history, blame, stale, stats, diff, show, log, and where. Every
// function composes pkg/store's read methods and pkg/reconstruct's
// replay algorithm; none of them mutate the store, except that refs
// resolved by list (and so blame/stale), diff and show that are not yet
// tracked are lazily materialized via pkg/updater.LazyMaterialize.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/reconstruct"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
	"github.com/Sumatoshi-tech/codefang/pkg/updater"
	"github.com/Sumatoshi-tech/codefang/pkg/wheretree"
)

// EcosystemFilter reports whether ecosystem should be included; every
// query short-circuits before the store when it returns false for the
// query's requested ecosystem (§4.8's "short-circuits before the store").
type EcosystemFilter func(ecosystem string) bool

// AllEcosystems accepts every ecosystem; the default when no filter is
// configured (repo-config's pkgs.ecosystems empty means "all").
func AllEcosystems(string) bool { return true }

// resolveCommit returns the store's metadata for ref, resolving "" to the
// default branch's tip and lazily materializing refs the store has never
// seen (scenario 6: diff against a ref not yet indexed).
func resolveCommit(ctx context.Context, repo *gitlib.Repository, st *store.Store, ref string) (store.CommitMeta, error) {
	if ref == "" {
		branch, err := repo.DefaultBranch()
		if err != nil {
			return store.CommitMeta{}, gperrors.Wrap(gperrors.KindRefNotFound, err)
		}

		ref = branch
	}

	hash, err := repo.RevParse(ref)
	if err != nil {
		return store.CommitMeta{}, gperrors.Wrap(gperrors.KindRefNotFound, err)
	}

	if meta, ok, err := st.LookupCommitBySHA(ctx, hash.String()); err != nil {
		return store.CommitMeta{}, err
	} else if ok {
		return meta, nil
	}

	return updater.LazyMaterialize(ctx, repo, st, hash.String())
}

// List returns the dependency set at ref (the current default branch tip
// if ref is empty), optionally filtered by ecosystem and manifest path.
func List(ctx context.Context, repo *gitlib.Repository, st *store.Store, ref, ecosystem, manifestPath string, filter EcosystemFilter) ([]reconstruct.Dependency, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	if ecosystem != "" && !filter(ecosystem) {
		return nil, nil
	}

	target, err := resolveCommit(ctx, repo, st, ref)
	if err != nil {
		return nil, err
	}

	deps, err := reconstruct.DepsAt(ctx, st, target)
	if err != nil {
		return nil, fmt.Errorf("deps at %s: %w", target.SHA, err)
	}

	out := deps[:0]

	for _, d := range deps {
		if ecosystem != "" && d.Ecosystem != ecosystem {
			continue
		}

		if manifestPath != "" && d.ManifestPath != manifestPath {
			continue
		}

		if !filter(d.Ecosystem) {
			continue
		}

		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ManifestPath != out[j].ManifestPath {
			return out[i].ManifestPath < out[j].ManifestPath
		}

		return out[i].Name < out[j].Name
	})

	return out, nil
}

// HistoryOptions filters the History query.
type HistoryOptions struct {
	Name      string
	Ecosystem string
	Author    string
	Since     string
	Until     string
}

// History returns dependency_changes rows matching opts, ordered by
// committed-time (§4.8 "history of a name").
func History(ctx context.Context, st *store.Store, opts HistoryOptions, filter EcosystemFilter) ([]store.ChangeEntry, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	if opts.Ecosystem != "" && !filter(opts.Ecosystem) {
		return nil, nil
	}

	changes, err := st.HistoryForName(ctx, opts.Name, opts.Ecosystem)
	if err != nil {
		return nil, fmt.Errorf("history for %q: %w", opts.Name, err)
	}

	out := changes[:0]

	for _, c := range changes {
		if !filter(c.Ecosystem) {
			continue
		}

		if opts.Author != "" && c.AuthorName != opts.Author {
			continue
		}

		if opts.Since != "" && c.CommittedAt < opts.Since {
			continue
		}

		if opts.Until != "" && c.CommittedAt > opts.Until {
			continue
		}

		out = append(out, c)
	}

	return out, nil
}

// BlameEntry names the earliest change that produced a current
// dependency's requirement.
type BlameEntry struct {
	Dependency reconstruct.Dependency
	Change     store.ChangeEntry
}

// Blame reports, for every dependency currently present at ref, the
// earliest added/modified change (by committed-time) that produced its
// current requirement (§4.8 "blame").
func Blame(ctx context.Context, repo *gitlib.Repository, st *store.Store, ref, ecosystem string, filter EcosystemFilter) ([]BlameEntry, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	if ecosystem != "" && !filter(ecosystem) {
		return nil, nil
	}

	deps, err := List(ctx, repo, st, ref, ecosystem, "", filter)
	if err != nil {
		return nil, err
	}

	out := make([]BlameEntry, 0, len(deps))

	for _, d := range deps {
		changes, err := st.ChangesForDependency(ctx, d.ManifestPath, d.Name)
		if err != nil {
			return nil, fmt.Errorf("changes for %s/%s: %w", d.ManifestPath, d.Name, err)
		}

		entry, ok := latestMatchingChange(changes, d.Requirement)
		if !ok {
			continue
		}

		out = append(out, BlameEntry{Dependency: d, Change: entry})
	}

	return out, nil
}

// latestMatchingChange scans changes (ascending by committed-time) for the
// latest contiguous run of the same requirement ending at the current
// value, returning the first (earliest) change of that run — the commit
// that introduced the requirement currently in effect.
func latestMatchingChange(changes []store.ChangeEntry, currentRequirement string) (store.ChangeEntry, bool) {
	var winner store.ChangeEntry

	found := false

	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		if c.ChangeType == "removed" {
			break
		}

		if c.Requirement != currentRequirement {
			break
		}

		winner = c
		found = true
	}

	return winner, found
}

// StaleEntry reports the most recent change committed-time for a current
// dependency.
type StaleEntry struct {
	Dependency  reconstruct.Dependency
	LastChanged string
}

// Stale reports, for every dependency currently present at ref, the
// max(committed_at) across its changes (§4.8 "stale").
func Stale(ctx context.Context, repo *gitlib.Repository, st *store.Store, ref, ecosystem string, filter EcosystemFilter) ([]StaleEntry, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	if ecosystem != "" && !filter(ecosystem) {
		return nil, nil
	}

	deps, err := List(ctx, repo, st, ref, ecosystem, "", filter)
	if err != nil {
		return nil, err
	}

	out := make([]StaleEntry, 0, len(deps))

	for _, d := range deps {
		changes, err := st.ChangesForDependency(ctx, d.ManifestPath, d.Name)
		if err != nil {
			return nil, fmt.Errorf("changes for %s/%s: %w", d.ManifestPath, d.Name, err)
		}

		if len(changes) == 0 {
			continue
		}

		out = append(out, StaleEntry{Dependency: d, LastChanged: changes[len(changes)-1].CommittedAt})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastChanged < out[j].LastChanged })

	return out, nil
}

// StatsOptions filters the Stats query.
type StatsOptions struct {
	ByAuthor  bool
	Ecosystem string
	Since     string
	Until     string
}

// StatsResult holds every aggregation dimension the stats query can
// produce (§4.8 "count aggregations by author, ecosystem, manifest,
// name"); ByAuthor is always populated, the rest only when opts.ByAuthor
// is false (the CLI's default, non-`--by-author` view).
type StatsResult struct {
	ByAuthor    map[string]int
	ByEcosystem map[string]int
	ByManifest  map[string]int
	ByName      map[string]int
}

// Stats computes the requested aggregation(s).
func Stats(ctx context.Context, st *store.Store, opts StatsOptions, filter EcosystemFilter) (StatsResult, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	if opts.Ecosystem != "" && !filter(opts.Ecosystem) {
		return StatsResult{}, nil
	}

	var result StatsResult

	var err error

	result.ByAuthor, err = st.StatsByAuthor(ctx, opts.Ecosystem, opts.Since, opts.Until)
	if err != nil || opts.ByAuthor {
		return result, err
	}

	result.ByEcosystem, err = st.StatsByEcosystem(ctx, opts.Since, opts.Until)
	if err != nil {
		return StatsResult{}, err
	}

	result.ByManifest, err = st.StatsByManifest(ctx, opts.Ecosystem, opts.Since, opts.Until)
	if err != nil {
		return StatsResult{}, err
	}

	result.ByName, err = st.StatsByName(ctx, opts.Ecosystem, opts.Since, opts.Until)

	return result, err
}

// DiffResult is the set difference between two dependency snapshots
// (§4.8 "diff", P4).
type DiffResult struct {
	Added    []reconstruct.Dependency
	Removed  []reconstruct.Dependency
	Modified []ModifiedDependency
}

// ModifiedDependency is one dependency whose requirement changed between
// the two sides of a diff.
type ModifiedDependency struct {
	ManifestPath string
	Name         string
	Ecosystem    string
	From         string
	To           string
}

// Diff computes deps_at(to) - deps_at(from) (added), deps_at(from) -
// deps_at(to) (removed), and changed-requirement intersections
// (modified), resolving and lazily materializing either ref as needed
// (scenario 6).
func Diff(ctx context.Context, repo *gitlib.Repository, st *store.Store, from, to string, filter EcosystemFilter) (DiffResult, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	fromMeta, err := resolveCommit(ctx, repo, st, from)
	if err != nil {
		return DiffResult{}, fmt.Errorf("resolve from ref %q: %w", from, err)
	}

	toMeta, err := resolveCommit(ctx, repo, st, to)
	if err != nil {
		return DiffResult{}, fmt.Errorf("resolve to ref %q: %w", to, err)
	}

	fromDeps, err := reconstruct.DepsAt(ctx, st, fromMeta)
	if err != nil {
		return DiffResult{}, fmt.Errorf("deps at %s: %w", fromMeta.SHA, err)
	}

	toDeps, err := reconstruct.DepsAt(ctx, st, toMeta)
	if err != nil {
		return DiffResult{}, fmt.Errorf("deps at %s: %w", toMeta.SHA, err)
	}

	type depKey struct{ manifestPath, name string }

	fromByKey := make(map[depKey]reconstruct.Dependency, len(fromDeps))
	for _, d := range fromDeps {
		if !filter(d.Ecosystem) {
			continue
		}

		fromByKey[depKey{d.ManifestPath, d.Name}] = d
	}

	toByKey := make(map[depKey]reconstruct.Dependency, len(toDeps))
	for _, d := range toDeps {
		if !filter(d.Ecosystem) {
			continue
		}

		toByKey[depKey{d.ManifestPath, d.Name}] = d
	}

	var result DiffResult

	for k, d := range toByKey {
		prev, existed := fromByKey[k]

		switch {
		case !existed:
			result.Added = append(result.Added, d)
		case prev.Requirement != d.Requirement:
			result.Modified = append(result.Modified, ModifiedDependency{
				ManifestPath: d.ManifestPath, Name: d.Name, Ecosystem: d.Ecosystem,
				From: prev.Requirement, To: d.Requirement,
			})
		}
	}

	for k, d := range fromByKey {
		if _, stillPresent := toByKey[k]; !stillPresent {
			result.Removed = append(result.Removed, d)
		}
	}

	sortDeps(result.Added)
	sortDeps(result.Removed)
	sort.Slice(result.Modified, func(i, j int) bool {
		if result.Modified[i].ManifestPath != result.Modified[j].ManifestPath {
			return result.Modified[i].ManifestPath < result.Modified[j].ManifestPath
		}

		return result.Modified[i].Name < result.Modified[j].Name
	})

	return result, nil
}

func sortDeps(deps []reconstruct.Dependency) {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].ManifestPath != deps[j].ManifestPath {
			return deps[i].ManifestPath < deps[j].ManifestPath
		}

		return deps[i].Name < deps[j].Name
	})
}

// Show returns every dependency_changes row for ref's commit (§4.8
// "show"), lazily materializing ref if the store has never seen it.
func Show(ctx context.Context, repo *gitlib.Repository, st *store.Store, ref string, filter EcosystemFilter) ([]store.ChangeEntry, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	meta, err := resolveCommit(ctx, repo, st, ref)
	if err != nil {
		return nil, err
	}

	changes, err := st.ChangesForCommit(ctx, meta.SHA)
	if err != nil {
		return nil, fmt.Errorf("changes for %s: %w", meta.SHA, err)
	}

	out := changes[:0]

	for _, c := range changes {
		if filter(c.Ecosystem) {
			out = append(out, c)
		}
	}

	return out, nil
}

// Log returns commits with has_dependency_changes=true, newest first,
// annotated with their change counts (§4.8 "log").
func Log(ctx context.Context, st *store.Store, author string, limit int) ([]store.LoggedCommit, error) {
	return st.LoggedCommits(ctx, author, limit)
}

// Where locates name in the current working tree's manifest files (§4.8
// "where", §9's persisted/live-tree boundary split): the store supplies
// the candidate manifest paths, pkg/wheretree scans their live content.
func Where(ctx context.Context, repo *gitlib.Repository, st *store.Store, name, ecosystem string, contextLines int, filter EcosystemFilter) ([]wheretree.Match, error) {
	if filter == nil {
		filter = AllEcosystems
	}

	if ecosystem != "" && !filter(ecosystem) {
		return nil, nil
	}

	paths, err := st.ManifestPaths(ctx, ecosystem)
	if err != nil {
		return nil, fmt.Errorf("list manifest paths: %w", err)
	}

	return wheretree.Find(repo.WorkDir(), paths, name, contextLines)
}
