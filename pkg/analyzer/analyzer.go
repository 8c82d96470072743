// Package analyzer implements the per-commit dependency diff algorithm: a
// quick path prefilter, authoritative manifest identification/parsing via
// pkg/manifest, and add/modify/remove delta computation against a running
// live snapshot.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
)

// ChangeType classifies one DependencyChange event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is a single dependency delta produced by analyzing one commit.
type Change struct {
	ManifestPath        string
	Ecosystem           string
	Kind                manifest.Kind
	Name                string
	ChangeType          ChangeType
	Requirement         string
	PreviousRequirement *string
	DependencyType      manifest.DependencyType
}

// SnapshotKey identifies one live dependency within the snapshot map.
type SnapshotKey struct {
	ManifestPath string
	Name         string
}

// SnapshotValue is the live state recorded for one SnapshotKey.
type SnapshotValue struct {
	Ecosystem      string
	Kind           manifest.Kind
	Requirement    string
	DependencyType manifest.DependencyType
}

// Snapshot is the indexer's hot mutable `(manifest_path, name) -> value`
// mapping, live only for the duration of an index/update run.
type Snapshot map[SnapshotKey]SnapshotValue

// Analyzer runs the two-stage filter and diff algorithm described in the
// component design: a cheap regex prefilter, then authoritative identify
// and parse via the manifest registry, with a blob-content parse cache.
type Analyzer struct {
	registry  *manifest.Registry
	prefilter *regexp.Regexp
	cache     *blobCache
}

// New builds an Analyzer around reg, compiling the quick prefilter from the
// registry's path hints.
func New(reg *manifest.Registry) *Analyzer {
	return &Analyzer{
		registry:  reg,
		prefilter: compilePrefilter(reg.Hints()),
		cache:     newBlobCache(),
	}
}

func compilePrefilter(hints []string) *regexp.Regexp {
	if len(hints) == 0 {
		return regexp.MustCompile(`$^`) // matches nothing
	}

	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, regexp.QuoteMeta(h))
	}

	return regexp.MustCompile(strings.Join(parts, "|"))
}

// QuickMatch reports whether any changed path could plausibly be a
// manifest, without invoking the authoritative C1 identification. An empty
// result here means the commit is skipped entirely.
func (a *Analyzer) QuickMatch(paths []gitlib.PathChange) bool {
	for _, p := range paths {
		if a.prefilter.MatchString(p.Path) {
			return true
		}
	}

	return false
}

// AnalyzeCommit computes the dependency deltas for one non-merge commit
// given its changed-path set, mutating snapshot in place and returning the
// list of Change events. parent may be nil for a root commit.
func (a *Analyzer) AnalyzeCommit(repo *gitlib.Repository, commit, parent *gitlib.Commit, paths []gitlib.PathChange, snapshot Snapshot) ([]Change, error) {
	var changes []Change

	for _, pc := range paths {
		if len(a.registry.Identify([]string{pc.Path})) == 0 {
			continue
		}

		var (
			cs  []Change
			err error
		)

		switch pc.Status {
		case gitlib.PathAdded:
			cs, err = a.analyzeAdded(repo, commit, pc.Path, snapshot)
		case gitlib.PathModified:
			cs, err = a.analyzeModified(repo, commit, parent, pc.Path, snapshot)
		case gitlib.PathDeleted:
			cs, err = a.analyzeDeleted(repo, parent, pc.Path, snapshot)
		}

		if err != nil {
			return nil, err
		}

		changes = append(changes, cs...)
	}

	return changes, nil
}

func (a *Analyzer) analyzeAdded(repo *gitlib.Repository, commit *gitlib.Commit, path string, snapshot Snapshot) ([]Change, error) {
	result, ok := a.parseAt(repo, commit, path)
	if !ok {
		return nil, nil
	}

	changes := make([]Change, 0, len(result.Dependencies))

	for _, dep := range result.Dependencies {
		key := SnapshotKey{ManifestPath: path, Name: dep.Name}
		snapshot[key] = SnapshotValue{
			Ecosystem:      result.Ecosystem,
			Kind:           result.Kind,
			Requirement:    dep.Requirement,
			DependencyType: dep.DependencyType,
		}

		changes = append(changes, Change{
			ManifestPath:   path,
			Ecosystem:      result.Ecosystem,
			Kind:           result.Kind,
			Name:           dep.Name,
			ChangeType:     ChangeAdded,
			Requirement:    dep.Requirement,
			DependencyType: dep.DependencyType,
		})
	}

	return changes, nil
}

func (a *Analyzer) analyzeModified(repo *gitlib.Repository, commit, parent *gitlib.Commit, path string, snapshot Snapshot) ([]Change, error) {
	current, currentOK := a.parseAt(repo, commit, path)

	var previous *manifest.Result

	if parent != nil {
		if result, ok := a.parseAt(repo, parent, path); ok {
			previous = result
		}
	}

	if !currentOK {
		// Current side has nothing recognizable left; treat as removal of
		// whatever the previous side declared.
		if previous == nil {
			return nil, nil
		}

		return a.diffDeps(path, previous.Ecosystem, previous.Kind, previous.Dependencies, nil, snapshot), nil
	}

	var previousDeps []manifest.Dependency
	if previous != nil {
		previousDeps = previous.Dependencies
	}

	return a.diffDeps(path, current.Ecosystem, current.Kind, previousDeps, current.Dependencies, snapshot), nil
}

func (a *Analyzer) analyzeDeleted(repo *gitlib.Repository, parent *gitlib.Commit, path string, snapshot Snapshot) ([]Change, error) {
	if parent == nil {
		return nil, nil
	}

	result, ok := a.parseAt(repo, parent, path)
	if !ok {
		return nil, nil
	}

	changes := make([]Change, 0, len(result.Dependencies))

	for _, dep := range result.Dependencies {
		key := SnapshotKey{ManifestPath: path, Name: dep.Name}
		delete(snapshot, key)

		prev := dep.Requirement
		changes = append(changes, Change{
			ManifestPath:        path,
			Ecosystem:           result.Ecosystem,
			Kind:                result.Kind,
			Name:                dep.Name,
			ChangeType:          ChangeRemoved,
			PreviousRequirement: &prev,
			DependencyType:      dep.DependencyType,
		})
	}

	return changes, nil
}

// diffDeps computes added/removed/modified events between a before- and
// after-set of dependencies for one manifest path, applying the result to
// snapshot.
func (a *Analyzer) diffDeps(path, ecosystem string, kind manifest.Kind, before, after []manifest.Dependency, snapshot Snapshot) []Change {
	beforeByName := make(map[string]manifest.Dependency, len(before))
	for _, d := range before {
		beforeByName[d.Name] = d
	}

	afterByName := make(map[string]manifest.Dependency, len(after))
	for _, d := range after {
		afterByName[d.Name] = d
	}

	var changes []Change

	for _, dep := range after {
		key := SnapshotKey{ManifestPath: path, Name: dep.Name}
		snapshot[key] = SnapshotValue{Ecosystem: ecosystem, Kind: kind, Requirement: dep.Requirement, DependencyType: dep.DependencyType}

		prevDep, existed := beforeByName[dep.Name]
		if !existed {
			changes = append(changes, Change{
				ManifestPath: path, Ecosystem: ecosystem, Kind: kind, Name: dep.Name,
				ChangeType: ChangeAdded, Requirement: dep.Requirement, DependencyType: dep.DependencyType,
			})

			continue
		}

		if prevDep.Requirement != dep.Requirement || prevDep.DependencyType != dep.DependencyType {
			prev := prevDep.Requirement
			changes = append(changes, Change{
				ManifestPath: path, Ecosystem: ecosystem, Kind: kind, Name: dep.Name,
				ChangeType: ChangeModified, Requirement: dep.Requirement,
				PreviousRequirement: &prev, DependencyType: dep.DependencyType,
			})
		}
	}

	for _, dep := range before {
		if _, stillPresent := afterByName[dep.Name]; stillPresent {
			continue
		}

		key := SnapshotKey{ManifestPath: path, Name: dep.Name}
		delete(snapshot, key)

		prev := dep.Requirement
		changes = append(changes, Change{
			ManifestPath: path, Ecosystem: ecosystem, Kind: kind, Name: dep.Name,
			ChangeType: ChangeRemoved, PreviousRequirement: &prev, DependencyType: dep.DependencyType,
		})
	}

	return changes
}

// parseAt resolves path's blob at commit and parses it through the blob
// cache, returning ok=false for a missing blob, unrecognized path, or a
// recorded parse failure (both are absorbed here, never propagated).
func (a *Analyzer) parseAt(repo *gitlib.Repository, commit *gitlib.Commit, path string) (*manifest.Result, bool) {
	hash, ok := gitlib.BlobOidAt(commit, path)
	if !ok {
		return nil, false
	}

	return a.cache.get(hash, path, func() (*manifest.Result, bool, error) {
		data, ok := gitlib.BlobBytes(repo, hash)
		if !ok {
			return nil, false, nil
		}

		return a.registry.Parse(path, data)
	})
}
