// Package reconstruct implements deps_at(commit_id) (C7): the dependency
// set at an arbitrary commit, computed by replaying dependency_changes
// forward from the nearest prior dependency_snapshots checkpoint.
package reconstruct

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

// Dependency is one resolved dependency at a target commit.
type Dependency struct {
	ManifestPath   string
	Ecosystem      string
	Kind           manifest.Kind
	Name           string
	Requirement    string
	DependencyType manifest.DependencyType
}

type key struct {
	manifestPath string
	name         string
}

// DepsAt computes the dependency set at target by loading the nearest
// prior snapshot and replaying dependency_changes committed strictly
// after it, up to and including target, in committed-time order with
// commit-id tie-break (§4.7).
func DepsAt(ctx context.Context, st *store.Store, target store.CommitMeta) ([]Dependency, error) {
	state := map[key]Dependency{}

	snapshotCommit, ok, err := st.LatestSnapshotCommit(ctx, target.CommittedAt)
	if err != nil {
		return nil, fmt.Errorf("find latest snapshot: %w", err)
	}

	fromCommittedAt := ""

	if ok {
		fromCommittedAt = snapshotCommit.CommittedAt

		entries, err := st.SnapshotAt(ctx, snapshotCommit.ID)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}

		for _, e := range entries {
			k := key{manifestPath: e.ManifestPath, name: e.Name}
			state[k] = Dependency{
				ManifestPath: e.ManifestPath, Ecosystem: e.Ecosystem, Kind: manifest.Kind(e.Kind),
				Name: e.Name, Requirement: e.Requirement, DependencyType: manifest.DependencyType(e.DependencyType),
			}
		}
	}

	changes, err := st.ChangesInRange(ctx, fromCommittedAt, target.CommittedAt)
	if err != nil {
		return nil, fmt.Errorf("load changes: %w", err)
	}

	applyChanges(state, changes)

	deps := make([]Dependency, 0, len(state))
	for _, d := range state {
		deps = append(deps, d)
	}

	return deps, nil
}

func applyChanges(state map[key]Dependency, changes []store.ChangeEntry) {
	for _, c := range changes {
		k := key{manifestPath: c.ManifestPath, name: c.Name}

		switch c.ChangeType {
		case "added", "modified":
			state[k] = Dependency{
				ManifestPath: c.ManifestPath, Ecosystem: c.Ecosystem, Kind: manifest.Kind(c.Kind),
				Name: c.Name, Requirement: c.Requirement, DependencyType: manifest.DependencyType(c.DependencyType),
			}
		case "removed":
			delete(state, k)
		}
	}
}
