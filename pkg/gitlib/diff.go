package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Diff wraps a libgit2 tree-to-tree diff. Only the delta-enumeration surface
// TreeDiff needs is exposed; line-level hunk diffing is out of scope for a
// dependency-change indexer.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	n, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return n, nil
}

// Delta returns the delta at the given index.
func (d *Diff) Delta(index int) (DiffDelta, error) {
	delta, err := d.diff.Delta(index)
	if err != nil {
		return DiffDelta{}, fmt.Errorf("get delta: %w", err)
	}

	return DiffDelta{
		Status:  delta.Status,
		OldFile: DiffFile{Path: delta.OldFile.Path, Hash: HashFromOid(delta.OldFile.Oid), Size: int64(delta.OldFile.Size)},
		NewFile: DiffFile{Path: delta.NewFile.Path, Hash: HashFromOid(delta.NewFile.Oid), Size: int64(delta.NewFile.Size)},
	}, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	_ = d.diff.Free()
	d.diff = nil
}

// DiffDelta represents a file change in a diff.
type DiffDelta struct {
	Status  git2go.Delta
	OldFile DiffFile
	NewFile DiffFile
}

// DiffFile represents a file in a diff delta.
type DiffFile struct {
	Path string
	Hash Hash
	Size int64
}
