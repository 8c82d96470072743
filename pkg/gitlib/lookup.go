package gitlib

// BlobOidAt returns the blob hash for path in commit's tree, or ok=false if
// the path does not exist (rather than raising).
func BlobOidAt(commit *Commit, path string) (hash Hash, ok bool) {
	tree, err := commit.Tree()
	if err != nil {
		return Hash{}, false
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil || !entry.IsBlob() {
		return Hash{}, false
	}

	return entry.Hash(), true
}

// BlobBytes reads the contents of the blob identified by hash, or ok=false
// if the object is missing from the object database.
func BlobBytes(repo *Repository, hash Hash) (data []byte, ok bool) {
	blob, err := repo.LookupBlob(hash)
	if err != nil {
		return nil, false
	}
	defer blob.Free()

	return blob.Contents(), true
}
