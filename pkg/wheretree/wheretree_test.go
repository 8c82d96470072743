package wheretree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/wheretree"
)

func TestFindLocatesExactLineNumber(t *testing.T) {
	dir := t.TempDir()

	content := "{\n  \"dependencies\": {\n    \"lodash\": \"^4.0.0\"\n  }\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644))

	matches, err := wheretree.Find(dir, []string{"package.json"}, "lodash", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 3, matches[0].Line)
	assert.Contains(t, matches[0].Text, "lodash")
}

func TestFindIncludesContextLines(t *testing.T) {
	dir := t.TempDir()

	content := "one\ntwo\nlodash\nfour\nfive\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.txt"), []byte(content), 0o644))

	matches, err := wheretree.Find(dir, []string{"m.txt"}, "lodash", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"two", "four"}, matches[0].Context)
}

func TestFindSkipsMissingFilesWithoutError(t *testing.T) {
	dir := t.TempDir()

	matches, err := wheretree.Find(dir, []string{"gone.json"}, "lodash", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindReturnsMultipleMatchesAcrossFiles(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"dependencies":{"lodash":"1"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"devDependencies":{"lodash":"1"}}`), 0o644))

	matches, err := wheretree.Find(dir, []string{"a.json", "b.json"}, "lodash", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
