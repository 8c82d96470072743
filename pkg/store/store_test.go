package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/store"
)

func TestSummarizeReportsCountsOnFreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgs.sqlite3")

	st, err := store.Open(context.Background(), path, store.ModeWrite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sum, err := st.Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, path, sum.Path)
	assert.True(t, sum.SchemaUpToDate)
	assert.Equal(t, sum.ExpectedVersion, sum.SchemaVersion)
	assert.Zero(t, sum.CommitCount)
	assert.Zero(t, sum.ChangeCount)
	assert.Zero(t, sum.ManifestCount)
	assert.Zero(t, sum.BranchCount)
}

func TestUpgradeNoopOnFreshSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgs.sqlite3")

	st, err := store.Open(context.Background(), path, store.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	upgraded, err := store.Upgrade(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, upgraded)
}

func TestUpgradeResetsOutdatedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgs.sqlite3")

	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE schema_info (version INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_info (version) VALUES (0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	upgraded, err := store.Upgrade(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, upgraded)

	st, err := store.Open(context.Background(), path, store.ModeRead)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sum, err := st.Summarize(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.SchemaUpToDate)
}
