package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/adapters/store/sqlite"
	"github.com/dkeye/hearth/internal/adapters/store/storetest"
)

func open(t *testing.T) storetest.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), sqlite.Config{
		Path:     filepath.Join(t.TempDir(), "hearth.db"),
		PoolSize: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, open)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), sqlite.Config{})
	require.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hearth.db")

	s, err := sqlite.Open(ctx, sqlite.Config{Path: path, PoolSize: 1})
	require.NoError(t, err)
	require.NoError(t, s.IssueToken(ctx, "u1", "tok"))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, sqlite.Config{Path: path, PoolSize: 1})
	require.NoError(t, err)
	defer s.Close()
	_, _, err = s.OpenDMChannel(ctx, "a", "b")
	require.NoError(t, err, "schema creation is idempotent")
}
