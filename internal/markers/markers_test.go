package markers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		driver Driver
		file   string
	}{
		{name: "file", driver: DriverFile, file: "voted.json"},
		{name: "sqlite", driver: DriverSQLite, file: "markers.db"},
		{name: "memory", driver: DriverMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), tt.file)
			}
			store, err := New(tt.driver, path)
			require.NoError(t, err)
			defer func() { assert.NoError(t, store.Close()) }()

			ctx := context.Background()

			voted, err := store.IsVoted(ctx, "7", 11)
			require.NoError(t, err)
			assert.False(t, voted)

			require.NoError(t, store.MarkVoted(ctx, "7", 11))
			require.NoError(t, store.MarkVoted(ctx, "7", 11))

			voted, err = store.IsVoted(ctx, "7", 11)
			require.NoError(t, err)
			assert.True(t, voted)

			voted, err = store.IsVoted(ctx, "8", 11)
			require.NoError(t, err)
			assert.False(t, voted, "markers are scoped to the voting session")

			require.NoError(t, store.Unmark(ctx, "7", 11))
			require.NoError(t, store.Unmark(ctx, "7", 11))
			voted, err = store.IsVoted(ctx, "7", 11)
			require.NoError(t, err)
			assert.False(t, voted)
		})
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := New("redis", "")
	assert.ErrorContains(t, err, "unsupported markers driver")
}

func TestFileStore_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "voted.json")
	ctx := context.Background()

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.MarkVoted(ctx, "3", 2))
	require.NoError(t, first.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "votacion_3_p2")

	second, err := NewFileStore(path)
	require.NoError(t, err)
	defer second.Close()
	voted, err := second.IsVoted(ctx, "3", 2)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voted.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.IsVoted(context.Background(), "1", 1)
	assert.ErrorContains(t, err, "failed to unmarshal markers file")
}

func TestSQLiteStore_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "markers.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.MarkVoted(ctx, "abc", 9))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()
	voted, err := second.IsVoted(ctx, "abc", 9)
	require.NoError(t, err)
	assert.True(t, voted)
}
