package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRegisterAndList(t *testing.T) {
	store := setupTestStore(t)

	err := store.Register("Some Game", "snes", "/roms/snes/some-game", "/roms/snes",
		map[string]string{"region": "USA"})
	require.NoError(t, err)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Some Game", entries[0].Name)
	assert.Equal(t, "snes", entries[0].Platform)
	assert.Equal(t, "/roms/snes/some-game", entries[0].FilePath)
	assert.Contains(t, entries[0].Metadata, `"region":"USA"`)
	assert.NotEmpty(t, entries[0].ID)
}

func TestListByPlatform(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Register("A", "snes", "/roms/a", "/roms", nil))
	require.NoError(t, store.Register("B", "psx", "/roms/b", "/roms", nil))
	require.NoError(t, store.Register("C", "snes", "/roms/c", "/roms", nil))

	entries, err := store.ListByPlatform("snes")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "snes", entry.Platform)
	}
}

func TestDeleteAndCount(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Register("A", "snes", "/roms/a", "/roms", nil))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Delete(entries[0].ID))
	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestFindByIDMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.FindByID("no-such-entry")
	assert.Error(t, err)
}
