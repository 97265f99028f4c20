package cache

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "wrappers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	boltStore, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { boltStore.Close() })

	return map[string]Store{
		DriverSQLite: sqliteStore,
		DriverBolt:   boltStore,
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			// Miss initially
			_, err := store.Get(ctx, "function_blur_MINI")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "function_blur_MINI", []byte("\x7fELF v1")))

			got, err := store.Get(ctx, "function_blur_MINI")
			require.NoError(t, err)
			assert.Equal(t, []byte("\x7fELF v1"), got)

			// Put replaces
			require.NoError(t, store.Put(ctx, "function_blur_MINI", []byte("\x7fELF v2")))

			got, err = store.Get(ctx, "function_blur_MINI")
			require.NoError(t, err)
			assert.Equal(t, []byte("\x7fELF v2"), got)
		})
	}
}

func TestStore_ListDelete(t *testing.T) {
	ctx := context.Background()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "function_gemver_MINI", []byte("gemver")))
			require.NoError(t, store.Put(ctx, "function550013", []byte("stencil")))

			entries, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			assert.Equal(t, "function550013", entries[0].Program)
			assert.Equal(t, HashBytes([]byte("stencil")), entries[0].Hash)
			assert.Equal(t, int64(7), entries[0].Size)
			assert.Equal(t, "function_gemver_MINI", entries[1].Program)

			require.NoError(t, store.Delete(ctx, "function550013"))
			assert.ErrorIs(t, store.Delete(ctx, "function550013"), ErrNotFound)

			_, err = store.Get(ctx, "function550013")
			assert.ErrorIs(t, err, ErrNotFound)

			entries, err = store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestStore_StatsClear(t *testing.T) {
	ctx := context.Background()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			count, size, err := store.Stats()
			require.NoError(t, err)
			assert.Equal(t, 0, count)
			assert.Equal(t, int64(0), size)

			require.NoError(t, store.Put(ctx, "function_gemver_MINI", []byte("gemver")))
			require.NoError(t, store.Put(ctx, "function550013", []byte("stencil")))

			count, size, err = store.Stats()
			require.NoError(t, err)
			assert.Equal(t, 2, count)
			assert.Equal(t, int64(13), size)

			require.NoError(t, store.Clear())

			entries, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)

			count, _, err = store.Stats()
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	}
}
func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		path     string
		wantType Store
		wantErr  bool
	}{
		{name: "default is sqlite", driver: "", path: "w.db", wantType: &SQLiteStore{}},
		{name: "sqlite", driver: DriverSQLite, path: "w.db", wantType: &SQLiteStore{}},
		{name: "bolt", driver: DriverBolt, path: "cache", wantType: &BoltStore{}},
		{name: "unknown driver", driver: "redis", path: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.driver, filepath.Join(t.TempDir(), tt.path))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.wantType, store)
		})
	}
}

func TestSQLiteStore_ExistingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrappers.db")

	// A database created by other tooling with the same layout
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE wrappers (program_name TEXT PRIMARY KEY, wrapper BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO wrappers VALUES ('function_seidel_MINI', X'CAFE')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), "function_seidel_MINI")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, got)
	assert.Equal(t, path, store.Path())
}

func TestSQLiteStore_QuotedNames(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "wrappers.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	name := "p'); DROP TABLE wrappers; --"
	require.NoError(t, store.Put(ctx, name, []byte("x")))

	got, err := store.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	assert.Error(t, err)
}
