package lists

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingplaybook/playbook/internal/pkg/query"
)

var _ query.ListResolver = (Store)(nil)

type opener func(t *testing.T, path string) Store

func backends() map[string]struct {
	file string
	open opener
} {
	log, _ := test.NewNullLogger()
	return map[string]struct {
		file string
		open opener
	}{
		BackendFile: {"lists.json", func(t *testing.T, path string) Store {
			s, err := Open(BackendFile, path, log)
			require.NoError(t, err)
			return s
		}},
		"file-zstd": {"lists.json.zst", func(t *testing.T, path string) Store {
			s, err := Open(BackendFile, path, log)
			require.NoError(t, err)
			return s
		}},
		BackendSQLite: {"lists.db", func(t *testing.T, path string) Store {
			s, err := Open(BackendSQLite, path, log)
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStore(t *testing.T) {
	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), b.file)
			s := b.open(t, path)
			defer s.Close()

			names, err := s.Names(ctx)
			require.NoError(t, err)
			assert.Empty(t, names)
			assert.Nil(t, s.Resolve("Favorites"))

			_, err = s.Get(ctx, "Favorites")
			assert.ErrorIs(t, err, os.ErrNotExist)

			require.NoError(t, s.Add(ctx, "Favorites", 7))
			require.NoError(t, s.Add(ctx, "Favorites", 3))
			require.NoError(t, s.Add(ctx, "Favorites", 7))
			require.NoError(t, s.Add(ctx, "Favorites", 12))
			assert.Equal(t, []int64{7, 3, 12}, s.Resolve("Favorites"))

			require.NoError(t, s.Remove(ctx, "Favorites", 3))
			require.NoError(t, s.Remove(ctx, "Favorites", 99))
			uids, err := s.Get(ctx, "Favorites")
			require.NoError(t, err)
			assert.Equal(t, []int64{7, 12}, uids)

			require.NoError(t, s.Add(ctx, "Favorites", 3))
			assert.Equal(t, []int64{7, 12, 3}, s.Resolve("Favorites"))

			require.NoError(t, s.Put(ctx, "Warmups", []int64{5, 1, 5, 2}))
			require.NoError(t, s.Put(ctx, "Empty", nil))

			names, err = s.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"Empty", "Favorites", "Warmups"}, names)

			uids, err = s.Get(ctx, "Empty")
			require.NoError(t, err)
			assert.Empty(t, uids)
			assert.Empty(t, s.Resolve("Empty"))

			assert.ErrorIs(t, s.Remove(ctx, "Missing", 1), os.ErrNotExist)
			assert.ErrorIs(t, s.Delete(ctx, "Missing"), os.ErrNotExist)
			assert.ErrorIs(t, s.Add(ctx, "  ", 1), ErrInvalidName)
			assert.ErrorIs(t, s.Put(ctx, "a/b", nil), ErrInvalidName)

			require.NoError(t, s.Delete(ctx, "Empty"))
			require.NoError(t, s.Close())

			reopened := b.open(t, path)
			defer reopened.Close()

			names, err = reopened.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"Favorites", "Warmups"}, names)
			assert.Equal(t, []int64{7, 12, 3}, reopened.Resolve("Favorites"))
			assert.Equal(t, []int64{5, 1, 2}, reopened.Resolve("Warmups"))
		})
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), b.file))
			defer s.Close()

			require.NoError(t, s.Put(context.Background(), "l", []int64{1, 2}))
			got := s.Resolve("l")
			got[0] = 100
			assert.Equal(t, []int64{1, 2}, s.Resolve("l"))
		})
	}
}

func TestCanceledContext(t *testing.T) {
	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), b.file))
			defer s.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			assert.Error(t, s.Put(ctx, "l", []int64{1}))
			_, err := s.Names(ctx)
			assert.Error(t, err)
			assert.Nil(t, s.Resolve("l"))
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", "x", nil)
	assert.Error(t, err)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := OpenFileStore(path, nil)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	s, err := OpenFileStore(empty, nil)
	require.NoError(t, err)
	assert.Nil(t, s.Resolve("x"))
}

func TestSQLiteMemory(t *testing.T) {
	s, err := OpenSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "Favorites", 1))
	require.NoError(t, s.Add(ctx, "Favorites", 2))
	assert.Equal(t, []int64{1, 2}, s.Resolve("Favorites"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM list_items WHERE name = ?`, "Favorites").Scan(&count))
	assert.Equal(t, 2, count)
}
