package walkmeta_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkazin/difgo/internal/walkmeta"
)

func TestWalk_RespectsRecurseAndExtensions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.jpg"), []byte("x"), 0o644))

	flat, err := walkmeta.Walk(root, walkmeta.Options{
		Recurse:           false,
		AllowedExtensions: []string{".jpg"},
	})
	require.NoError(t, err)
	require.Len(t, flat, 2) // a.jpg (allowed) + a.txt (disallowed), sub/ skipped

	var allowedCount int
	for _, e := range flat {
		if e.Allowed {
			allowedCount++
		}
	}
	require.Equal(t, 1, allowedCount)

	recursive, err := walkmeta.Walk(root, walkmeta.Options{
		Recurse:           true,
		AllowedExtensions: []string{".jpg"},
	})
	require.NoError(t, err)
	require.Len(t, recursive, 3)
}

func TestWalk_IgnoresNamesAndPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.jpg"), []byte("x"), 0o644))

	entries, err := walkmeta.Walk(root, walkmeta.Options{
		Recurse:           true,
		AllowedExtensions: []string{".jpg"},
		IgnoreNames:       []string{"skip.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "keep.jpg", entries[0].Filename)
}

func TestWalk_FallsBackToModTimeWithoutEXIF(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "plain.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not actually a jpeg"), 0o644))

	entries, err := walkmeta.Walk(root, walkmeta.Options{Recurse: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Greater(t, entries[0].Created, int64(0))
}
