package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "garita/pkg/domain-errors"
	"garita/pkg/testutil"
)

func TestSaveAndDelete(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := storage.Save(ctx, "Evidencia Placa", "photo.JPG", []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "evidencia-placa"+string(filepath.Separator)), path)
	assert.True(t, strings.HasSuffix(path, ".jpg"), path)

	require.NoError(t, storage.Delete(ctx, path))
	// Deleting again is a no-op.
	require.NoError(t, storage.Delete(ctx, path))
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	a, err := storage.Save(context.Background(), "seals", "img.png", []byte{1})
	require.NoError(t, err)
	b, err := storage.Save(context.Background(), "seals", "img.png", []byte{2})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSaveRejectsEmptyContent(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = storage.Save(context.Background(), "seals", "img.png", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestReplacementLifecycle(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var first, second string
	testutil.Given(t, "a stored evidence photo", func(t *testing.T) {
		first, err = storage.Save(ctx, "seals", "sello.jpg", []byte{0xFF, 0xD8, 0xFF})
		require.NoError(t, err)
	})
	testutil.When(t, "a replacement is stored and the old blob removed", func(t *testing.T) {
		second, err = storage.Save(ctx, "seals", "sello.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0})
		require.NoError(t, err)
		require.NoError(t, storage.Delete(ctx, first))
	})
	testutil.Then(t, "only the replacement remains on disk", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(storage.root, first))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(storage.root, second))
		assert.NoError(t, err)
	})
}

func TestDeleteRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	storage, err := NewLocalStorage(root)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(root), "victim")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	for _, path := range []string{"../victim", "/etc/passwd", "."} {
		err := storage.Delete(context.Background(), path)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), path)
	}
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}
