package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

func TestLocalBlobStore_PutOpenDelete(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir(), 1)
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("не совсем картинка")
	info, err := store.Put(ctx, data, BlobMeta{OriginalName: "мой файл.png", ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, ETag(data), info.ETag)
	assert.NotContains(t, info.ID, " ")

	blob, err := store.Open(ctx, info.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(blob.Body)
	require.NoError(t, err)
	require.NoError(t, blob.Body.Close())
	assert.Equal(t, data, body)
	assert.Equal(t, "image/png", blob.ContentType)
	assert.Equal(t, "мой файл.png", blob.OriginalName)

	require.NoError(t, store.Delete(ctx, info.ID))
	_, err = store.Open(ctx, info.ID)
	assert.True(t, apperror.IsNotFound(err))

	// повторное удаление не ошибка
	assert.NoError(t, store.Delete(ctx, info.ID))
}

func TestLocalBlobStore_SizeLimit(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), make([]byte, 1024*1024+1), BlobMeta{OriginalName: "big.png"})
	assert.True(t, apperror.IsValidation(err))
}

func TestValidateBlobID(t *testing.T) {
	for _, id := range []string{"", "../etc/passwd", "a/b", `a\b`, "with space", "tab\tid", strings.Repeat("x", 201)} {
		assert.Error(t, ValidateBlobID(id), id)
	}
	assert.NoError(t, ValidateBlobID("1700000000-abcdef012345-photo.png"))
}

func TestNewBlobID_Unique(t *testing.T) {
	now := time.Now()
	a, err := NewBlobID("photo.png", now)
	require.NoError(t, err)
	b, err := NewBlobID("photo.png", now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NoError(t, ValidateBlobID(a))
}

func TestETag_Stable(t *testing.T) {
	assert.Equal(t, ETag([]byte("x")), ETag([]byte("x")))
	assert.NotEqual(t, ETag([]byte("x")), ETag([]byte("y")))
	assert.True(t, strings.HasPrefix(ETag([]byte("x")), `"`))
}
