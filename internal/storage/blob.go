package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// ImmutableCacheControl: содержимое по идентификатору никогда не меняется.
const ImmutableCacheControl = "public, max-age=31536000, immutable"

const maxBlobIDLength = 200

// BlobMeta данные, которые присылает клиент.
type BlobMeta struct {
	OriginalName string
	ContentType  string
}

// BlobInfo сохранённые метаданные объекта.
type BlobInfo struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Blob открытый объект; Body закрывает вызывающий.
type Blob struct {
	BlobInfo
	Body io.ReadCloser
}

// BlobStore хранит изображения как неизменяемые объекты.
type BlobStore interface {
	Put(ctx context.Context, data []byte, meta BlobMeta) (*BlobInfo, error)
	Open(ctx context.Context, id string) (*Blob, error)
	Delete(ctx context.Context, id string) error
}

// NewBlobID: время в наносекундах, случайный суффикс и очищенное исходное имя.
func NewBlobID(originalName string, now time.Time) (string, error) {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("storage: не удалось сгенерировать идентификатор: %w", err)
	}
	id := fmt.Sprintf("%d-%s-%s", now.UnixNano(), hex.EncodeToString(suffix), sanitizeFilename(originalName))
	if len(id) > maxBlobIDLength {
		id = id[:maxBlobIDLength]
	}
	return id, nil
}

// ValidateBlobID отсекает пути и управляющие символы до обращения к хранилищу.
func ValidateBlobID(id string) error {
	if id == "" || len(id) > maxBlobIDLength || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return apperror.ErrBlobNotFound
	}
	for _, r := range id {
		if r > unicode.MaxASCII || unicode.IsControl(r) || unicode.IsSpace(r) {
			return apperror.ErrBlobNotFound
		}
	}
	return nil
}

// ETag строится по содержимому, blake2b-256.
func ETag(data []byte) string {
	sum := blake2b.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// sanitizeFilename оставляет в имени только безопасные ASCII-символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(name, "..", "")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		out = "image"
	}
	return out
}
