package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

const metaSuffix = ".meta.json"

// LocalBlobStore хранит изображения на диске, метаданные лежат рядом в JSON.
type LocalBlobStore struct {
	rootPath       string
	maxUploadBytes int64
	now            func() time.Time
}

// NewLocalBlobStore создаёт файловое хранилище.
func NewLocalBlobStore(rootPath string, maxUploadMB int64) (*LocalBlobStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &LocalBlobStore{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

var _ BlobStore = (*LocalBlobStore)(nil)

// Put пишет файл через временный и переименовывает, чтобы читатели не видели половину.
func (s *LocalBlobStore) Put(ctx context.Context, data []byte, meta BlobMeta) (*BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "размер файла превышает лимит %d байт", s.maxUploadBytes)
	}

	now := s.now()
	id, err := NewBlobID(meta.OriginalName, now)
	if err != nil {
		return nil, err
	}
	info := &BlobInfo{
		ID:           id,
		OriginalName: meta.OriginalName,
		ContentType:  meta.ContentType,
		Size:         int64(len(data)),
		ETag:         ETag(data),
		UploadedAt:   now,
	}

	metaBytes, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось сериализовать метаданные: %w", err)
	}
	if err := writeAtomic(s.path(id)+metaSuffix, metaBytes); err != nil {
		return nil, err
	}
	if err := writeAtomic(s.path(id), data); err != nil {
		_ = os.Remove(s.path(id) + metaSuffix)
		return nil, err
	}
	return info, nil
}

func (s *LocalBlobStore) Open(ctx context.Context, id string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateBlobID(id); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path(id) + metaSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperror.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось прочитать метаданные: %w", err)
	}
	var info BlobInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("storage: повреждены метаданные %s: %w", id, err)
	}

	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperror.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось открыть файл: %w", err)
	}
	return &Blob{BlobInfo: info, Body: f}, nil
}

// Delete удаляет файл и метаданные; отсутствие файла не ошибка.
func (s *LocalBlobStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateBlobID(id); err != nil {
		return nil
	}
	for _, p := range []string{s.path(id), s.path(id) + metaSuffix} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("storage: не удалось удалить файл: %w", err)
		}
	}
	return nil
}

func (s *LocalBlobStore) path(id string) string {
	return filepath.Join(s.rootPath, id)
}

func writeAtomic(target string, data []byte) error {
	tempPath := target + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	if _, err := bytes.NewReader(data).WriteTo(f); err != nil {
		f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		return fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}
	return nil
}
