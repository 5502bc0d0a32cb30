package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/storage"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// sniffLen столько байт нужно filetype для определения формата.
const sniffLen = 512

// ImageService сохраняет фото заявок и отдаёт их по токену.
type ImageService struct {
	blobs     storage.BlobStore
	tokens    *TokenManager
	maxImages int
}

func NewImageService(blobs storage.BlobStore, tokens *TokenManager, maxImages int) *ImageService {
	return &ImageService{blobs: blobs, tokens: tokens, maxImages: maxImages}
}

// ImageContent открытое изображение с заголовками для ответа. Body закрывает вызывающий.
type ImageContent struct {
	*storage.Blob
	CacheControl string
}

// StoreReportImages проверяет и сохраняет изображения по порядку.
// При ошибке уже сохранённые файлы удаляются.
func (s *ImageService) StoreReportImages(ctx context.Context, uploads []dto.ImageUpload) ([]models.ReportImage, error) {
	if len(uploads) > s.maxImages {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "можно приложить не более %d изображений", s.maxImages)
	}

	images := make([]models.ReportImage, 0, len(uploads))
	for _, up := range uploads {
		contentType, err := detectImageType(up)
		if err != nil {
			s.DeleteImages(ctx, images)
			return nil, err
		}

		info, err := s.blobs.Put(ctx, up.Data, storage.BlobMeta{OriginalName: up.OriginalName, ContentType: contentType})
		if err != nil {
			s.DeleteImages(ctx, images)
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить изображение")
		}
		images = append(images, models.ReportImage{
			Filename:     info.ID,
			OriginalName: info.OriginalName,
			ContentType:  info.ContentType,
			Size:         info.Size,
			UploadedAt:   info.UploadedAt,
		})
	}
	return images, nil
}

// DeleteImages удаляет файлы, ошибки только логируются.
func (s *ImageService) DeleteImages(ctx context.Context, images []models.ReportImage) {
	for _, img := range images {
		if err := s.blobs.Delete(ctx, img.Filename); err != nil {
			logger.Log.WithError(err).WithField("blob_id", img.Filename).Warn("не удалось удалить изображение")
		}
	}
}

// Retrieve сначала проверяет токен, затем открывает изображение.
func (s *ImageService) Retrieve(ctx context.Context, blobID, credential string) (*ImageContent, error) {
	if credential == "" {
		return nil, apperror.ErrUnauthorized
	}
	if _, _, err := s.tokens.ParseAccess(credential); err != nil {
		return nil, apperror.ErrInvalidToken
	}

	blob, err := s.blobs.Open(ctx, blobID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось прочитать изображение")
	}
	return &ImageContent{Blob: blob, CacheControl: storage.ImmutableCacheControl}, nil
}

// detectImageType определяет тип по сигнатуре, а не по заголовку клиента.
func detectImageType(up dto.ImageUpload) (string, error) {
	if len(up.Data) == 0 {
		return "", apperror.Newf(apperror.ErrCodeValidation, "файл %q пуст", up.OriginalName)
	}
	if ext := strings.ToLower(filepath.Ext(up.OriginalName)); ext != "" && !allowedImageExtensions[ext] {
		return "", apperror.Newf(apperror.ErrCodeValidation, "недопустимое расширение файла %q", ext)
	}

	head := up.Data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", apperror.Newf(apperror.ErrCodeValidation, "не удалось определить формат файла %q", up.OriginalName)
	}
	if !allowedImageTypes[kind.MIME.Value] {
		return "", apperror.Newf(apperror.ErrCodeValidation, "недопустимый тип файла %s", kind.MIME.Value)
	}
	return kind.MIME.Value, nil
}
