package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// imagesField имя поля multipart-формы с фотографиями.
const imagesField = "images"

// readUploads читает приложенные изображения целиком, каждое не больше maxBytes.
// Запрос не multipart означает заявку без фото; повреждённая форма считается ошибкой.
func readUploads(c *gin.Context, maxBytes int64, maxFiles int) ([]dto.ImageUpload, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "не удалось разобрать multipart-форму")
	}
	files := form.File[imagesField]
	if len(files) > maxFiles {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "можно приложить не более %d изображений", maxFiles)
	}

	uploads := make([]dto.ImageUpload, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh, maxBytes)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, dto.ImageUpload{OriginalName: fh.Filename, Data: data})
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if fh.Size > maxBytes {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "файл %q больше %d байт", fh.Filename, maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	if int64(len(data)) > maxBytes {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "файл %q больше %d байт", fh.Filename, maxBytes)
	}
	return data, nil
}
