package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func init() {
	gin.SetMode(gin.TestMode)
}

func contextFor(req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

// multipartBody собирает форму с полем description и files изображениями.
func multipartBody(t *testing.T, files int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("description", "мусор у остановки"))
	for i := 0; i < files; i++ {
		part, err := mw.CreateFormFile(imagesField, "photo.png")
		require.NoError(t, err)
		_, err = part.Write(append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 2048)...))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestReadUploads_NotMultipartMeansNoImages(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(`{"description":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	uploads, err := readUploads(contextFor(req), 1<<20, 5)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestReadUploads_ReadsImages(t *testing.T) {
	body, contentType := multipartBody(t, 2)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", body)
	req.Header.Set("Content-Type", contentType)

	uploads, err := readUploads(contextFor(req), 1<<20, 5)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "photo.png", uploads[0].OriginalName)
	assert.Equal(t, pngHeader, uploads[0].Data[:len(pngHeader)])
}

func TestReadUploads_Rejects(t *testing.T) {
	t.Run("обрезанное тело", func(t *testing.T) {
		body, contentType := multipartBody(t, 1)
		truncated := body.Bytes()[:body.Len()/2]
		req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewReader(truncated))
		req.Header.Set("Content-Type", contentType)

		uploads, err := readUploads(contextFor(req), 1<<20, 5)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
		assert.Nil(t, uploads)
	})

	t.Run("слишком много файлов", func(t *testing.T) {
		body, contentType := multipartBody(t, 3)
		req := httptest.NewRequest(http.MethodPost, "/api/reports", body)
		req.Header.Set("Content-Type", contentType)

		_, err := readUploads(contextFor(req), 1<<20, 2)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("файл больше лимита", func(t *testing.T) {
		body, contentType := multipartBody(t, 1)
		req := httptest.NewRequest(http.MethodPost, "/api/reports", body)
		req.Header.Set("Content-Type", contentType)

		_, err := readUploads(contextFor(req), 100, 5)
		assert.True(t, apperror.IsValidation(err))
	})
}
