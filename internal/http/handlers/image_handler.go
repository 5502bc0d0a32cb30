package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/wastewatch-backend/internal/http/middleware"
	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// ImageHandler отдаёт фотографии заявок.
type ImageHandler struct {
	images *service.ImageService
}

func NewImageHandler(images *service.ImageService) *ImageHandler {
	return &ImageHandler{images: images}
}

// Get обрабатывает GET /image/:blobId. Токен принимается и из ?token=, потому что <img> не шлёт заголовки.
func (h *ImageHandler) Get(c *gin.Context) {
	token := middleware.BearerToken(c, true)
	img, err := h.images.Retrieve(c.Request.Context(), c.Param("blobId"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer img.Body.Close()

	c.Header("Cache-Control", img.CacheControl)
	if img.ETag != "" {
		c.Header("ETag", img.ETag)
		if c.GetHeader("If-None-Match") == img.ETag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	c.Header("Content-Type", img.ContentType)
	c.Header("X-Content-Type-Options", "nosniff")
	if img.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(img.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, img.Body); err != nil {
		logger.Log.WithError(err).WithField("blob_id", img.ID).Debug("клиент прервал загрузку изображения")
	}
}
