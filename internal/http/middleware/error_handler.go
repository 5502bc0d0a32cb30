package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// ErrorHandler отвечает за ошибки, которые хэндлер положил в c.Errors и не отправил сам.
// Внутренние ошибки логируются, клиент видит только код и сообщение AppError.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		fields := logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}
		if code := apperror.CodeOf(err); code == apperror.ErrCodeInternal || code == apperror.ErrCodeDatabaseError {
			logger.Log.WithError(err).WithFields(fields).Error("ошибка обработки запроса")
		} else {
			logger.Log.WithError(err).WithFields(fields).Debug("запрос отклонён")
		}
		response.Error(c, err)
	}
}

// Recovery превращает панику в 500 с записью в лог.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"panic":  recovered,
		}).Error("паника при обработке запроса")
		response.Error(c, apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка сервера"))
	})
}
