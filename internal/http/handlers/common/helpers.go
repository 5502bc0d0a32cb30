package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/http/middleware"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// CurrentActor собирает пользователя запроса из контекста, который заполнил AuthMiddleware.
func CurrentActor(c *gin.Context) (service.Actor, error) {
	raw, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return service.Actor{}, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return service.Actor{}, apperror.ErrUnauthorized
	}
	return service.Actor{ID: userID, Role: c.GetString(middleware.ContextRoleKey)}, nil
}

// ParseUUIDParam разбирает UUID из параметра маршрута.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.Newf(apperror.ErrCodeValidation, "параметр %s должен быть валидным UUID", paramName)
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса в req.
func BindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса")
	}
	return nil
}

// BindQuery разбирает параметры строки запроса в req.
func BindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные параметры запроса")
	}
	return nil
}
