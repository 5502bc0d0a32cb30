package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// CodeRateLimited код ответа 429, в apperror ему соответствия нет.
const CodeRateLimited = "RATE_LIMITED"

// Envelope общий вид всех JSON-ответов API.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Page    *Page      `json:"pagination,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody: в Details, например, исполнитель, который уже держит заявку.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Page struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated отдаёт страницу списка; data всегда присутствует, даже пустая.
func Paginated[T any](c *gin.Context, items []T, total, limit, offset int) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Page: &Page{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
		},
	})
}

// Error отдаёт AppError как есть, остальное скрывается за INTERNAL_ERROR.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка сервера")
	}
	fail(c, appErr.HTTPStatus, ErrorBody{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeBadRequest, message))
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeUnauthorized, message))
}

func Forbidden(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeForbidden, message))
}

func TooManyRequests(c *gin.Context, message string) {
	fail(c, http.StatusTooManyRequests, ErrorBody{Code: CodeRateLimited, Message: message})
}

func fail(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &body})
}
