package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// BearerToken достаёт токен из заголовка Authorization.
// С allowQuery допускается параметр ?token=, например для <img src>.
func BearerToken(c *gin.Context, allowQuery bool) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c, false)
		if raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		userID, role, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRoles пропускает только перечисленные роли.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "недостаточно прав")
			return
		}
		c.Next()
	}
}

// WorkerOrAdmin сокращение для маршрутов исполнителей.
func WorkerOrAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleWorker, models.RoleAdmin)
}
