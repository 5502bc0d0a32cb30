package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
)

// NewLimiterStore хранит счётчики в Redis, если он есть, иначе в памяти процесса.
func NewLimiterStore(client *redis.Client) limiter.Store {
	if client != nil {
		store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "wastewatch:ratelimit"})
		if err == nil {
			return store
		}
		logger.Log.WithError(err).Warn("rate limit: Redis недоступен, счётчики в памяти")
	}
	return memory.NewStore()
}

// RateLimitMiddleware ограничивает частоту запросов.
// Ключ: пользователь после авторизации, иначе IP. name разделяет счётчики разных маршрутов.
func RateLimitMiddleware(store limiter.Store, name string, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		key := name + ":" + c.ClientIP()
		if raw, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := raw.(uuid.UUID); ok {
				key = name + ":" + id.String()
			}
		}

		lctx, err := instance.Get(c, key)
		if err != nil {
			// лимитер недоступен: запрос пропускаем, ошибку логируем
			logger.Log.WithError(err).Warn("rate limit: ошибка хранилища счётчиков")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			response.TooManyRequests(c, "слишком много запросов, попробуйте позже")
			return
		}
		c.Next()
	}
}
