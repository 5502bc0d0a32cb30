package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ignatzorin/wastewatch-backend/internal/logger"
)

// Cache хранит сериализованные ответы с TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	InvalidateByPrefix(ctx context.Context, prefix string)
}

// CacheService кэш в памяти процесса.
type CacheService struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
	now   Clock
	stop  chan struct{}
	once  sync.Once
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCacheService создаёт кэш и запускает фоновую очистку.
func NewCacheService() *CacheService {
	cs := &CacheService{
		cache: make(map[string]*cacheEntry),
		now:   systemClock,
		stop:  make(chan struct{}),
	}
	go cs.cleanup(5 * time.Minute)
	return cs
}

var _ Cache = (*CacheService)(nil)

func (cs *CacheService) Get(_ context.Context, key string) ([]byte, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, ok := cs.cache[key]
	if !ok || cs.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (cs *CacheService) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &cacheEntry{data: value, expiresAt: cs.now().Add(ttl)}
}

func (cs *CacheService) InvalidateByPrefix(_ context.Context, prefix string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(cs.cache, key)
		}
	}
}

// Close останавливает фоновую очистку.
func (cs *CacheService) Close() {
	cs.once.Do(func() { close(cs.stop) })
}

func (cs *CacheService) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-cs.stop:
			return
		case <-ticker.C:
			cs.mu.Lock()
			now := cs.now()
			for key, entry := range cs.cache {
				if now.After(entry.expiresAt) {
					delete(cs.cache, key)
				}
			}
			cs.mu.Unlock()
		}
	}
}

// cachedJSON отдаёт значение из кэша или вычисляет и кладёт его туда.
// Ошибка сериализации не мешает вернуть результат.
func cachedJSON[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if c != nil && ttl > 0 {
		if raw, ok := c.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			logger.Log.WithField("key", key).Warn("кэш: не удалось разобрать значение")
		}
	}

	v, err := fn()
	if err != nil {
		return v, err
	}

	if c != nil && ttl > 0 {
		if raw, err := json.Marshal(v); err == nil {
			c.Set(ctx, key, raw, ttl)
		}
	}
	return v, nil
}
