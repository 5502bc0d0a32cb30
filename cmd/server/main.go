package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/wastewatch-backend/internal/config"
	"github.com/ignatzorin/wastewatch-backend/internal/db"
	domainrepo "github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/wastewatch-backend/internal/http/handlers"
	"github.com/ignatzorin/wastewatch-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/wastewatch-backend/internal/http/router"
	"github.com/ignatzorin/wastewatch-backend/internal/infrastructure/cache"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/repository/memory"
	"github.com/ignatzorin/wastewatch-backend/internal/repository/mongostore"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
	"github.com/ignatzorin/wastewatch-backend/internal/storage"
	"github.com/ignatzorin/wastewatch-backend/internal/ws"
)

// stores набор репозиториев выбранного драйвера.
type stores struct {
	reports    domainrepo.ReportRepository
	facilities domainrepo.FacilityRepository
	users      domainrepo.UserRepository
	checks     map[string]httpHandlers.Pinger
	closers    []func()
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить хранилище")
	}
	defer func() {
		for _, closeFn := range st.closers {
			closeFn()
		}
	}()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить хранилище изображений")
	}

	// Redis необязателен: без него кэш, лимиты и уведомления работают в пределах процесса.
	var (
		redisClient   *redis.Client
		facilityCache service.Cache
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Log.WithError(err).Warn("main: Redis недоступен, используется память процесса")
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		facilityCache = cache.NewRedisCache(redisClient, "wastewatch")
		st.checks["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	} else {
		memCache := service.NewCacheService()
		defer memCache.Close()
		facilityCache = memCache
	}
	limiterStore := middleware.NewLimiterStore(redisClient)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	if redisClient != nil {
		relay := ws.NewRedisRelay(redisClient, "")
		hub.SetPublisher(relay)
		goroutine.Named("redis-relay", func() {
			if err := relay.Run(ctx, hub); err != nil {
				logger.Log.WithError(err).Error("main: подписка на события остановлена")
			}
		})
	}
	goroutine.Named("ws-hub", hub.Run)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	images := service.NewImageService(blobs, tokenManager, cfg.MaxReportImages)
	rewards := service.NewRewardService(st.users, st.reports, service.RewardConfig{
		ReportPoints:     cfg.ReportRewardPoints,
		CompletionPoints: cfg.CompletionRewardPoints,
	}, hub)
	claims := service.NewClaimService(st.reports, st.users, hub)
	statuses := service.NewStatusService(st.reports, claims, rewards, hub)
	reports := service.NewReportService(st.reports, st.users, images, rewards, hub, cfg.GeoResultLimit)
	discovery := service.NewDiscoveryService(st.reports, st.facilities, facilityCache, service.DiscoveryConfig{
		DefaultRadiusMeters: cfg.GeoDefaultRadiusM,
		ResultLimit:         cfg.GeoResultLimit,
		FacilityCacheTTL:    cfg.FacilityCacheTTL,
	})

	if cfg.SeedDemoData || cfg.StorageDriver == config.StorageDriverMemory {
		seeder := service.NewSeedService(st.users, st.facilities, tokenManager)
		if err := seeder.SeedDemo(ctx); err != nil {
			logger.Log.WithError(err).Error("main: не удалось заполнить демо-данные")
		}
	}

	// HTTP хэндлеры.
	maxImageBytes := cfg.MaxUploadSizeMB << 20
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Reports:    httpHandlers.NewReportHandler(reports, claims, statuses, discovery, maxImageBytes, cfg.MaxReportImages),
		Facilities: httpHandlers.NewFacilityHandler(discovery),
		Images:     httpHandlers.NewImageHandler(images),
		Rewards:    httpHandlers.NewRewardHandler(rewards),
		Health:     httpHandlers.NewHealthHandler(cfg.StorageDriver, st.checks),
		WS:         httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager, limiterStore)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.Named("shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).
		WithField("storage", cfg.StorageDriver).
		WithField("blobs", cfg.BlobDriver).
		Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
			_ = conn.Close()
			return nil, err
		}
		reports := repository.NewReportRepository(conn)
		return &stores{
			reports:    reports,
			facilities: repository.NewFacilityRepository(conn),
			users:      repository.NewUserRepository(conn),
			checks:     map[string]httpHandlers.Pinger{"database": reports},
			closers: []func(){func() {
				if err := conn.Close(); err != nil {
					logger.Log.WithError(err).Error("main: ошибка закрытия базы")
				}
			}},
		}, nil

	case config.StorageDriverMongo:
		client, database, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		reports := mongostore.NewReportStore(database)
		return &stores{
			reports:    reports,
			facilities: mongostore.NewFacilityStore(database),
			users:      mongostore.NewUserStore(database),
			checks:     map[string]httpHandlers.Pinger{"database": reports},
			closers: []func(){func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := client.Disconnect(shutdownCtx); err != nil {
					logger.Log.WithError(err).Error("main: ошибка отключения от mongo")
				}
			}},
		}, nil

	default:
		logger.Log.Warn("main: данные хранятся в памяти и пропадут при перезапуске")
		reports := memory.NewReportStore()
		return &stores{
			reports:    reports,
			facilities: memory.NewFacilityStore(),
			users:      memory.NewUserStore(),
			checks:     map[string]httpHandlers.Pinger{"database": reports},
		}, nil
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.BlobDriver == config.BlobDriverS3 {
		return storage.NewS3BlobStore(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			EndpointURL:     cfg.S3.EndpointURL,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		}, cfg.MaxUploadSizeMB)
	}
	return storage.NewLocalBlobStore(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
}
