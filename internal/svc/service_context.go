package svc

import (
	"context"
	"fmt"
	"time"

	"feedsync/config"
	"feedsync/internal/infra/cache"
	"feedsync/internal/infra/db"
	"feedsync/internal/infra/mq"
	"feedsync/internal/infra/storage"
	"feedsync/internal/middleware"
	"feedsync/internal/models"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceContext holds every dependency of the api server. Only DB is
// required; Cache, Rabbit and Media are nil when their service is down or
// not configured, and the handlers fall back accordingly.
type ServiceContext struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    *cache.RedisCache
	Rabbit   *mq.RabbitMQ
	Media    storage.MediaStore
	Consumer *mq.Consumer

	tracerProvider *trace.TracerProvider
}

func NewServiceContext(cfg *config.Config) (*ServiceContext, error) {
	dbConn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(dbConn); err != nil {
		return nil, err
	}

	s := &ServiceContext{Config: cfg, DB: dbConn}

	rdb, err := cache.New(cfg)
	if err != nil {
		zap.L().Warn("Redis connection failed, continuing without Redis", zap.Error(err))
	} else {
		zap.L().Info("Redis connected successfully")
		s.Cache = rdb
	}

	rabbit, err := mq.New(cfg)
	if err != nil {
		zap.L().Warn("RabbitMQ connection failed, fanning out inline", zap.Error(err))
	} else {
		s.Rabbit = rabbit
	}
	s.Consumer = mq.NewConsumer(dbConn, s.Cache, s.Rabbit)

	if cfg.MinioEndpoint != "" {
		minioSvc, err := storage.NewFileStorage(
			cfg.MinioEndpoint,
			cfg.MinioPublicURL,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
		)
		if err != nil {
			zap.L().Warn("MinIO unavailable, storing media inline", zap.Error(err))
		} else {
			s.Media = minioSvc
		}
	}

	if cfg.JaegerEndpoint != "" {
		tp, err := middleware.InitTracer("feedsync-apiserver", cfg.JaegerEndpoint, cfg.AppEnv)
		if err != nil {
			return nil, fmt.Errorf("failed to init tracer: %w", err)
		}
		s.tracerProvider = tp
	}

	return s, nil
}

// Migrate creates the api server tables.
func Migrate(dbConn *gorm.DB) error {
	if err := dbConn.AutoMigrate(&models.User{}, &models.Post{}, &models.UserFollow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *ServiceContext) Close() {
	if s.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			zap.L().Error("Tracer shutdown error", zap.Error(err))
		}
	}

	if s.Rabbit != nil {
		s.Rabbit.Close()
		zap.L().Info("RabbitMQ closed")
	}
	if s.Cache != nil {
		s.Cache.Close()
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
