package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/waddlechat/permafrost/api"
	"github.com/waddlechat/permafrost/config"
	"github.com/waddlechat/permafrost/health"
	"github.com/waddlechat/permafrost/logger"
	"github.com/waddlechat/permafrost/permissions"
	"github.com/waddlechat/permafrost/pgorm"
	"github.com/waddlechat/permafrost/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("starting permafrost permissions service",
		zap.Int("port", cfg.Port),
		zap.String("db_type", cfg.DBType),
	)

	// Storage
	repo, err := pgorm.OpenTupleStore(cfg.DBType, cfg.DSN, !cfg.SkipAutoMigrate)
	if err != nil {
		logger.Log.Fatal("failed to initialize tuple store", zap.Error(err))
	}

	// Telemetry
	tel, err := telemetry.NewProvider(telemetry.DefaultConfig())
	if err != nil {
		logger.Log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer tel.Shutdown(context.Background())

	// Checker and service
	checker, err := permissions.NewChecker(repo,
		permissions.WithSchemas(permissions.DefaultSchemas()...),
		permissions.WithMaxDepth(cfg.CheckMaxDepth),
		permissions.WithCacheSize(cfg.CheckCacheSize),
	)
	if err != nil {
		logger.Log.Fatal("failed to initialize checker", zap.Error(err))
	}

	serviceOpts := []permissions.ServiceOption{
		permissions.WithMetrics(tel),
		permissions.WithTracer(tel.Tracer()),
	}
	if cfg.AuditEnabled {
		auditRepo := pgorm.NewAuditRepository(repo.DB())
		if !cfg.SkipAutoMigrate {
			if err := auditRepo.AutoMigrate(); err != nil {
				logger.Log.Fatal("failed to migrate audit store", zap.Error(err))
			}
		}
		serviceOpts = append(serviceOpts, permissions.WithAuditStore(auditRepo))
	}

	service := permissions.NewService(repo, checker, serviceOpts...)

	// Health
	hm := health.NewManager("1.0.0")
	hm.Register("database", func(ctx context.Context) error {
		sqlDB, err := repo.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	// HTTP surface
	e := echo.New()
	e.HideBanner = true

	e.Use(api.RequestLogger(logger.Log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	g := e.Group("/api/v1")
	api.NewHandler(service).RegisterRoutes(g)

	e.GET("/healthz", echo.WrapHandler(hm.LiveHandler()))
	e.GET("/ready", echo.WrapHandler(hm.ReadyHandler()))
	e.GET("/health", echo.WrapHandler(hm.FullHandler()))

	logger.Log.Info("server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server stopped", zap.Error(err))
	}
}
