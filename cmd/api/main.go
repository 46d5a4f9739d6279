package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	_ "github.com/campusconnect/campus-connect-api/api/swagger"
	"github.com/campusconnect/campus-connect-api/internal/academic"
	"github.com/campusconnect/campus-connect-api/internal/handler"
	"github.com/campusconnect/campus-connect-api/internal/repository"
	"github.com/campusconnect/campus-connect-api/internal/service"
	"github.com/campusconnect/campus-connect-api/internal/ws"
	"github.com/campusconnect/campus-connect-api/pkg/cache"
	"github.com/campusconnect/campus-connect-api/pkg/config"
	"github.com/campusconnect/campus-connect-api/pkg/database"
	"github.com/campusconnect/campus-connect-api/pkg/jobs"
	"github.com/campusconnect/campus-connect-api/pkg/logger"
	"github.com/campusconnect/campus-connect-api/pkg/storage"
)

// @title Campus Connect API
// @version 1.0.0
// @description Campus mentorship platform: member directory, chat requests and real-time messaging
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The directory works without redis, listings just skip the cache.
		logr.Sugar().Warnw("redis unavailable, directory caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	validate := validator.New()
	engine := academic.New(cfg.Academic.EmailDomain, cfg.Academic.MinYear, cfg.Academic.MaxYear)
	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(notificationRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	hub := ws.NewHub(logr)
	go hub.Run(ctx)

	authSvc := service.NewAuthService(userRepo, engine, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, cacheRepo, metricsSvc, validate, logr, cfg.Directory.CacheTTL)
	chatSvc := service.NewChatService(chatRepo, userRepo, hub, notificationSvc, logr)
	sessionSvc := service.NewSessionService(sessionRepo, notificationSvc, validate, logr)

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare uploads dir", "error", err)
	}

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare exports dir", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(userRepo, exportStore, signer, service.ExportServiceConfig{
			Workers:    cfg.Jobs.Workers,
			MaxRetries: cfg.Jobs.MaxRetries,
			RetryDelay: cfg.Jobs.RetryDelay,
		}, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	deps := routeDeps{
		cfg:           cfg,
		logger:        logr,
		metrics:       metricsSvc,
		auth:          handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc, uploads, cfg.Uploads.MaxFileSizeBytes),
		chat:          handler.NewChatHandler(chatSvc),
		sessions:      handler.NewSessionHandler(sessionSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		socket:        ws.NewHandler(hub, chatSvc, metricsSvc, logr),
		authSvc:       authSvc,
	}
	if exportSvc != nil {
		deps.exports = handler.NewExportHandler(exportSvc)
	}

	router := newRouter(deps)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
