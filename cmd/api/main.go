package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/repository"
	"github.com/noah-isme/ace-school-api/internal/service"
	"github.com/noah-isme/ace-school-api/pkg/cache"
	"github.com/noah-isme/ace-school-api/pkg/config"
	"github.com/noah-isme/ace-school-api/pkg/database"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
	"github.com/noah-isme/ace-school-api/pkg/logger"
	"github.com/noah-isme/ace-school-api/pkg/mailer"
	"github.com/noah-isme/ace-school-api/pkg/storage"
)

// @title ACE School API
// @version 1.0.0
// @description Enrollment intake, student lifecycle and quarterly grading for ACE school.
// @BasePath /api/v1
// @schemes http https
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	app, err := buildApp(cfg, logr, db, redisClient)
	if err != nil {
		return err
	}

	app.notifications.Start(ctx)
	defer app.notifications.Stop()
	go app.exports.RunCleanup(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		return srv.Close()
	}
	logr.Info("server stopped")
	return nil
}

type app struct {
	db            *sqlx.DB
	redis         *redis.Client
	metrics       *service.MetricsService
	cacheRepo     *repository.CacheRepository
	auth          *service.AuthService
	enrollments   *service.EnrollmentService
	grades        *service.GradeService
	exports       *service.ExportService
	notifications *service.NotificationService
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*app, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	var cacheStore service.CacheRepository
	if cacheRepo != nil {
		cacheStore = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Grades.CacheTTL, logr, cacheStore != nil)

	users := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	subjects := repository.NewSubjectRepository(db)
	weights := repository.NewGradeConfigRepository(db)
	items := repository.NewGradeComponentRepository(db)
	scores := repository.NewGradeRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		SetPasswordTTL:    cfg.JWT.SetPasswordTTL,
		Issuer:            "ace-school-api",
	})

	var m mailer.Mailer = mailer.NewLogMailer(logr)
	if cfg.Notifications.SendGridAPIKey != "" {
		m = mailer.NewSendGridMailer(cfg.Notifications.SendGridAPIKey, cfg.Notifications.MailFromName, cfg.Notifications.MailFrom)
	}
	notifications := service.NewNotificationService(m, users, authSvc, metrics, logr, service.NotificationConfig{
		Workers:     cfg.Notifications.Workers,
		Retries:     cfg.Notifications.Retries,
		FrontendURL: cfg.Notifications.FrontendURL,
	})

	evaluator := lifecycle.NewEvaluator(lifecycle.SystemClock(), cfg.School.Location())
	enrollments := service.NewEnrollmentService(enrollmentRepo, users, notifications, cacheSvc, metrics, evaluator, validate, logr, service.EnrollmentConfig{
		StatsCacheTTL: cfg.Enrollment.StatsCacheTTL,
	})

	grades := service.NewGradeService(weights, items, scores, enrollmentRepo, subjects, users, cacheSvc, validate, logr, service.GradeServiceConfig{
		CacheTTL: cfg.Grades.CacheTTL,
	})

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(grades, store, signer, metrics, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.Retention,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr)

	return &app{
		db:            db,
		redis:         redisClient,
		metrics:       metrics,
		cacheRepo:     cacheRepo,
		auth:          authSvc,
		enrollments:   enrollments,
		grades:        grades,
		exports:       exports,
		notifications: notifications,
	}, nil
}
