package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/articulacion-api/api/swagger"
	"github.com/noah-isme/articulacion-api/internal/handler"
	"github.com/noah-isme/articulacion-api/internal/repository"
	"github.com/noah-isme/articulacion-api/internal/service"
	"github.com/noah-isme/articulacion-api/pkg/cache"
	"github.com/noah-isme/articulacion-api/pkg/config"
	"github.com/noah-isme/articulacion-api/pkg/database"
	"github.com/noah-isme/articulacion-api/pkg/jobs"
	"github.com/noah-isme/articulacion-api/pkg/logger"
	"github.com/noah-isme/articulacion-api/pkg/storage"
)

// @title Articulacion Enrollment API
// @version 1.0.0
// @description Enrollment lifecycle and document review for articulated vocational programs
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, database.Migrations(), logr); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	documentFiles, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	audits := repository.NewAuditRepository(db)
	students := repository.NewStudentRepository(db)
	schools := repository.NewSchoolRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	simatRepo := repository.NewSimatRepository(db)

	authService := service.NewAuthService(users, audits, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	accessService := service.NewAccessService(schools, students, logr)
	cacheService := service.NewCacheService(cacheRepo, metrics, "articulacion", cfg.Summary.CacheTTL, logr, cfg.Summary.CacheEnabled && redisClient != nil)
	resolver := service.NewRequirementResolver(cfg.Documents.AdultCapableDocumentTypes)

	simatService := service.NewSimatService(
		simatRepo,
		documentFiles,
		schools,
		storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
		audits,
		logr,
		service.SimatServiceConfig{APIPrefix: cfg.APIPrefix, MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes},
	)

	enrollmentService := service.NewEnrollmentService(
		enrollmentRepo,
		students,
		documentRepo,
		schools,
		resolver,
		audits,
		cacheService,
		metrics,
		validate,
		logr,
		service.EnrollmentServiceConfig{SummaryTTL: cfg.Summary.CacheTTL},
		service.WithAuditHistory(audits),
		service.WithSimatCounter(simatService),
	)
	documentService := service.NewDocumentService(
		documentRepo,
		documentFiles,
		enrollmentService,
		storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
		audits,
		metrics,
		logr,
		service.DocumentServiceConfig{
			APIPrefix:         cfg.APIPrefix,
			MaxFileSizeBytes:  cfg.Documents.MaxFileSizeBytes,
			AllowedExtensions: cfg.Documents.AllowedExtensions,
		},
	)

	exportService := service.NewExportService(
		enrollmentRepo,
		documentRepo,
		documentFiles,
		exportFiles,
		storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
		logr,
		service.ExportRenderers{},
	)
	worker := service.NewReportWorker(reportRepo, exportService, metrics, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	reportService := service.NewReportService(reportRepo, schools, queue, exportService, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	if cfg.Reports.Enabled {
		queue.Start(ctx)
		defer queue.Stop()
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx)
	}

	handlers := routeHandlers{
		auth:        handler.NewAuthHandler(authService),
		enrollments: handler.NewEnrollmentHandler(enrollmentService),
		documents:   handler.NewDocumentHandler(documentService),
		reports:     handler.NewReportHandler(reportService),
		simat:       handler.NewSimatHandler(simatService),
		metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"database": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}, logr),
	}
	router := newRouter(cfg, logr, routeDeps{
		tokens:  authService,
		actors:  accessService,
		audit:   audits,
		metrics: metrics,
	}, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
