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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/kapilsaini46/rks/api/swagger"
	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/catalog"
	"github.com/kapilsaini46/rks/internal/handler"
	"github.com/kapilsaini46/rks/internal/middleware"
	"github.com/kapilsaini46/rks/internal/questionbank"
	"github.com/kapilsaini46/rks/internal/repository"
	"github.com/kapilsaini46/rks/internal/service"
	"github.com/kapilsaini46/rks/pkg/cache"
	"github.com/kapilsaini46/rks/pkg/config"
	"github.com/kapilsaini46/rks/pkg/database"
	"github.com/kapilsaini46/rks/pkg/jobs"
	"github.com/kapilsaini46/rks/pkg/logger"
	corsmiddleware "github.com/kapilsaini46/rks/pkg/middleware/cors"
	reqidmiddleware "github.com/kapilsaini46/rks/pkg/middleware/requestid"
	"github.com/kapilsaini46/rks/pkg/payment"
	"github.com/kapilsaini46/rks/pkg/ratelimit"
	"github.com/kapilsaini46/rks/pkg/storage"
)

// @title RKS QP Maker API
// @version 1.0.0
// @description CBSE question paper generation, editing and subscription service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// authAttemptsPerMinute bounds login, signup and refresh calls per client address.
const (
	authAttemptsPerMinute = 20
	limiterPruneJobType   = "ratelimit.prune"
)

type bank interface {
	blueprint.QuestionBank
	GenerateImage(ctx context.Context, prompt string) string
}

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("schema migration failed", zap.Error(err))
	}

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, curriculum cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, "rks", logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage unavailable", zap.Error(err))
	}
	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("upload storage unavailable", zap.Error(err))
	}

	cat := catalog.Default()
	validate := service.NewValidator()

	userRepo := repository.NewUserRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	contentRepo := repository.NewContentRepository(db)
	patternRepo := repository.NewSamplePatternRepository(db)
	configRepo := repository.NewConfigDocumentRepository(db)

	questionBank := newQuestionBank(ctx, cfg, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cat.AppName,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	curriculumSvc := service.NewCurriculumService(configRepo, cacheSvc, cat, logr)
	patternSvc := service.NewPatternService(patternRepo, paperRepo, uploadStore, service.PatternConfig{
		MaxUploadBytes: cfg.Uploads.MaxUploadBytes,
		AllowedMIMEs:   cfg.Uploads.AllowedMIMEs,
	}, validate, logr)
	generationLimiter := ratelimit.NewPerMinute(cfg.RateLimit.GenerationsPerMinute, cfg.RateLimit.Burst)
	authLimiter := ratelimit.NewPerMinute(authAttemptsPerMinute, authAttemptsPerMinute/2)
	paperSvc := service.NewPaperService(service.PaperDeps{
		Papers:     paperRepo,
		Credits:    userRepo,
		Bank:       questionBank,
		Diagrams:   questionBank,
		Styles:     patternSvc,
		Curriculum: curriculumSvc,
		Limiter:    generationLimiter,
		Metrics:    metrics,
	}, validate, logr)
	if cfg.Exports.FontPath == "" {
		logr.Warn("EXPORTS_FONT_PATH not set, pdf downloads of hindi, punjabi and sanskrit papers will be refused")
	}
	exportSvc := service.NewExportService(paperSvc, paperRepo, userRepo, exportStore,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), metrics,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL, FontPath: cfg.Exports.FontPath},
		logr, nil)
	subscriptionSvc := service.NewSubscriptionService(userRepo, paymentRepo, cat,
		payment.UPI{VPA: cfg.Payments.UPIID, PayeeName: cfg.Payments.PayeeName}, validate, logr)
	contentSvc := service.NewContentService(contentRepo, cat, validate, logr)
	overviewSvc := service.NewOverviewService(userRepo, paperRepo, paymentRepo, contentRepo, logr)

	queue := jobs.NewQueue("exports", jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc.RegisterJobs(queue)
	queue.Handle(limiterPruneJobType, func(context.Context, jobs.Job) error {
		generationLimiter.Prune()
		authLimiter.Prune()
		return nil
	})
	queue.Start(ctx)
	defer queue.Stop()
	queue.Every(ctx, cfg.Exports.CleanupInterval, service.CleanupJobType)
	queue.Every(ctx, cfg.Exports.CleanupInterval, limiterPruneJobType)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.RouterConfig{
		Tokens:       authSvc,
		Audits:       userRepo,
		AuthLimiter:  authLimiter,
		Auth:         handler.NewAuthHandler(authSvc),
		Curriculum:   handler.NewCurriculumHandler(curriculumSvc),
		Papers:       handler.NewPaperHandler(paperSvc, exportSvc, authSvc),
		Exports:      handler.NewExportHandler(exportSvc),
		Subscription: handler.NewSubscriptionHandler(subscriptionSvc),
		Users:        handler.NewUserHandler(userSvc),
		Overview:     handler.NewOverviewHandler(overviewSvc),
		Patterns:     handler.NewPatternHandler(patternSvc, cfg.Uploads.MaxUploadBytes),
		Content:      handler.NewContentHandler(contentSvc, authSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newQuestionBank returns the Gemini adapter, or the offline mock when no API key is configured.
func newQuestionBank(ctx context.Context, cfg *config.Config, logr *zap.Logger) bank {
	if cfg.Gemini.APIKey == "" {
		logr.Warn("GEMINI_API_KEY not set, using the offline question bank")
		return questionbank.Mock{}
	}
	client, err := questionbank.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		logr.Fatal("gemini client unavailable", zap.Error(err))
	}
	return questionbank.NewGemini(client.Models, questionbank.Config{
		TextModel:    cfg.Gemini.TextModel,
		ImageModel:   cfg.Gemini.ImageModel,
		AutoDiagrams: cfg.Gemini.AutoDiagrams,
		Timeout:      cfg.Gemini.Timeout,
	}, logr)
}
