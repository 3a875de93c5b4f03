package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/certifyhq/certify-api/api/swagger"
	"github.com/certifyhq/certify-api/internal/handler"
	"github.com/certifyhq/certify-api/internal/middleware"
	"github.com/certifyhq/certify-api/internal/models"
	"github.com/certifyhq/certify-api/internal/repository"
	"github.com/certifyhq/certify-api/internal/service"
	"github.com/certifyhq/certify-api/pkg/cache"
	"github.com/certifyhq/certify-api/pkg/config"
	"github.com/certifyhq/certify-api/pkg/database"
	"github.com/certifyhq/certify-api/pkg/jobs"
	"github.com/certifyhq/certify-api/pkg/logger"
	corsmiddleware "github.com/certifyhq/certify-api/pkg/middleware/cors"
	reqidmiddleware "github.com/certifyhq/certify-api/pkg/middleware/requestid"
	"github.com/certifyhq/certify-api/pkg/storage"
	"github.com/certifyhq/certify-api/pkg/template"
)

// @title Certify API
// @version 1.0.0
// @description Course enrollment and certificate issuance service
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare certificate storage", "error", err)
	}

	if cfg.Certificates.WKHTMLToPDFPath != "" {
		wkhtmltopdf.SetPath(cfg.Certificates.WKHTMLToPDFPath)
	}

	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	registry := template.NewRegistry(cfg.Certificates.TemplatesDir, logr)

	metricsSvc := service.NewMetricsService()
	cleanupSvc := service.NewCleanupService(store, metricsSvc, cfg.Certificates.CleanupInterval, cfg.Certificates.CleanupMaxAge, logr)

	queue := jobs.NewQueue("artifact-cleanup", cleanupSvc.HandleJob, jobs.QueueConfig{
		Workers: cfg.Certificates.CleanupWorkers,
		Logger:  logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)

	var catalogCache *repository.CacheRepository
	if cfg.Catalog.CacheEnabled && redisClient != nil {
		catalogCache = repository.NewCacheRepository(redisClient, logr)
		defer catalogCache.Close() //nolint:errcheck
	}

	authSvc := service.NewAuthService(userRepo, studentRepo, nil, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	courseSvc := newCourseService(courseRepo, catalogCache, cfg, logr).WithMetrics(metricsSvc).WithClassLister(classRepo)
	classSvc := service.NewClassService(classRepo, courseRepo, enrollmentRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, studentRepo, nil, logr).WithMetrics(metricsSvc)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	certificateSvc := service.NewCertificateService(
		certificateRepo,
		studentRepo,
		courseRepo,
		classRepo,
		enrollmentRepo,
		registry,
		store,
		signer,
		queue,
		service.CertificateConfig{
			DownloadBaseURL:   cfg.Certificates.DownloadBaseURL,
			ValidationBaseURL: cfg.Certificates.ValidationBaseURL,
		},
		nil,
		logr,
	).WithMetrics(metricsSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	classHandler := handler.NewClassHandler(classSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	opsHandler := handler.NewOpsHandler(cleanupSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/student/login", authHandler.StudentLogin)
	api.POST("/auth/student/register", authHandler.Register)

	api.GET("/courses", courseHandler.List)
	api.GET("/courses/with-classes", courseHandler.ListWithClasses)
	api.GET("/courses/:id", courseHandler.Get)
	api.GET("/classes", classHandler.List)
	api.GET("/classes/:id", classHandler.Get)
	api.GET("/enrollments/available", enrollmentHandler.Available)

	api.GET("/certificates/validate/:uuid", certificateHandler.Validate)
	api.POST("/certificates/lookup", certificateHandler.ByCPF)
	api.GET("/certificates/download", certificateHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	student := authed.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent, models.RoleAdmin))
	student.POST("/enrollments", enrollmentHandler.Enroll)
	student.DELETE("/enrollments/:id", enrollmentHandler.Cancel)
	student.GET("/enrollments/mine", enrollmentHandler.Mine)
	student.GET("/certificates/mine", certificateHandler.Mine)
	student.GET("/certificates/:uuid/download", certificateHandler.DownloadByUUID)
	student.GET("/students/me", studentHandler.Me)
	student.PUT("/students/me", studentHandler.UpdateMe)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/courses", courseHandler.Create)
	admin.PUT("/courses/:id", courseHandler.Update)
	admin.DELETE("/courses/:id", courseHandler.Delete)
	admin.POST("/classes", classHandler.Create)
	admin.PUT("/classes/:id", classHandler.Update)
	admin.PUT("/classes/:id/toggle", classHandler.Toggle)
	admin.DELETE("/classes/:id", classHandler.Delete)
	admin.GET("/classes/:id/students", classHandler.Roster)
	admin.GET("/students", studentHandler.List)
	admin.GET("/students/:id", studentHandler.Get)
	admin.PUT("/students/:id", studentHandler.Update)
	admin.POST("/certificates", certificateHandler.Issue)
	admin.POST("/certificates/class/:id", certificateHandler.BulkIssue)
	admin.GET("/certificates/templates", certificateHandler.Templates)
	admin.GET("/admin/artifacts", opsHandler.ArtifactStats)
	admin.POST("/admin/artifacts/sweep", opsHandler.Sweep)

	go cleanupSvc.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

func newCourseService(repo *repository.CourseRepository, catalogCache *repository.CacheRepository, cfg *config.Config, logr *zap.Logger) *service.CourseService {
	if catalogCache == nil {
		return service.NewCourseService(repo, nil, cfg.Catalog.CacheTTL, nil, logr)
	}
	return service.NewCourseService(repo, catalogCache, cfg.Catalog.CacheTTL, nil, logr)
}
