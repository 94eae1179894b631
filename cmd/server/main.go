package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	issuanceapp "github.com/dte/backend/internal/application/issuance"
	"github.com/dte/backend/internal/infrastructure/auth"
	"github.com/dte/backend/internal/infrastructure/authority"
	"github.com/dte/backend/internal/infrastructure/config"
	"github.com/dte/backend/internal/infrastructure/logger"
	"github.com/dte/backend/internal/infrastructure/persistence"
	"github.com/dte/backend/internal/infrastructure/signer"
	"github.com/dte/backend/internal/interfaces/http/handler"
	"github.com/dte/backend/internal/interfaces/http/middleware"
	"github.com/dte/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			DTE Backend API
//	@version		1.0
//	@description	Electronic tax document issuance service: CAF folio management, document stamping and signing, authority submission and reconciliation

//	@contact.name	API Support
//	@contact.url	https://github.com/dte/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting DTE Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	cafBlockRepo := persistence.NewGormCafBlockRepository(db.DB)
	certificateRepo := persistence.NewGormCertificateRepository(db.DB)

	// Authority protocol client
	authorityClient, err := authority.NewClient(authority.Config{
		BaseURL:        cfg.Authority.BaseURL,
		RequestTimeout: cfg.Authority.RequestTimeout,
		RetryMax:       cfg.Authority.RetryMax,
		TokenTTL:       cfg.Authority.TokenTTL,
	}, certificateRepo, log)
	if err != nil {
		log.Fatal("Failed to create authority client", zap.Error(err))
	}

	// Document signer over tenant certificates
	documentSigner := signer.NewRSASigner(certificateRepo, log)

	// Initialize application services
	issuanceService := issuanceapp.NewService(
		documentRepo,
		cafBlockRepo,
		documentSigner,
		authorityClient,
		log,
		issuanceapp.WithConfig(issuanceapp.Config{
			SubmitMaxRetries:     uint64(cfg.Issuance.SubmitMaxRetries),
			SubmitInitialBackoff: cfg.Issuance.SubmitInitialBackoff,
			PollMaxAttempts:      cfg.Issuance.PollMaxAttempts,
			PollInitialInterval:  cfg.Issuance.PollInitialInterval,
		}),
	)
	cafService := issuanceapp.NewCafService(cafBlockRepo, log)

	// Background reconciliation of documents stranded mid-pipeline
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	if cfg.Issuance.ReconcileEnabled {
		reconciler := issuanceapp.NewReconciler(
			documentRepo,
			issuanceService,
			log,
			cfg.Issuance.ReconcileInterval,
			cfg.Issuance.ReconcileBatchSize,
		)
		go reconciler.Run(reconcilerCtx)
		log.Info("Reconciler started",
			zap.Duration("interval", cfg.Issuance.ReconcileInterval),
			zap.Int("batch_size", cfg.Issuance.ReconcileBatchSize),
		)
	}

	// JWT validation for API routes. Tokens are issued by the identity
	// platform; this service only validates and extracts the tenant.
	jwtService := auth.NewJWTService(cfg.JWT)
	var tokenBlacklist auth.TokenBlacklist
	if cfg.App.Env == "production" {
		tokenBlacklist, err = auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect token blacklist", zap.Error(err))
		}
	} else {
		redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, using in-memory token blacklist", zap.Error(err))
			tokenBlacklist = auth.NewInMemoryTokenBlacklist()
		} else {
			tokenBlacklist = redisBlacklist
		}
	}

	// Initialize HTTP handlers
	documentHandler := handler.NewDocumentHandler(issuanceService)
	cafHandler := handler.NewCafHandler(cafService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit; CAF imports are raw XML uploads
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Document issuance routes
	documentRoutes := router.NewDomainGroup("documents", "/documents")
	documentRoutes.POST("", documentHandler.Issue)
	documentRoutes.GET("", documentHandler.List)
	documentRoutes.GET("/:id", documentHandler.GetByID)
	documentRoutes.POST("/:id/resume", documentHandler.Resume)
	documentRoutes.POST("/:id/void", documentHandler.Void)

	// CAF folio authorization routes
	cafRoutes := router.NewDomainGroup("caf", "/caf")
	cafRoutes.POST("/import", cafHandler.Import)
	cafRoutes.GET("", cafHandler.List)
	cafRoutes.GET("/folio-status", cafHandler.FolioStatus)
	cafRoutes.GET("/:id", cafHandler.GetByID)
	cafRoutes.POST("/:id/deactivate", cafHandler.Deactivate)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(documentRoutes).
		Register(cafRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	stopReconciler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
