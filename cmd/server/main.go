package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sadiqgoni/GreenCycle/internal/config"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/handlers"
	"github.com/sadiqgoni/GreenCycle/internal/middleware"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sadiqgoni/GreenCycle/pkg/jwt"
	"github.com/sadiqgoni/GreenCycle/pkg/redislock"
	"github.com/sadiqgoni/GreenCycle/pkg/sms"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting GreenCycle operations backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Optional Redis for per-request write locks
	var rdb *redis.Client
	var locker services.Locker
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unreachable, service request locks disabled")
			rdb = nil
		} else {
			locker = redislock.New(rdb, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL)
			logger.Info("Redis connected, service request locks enabled")
		}
	} else {
		logger.Info("REDIS_URL not set, relying on versioned writes only")
	}

	// SMS gateway
	var gateway sms.Gateway
	if cfg.SMS.Mode == "production" {
		gateway = sms.NewHTTPGateway(sms.HTTPConfig{
			APIURL:   cfg.SMS.APIURL,
			APIKey:   cfg.SMS.APIKey,
			SenderID: cfg.SMS.SenderID,
			Timeout:  cfg.SMS.Timeout,
		})
		logger.Info("SMS gateway initialized in production mode")
	} else {
		gateway = sms.NewLogGateway(logger)
		logger.Info("SMS gateway in development mode (messages are logged, not sent)")
	}

	// Repositories
	logger.Info("Initializing services...")
	userRepository := database.NewUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)
	companyRepository := database.NewCompanyRepository(db)
	requestRepository := database.NewServiceRequestRepository(db)
	paymentRepository := database.NewPaymentRepository(db)
	statsRepository := database.NewStatsRepository(db)

	// Audit sinks stay untyped nil when auditing is off
	auditService := services.NewAuditService(db)
	var (
		transitionAudit services.TransitionAuditor
		authAudit       services.AuthAuditor
		companyAudit    services.CompanyAuditor
		adminAudit      services.AdminAuditor
	)
	if cfg.Security.EnableAuditLog {
		transitionAudit = auditService
		authAudit = auditService
		companyAudit = auditService
		adminAudit = auditService
	}

	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	rateLimitConfig := services.DefaultRateLimitConfig()
	rateLimitConfig.MaxEmailFailures = cfg.Security.LoginMaxFailures
	rateLimitConfig.EmailWindow = cfg.Security.LoginWindow
	rateLimitService := services.NewRateLimitService(db, rateLimitConfig)

	authService := services.NewAuthService(userRepository, refreshTokenRepository, jwtService, authAudit, cfg.Security.BcryptCost, logger).
		WithLoginLimiter(rateLimitService)
	companyService := services.NewCompanyService(companyRepository, companyAudit, logger)
	notificationService := services.NewNotificationService(gateway, cfg.Settlement.Currency, logger)
	requestService := services.NewRequestService(services.RequestServiceDeps{
		Requests:          requestRepository,
		Payments:          paymentRepository,
		Companies:         companyRepository,
		Locker:            locker,
		Audit:             transitionAudit,
		Notifier:          notificationService,
		DefaultCommission: cfg.Settlement.DefaultCommissionPercentage,
		Logger:            logger,
	})
	dashboardService := services.NewDashboardService(statsRepository, cfg.Settlement.Currency)
	settlementReport := services.NewSettlementReportService(requestRepository, cfg.Settlement.Currency)

	// Scheduled jobs
	var cronAPI handlers.CronAPI
	var cronService *services.CronService
	if cfg.Cron.Enabled {
		cronService = services.NewCronService(services.CronConfig{
			MetricsSchedule:    cfg.Cron.MetricsSchedule,
			SweepSchedule:      cfg.Cron.SweepSchedule,
			StaleAssignmentAge: cfg.Cron.StaleAssignmentAge,
			PendingPaymentAge:  cfg.Cron.PendingPaymentAge,
		}, statsRepository, statsRepository, refreshTokenRepository, auditService, rateLimitService, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		cronAPI = cronService
		logger.Info("Cron service started")
	}

	adminService := services.NewAdminService(userRepository, refreshTokenRepository, adminAudit, cfg.Security.BcryptCost, logger)
	if cfg.Admin.BootstrapEmail != "" {
		created, err := adminService.EnsureBootstrapAdmin(context.Background(), cfg.Admin.BootstrapName, cfg.Admin.BootstrapEmail, cfg.Admin.BootstrapPassword)
		if err != nil {
			logger.Fatalf("Failed to seed admin account: %v", err)
		}
		if created {
			logger.WithField("email", cfg.Admin.BootstrapEmail).Info("Bootstrap admin created")
		}
	}

	services.SetAppInfo("greencycle-api")
	logger.Info("Services initialized")

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	requestHandler := handlers.NewServiceRequestHandler(requestService, logger)
	companyHandler := handlers.NewCompanyHandler(companyService, logger)
	adminUserHandler := handlers.NewAdminUserHandler(adminService, logger)
	adminHandler := handlers.NewAdminHandler(dashboardService, settlementReport, cronAPI, auditService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db, rdb))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(jwtService, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authMiddleware, authHandler.Logout)
			auth.GET("/me", authMiddleware, authHandler.Me)
			auth.PUT("/password", authMiddleware, adminUserHandler.ChangePassword)
		}

		requests := v1.Group("/service-requests", authMiddleware)
		{
			requests.POST("", middleware.RequireRole(models.RoleHousehold), requestHandler.Create)
			requests.GET("", requestHandler.List)
			requests.GET("/:id", requestHandler.Get)
			requests.GET("/:id/actions", requestHandler.Actions)
			requests.GET("/:id/payment", requestHandler.Payment)
			requests.POST("/:id/:action", requestHandler.Perform)
		}

		companies := v1.Group("/companies", authMiddleware, middleware.RequireRole(models.RoleCompany))
		{
			companies.POST("", companyHandler.Register)
			companies.GET("/me", companyHandler.Me)
			companies.PUT("/me/availability", middleware.RequireApprovedCompany(companyRepository, logger), companyHandler.UpdateAvailability)
		}

		admin := v1.Group("/admin", authMiddleware, middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/companies", companyHandler.List)
			admin.GET("/companies/assignable", companyHandler.Assignable)
			admin.POST("/companies/:id/approve", companyHandler.Approve)
			admin.POST("/companies/:id/reject", companyHandler.Reject)

			admin.GET("/users", adminUserHandler.ListAdmins)
			admin.POST("/users", adminUserHandler.CreateAdmin)

			admin.GET("/dashboard/stats", adminHandler.DashboardStats)
			admin.GET("/settlements/export", adminHandler.ExportSettlements)
			admin.GET("/service-requests/:id/history", adminHandler.RequestHistory)

			admin.GET("/cron/jobs", adminHandler.CronStatus)
			admin.POST("/cron/jobs/:job/run", adminHandler.RunCronJob)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Debug("Incoming request")

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"route":      c.FullPath(),
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
			fields["role"] = userCtx.Role
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler reports database and, when configured, Redis health
func healthCheckHandler(db database.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "healthy"
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				redisStatus = "unhealthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
