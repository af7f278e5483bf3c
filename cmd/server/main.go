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
	"github.com/sirupsen/logrus"

	"github.com/wandertrip/booking-backend/internal/config"
	"github.com/wandertrip/booking-backend/internal/database"
	"github.com/wandertrip/booking-backend/internal/handlers"
	"github.com/wandertrip/booking-backend/internal/middleware"
	"github.com/wandertrip/booking-backend/internal/notify"
	"github.com/wandertrip/booking-backend/internal/queue"
	"github.com/wandertrip/booking-backend/internal/services"
	"github.com/wandertrip/booking-backend/pkg/jwt"
	"github.com/wandertrip/booking-backend/pkg/zalopay"
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

	logger.Info("Starting WanderTrip Booking Backend")
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
	logger.Info("Database connection established")

	// Notification bus. Redis being down degrades realtime notifications,
	// it must not take bookings down with it.
	var bus notify.Bus = notify.NopBus{}
	redisClient, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warnf("Redis unavailable, realtime notifications disabled: %v", err)
	} else {
		defer redisClient.Close()
		bus = notify.NewRedisBus(redisClient, logger)
		logger.Info("Redis notification bus connected")
	}

	// Email queue, same degradation policy as the bus
	var emails queue.EmailPublisher = queue.NopPublisher{}
	rabbitPublisher, rabbitCleanup, err := queue.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName, logger)
	if err != nil {
		logger.Warnf("RabbitMQ unavailable, email jobs disabled: %v", err)
	} else {
		defer rabbitCleanup()
		emails = rabbitPublisher
		logger.Info("RabbitMQ email queue connected")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	zaloPayClient := zalopay.NewClient(zalopay.Config{
		AppID:       cfg.ZaloPay.AppID,
		Key1:        cfg.ZaloPay.Key1,
		Key2:        cfg.ZaloPay.Key2,
		Endpoint:    cfg.ZaloPay.Endpoint,
		QueryURL:    cfg.ZaloPay.QueryURL,
		CallbackURL: cfg.ZaloPay.CallbackURL,
	})

	userRepo := database.NewUserRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	detailRepo := database.NewBookingDetailRepository(db)
	productRepo := database.NewProductRepository(db)
	cancellationRepo := database.NewCancellationRepository(db)
	completionRepo := database.NewCompletionRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db)

	bookingService := services.NewBookingService(bookingRepo, detailRepo, productRepo, bus, logger)
	cancellationService := services.NewCancellationService(cancellationRepo, bookingRepo, detailRepo, bus, emails, logger)
	paymentService := services.NewPaymentService(bookingRepo, detailRepo, auditRepo, zaloPayClient, bus, emails, logger)
	completionService := services.NewCompletionService(completionRepo, detailRepo, bus, logger, cfg.Scheduler.Interval)

	// Start the auto-completion scheduler
	completionService.Start()
	logger.Infof("Completion scheduler started, interval %s", cfg.Scheduler.Interval)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	cancellationHandler := handlers.NewCancellationHandler(cancellationService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	profileHandler := handlers.NewProfileHandler(userRepo, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Gateway callback is unauthenticated, the HMAC on the payload is
		// the trust anchor
		v1.POST("/payment/zalopay/callback", paymentHandler.ZaloPayCallback)

		authenticated := v1.Group("")
		authenticated.Use(middleware.AuthMiddleware(jwtService))
		{
			authenticated.GET("/me", profileHandler.GetProfile)

			bookings := authenticated.Group("/bookings")
			{
				bookings.POST("", bookingHandler.CreateBooking)
				bookings.GET("", bookingHandler.GetMyBookings)
				bookings.GET("/:id", bookingHandler.GetBooking)
				bookings.PUT("/:id", bookingHandler.UpdateBooking)
				bookings.DELETE("/:id", bookingHandler.DeleteBooking)
			}

			adminOnly := middleware.RequireRole(middleware.AdminRole)

			cancellations := authenticated.Group("/cancellationrequests")
			{
				cancellations.POST("", cancellationHandler.SubmitCancellationRequest)
				cancellations.GET("/user", cancellationHandler.GetMyCancellationRequests)
				cancellations.GET("/booking/:bookingId", cancellationHandler.GetPendingCancellationRequest)

				cancellations.GET("", adminOnly, cancellationHandler.ListCancellationRequests)
				cancellations.GET("/count", adminOnly, cancellationHandler.GetPendingCount)
				cancellations.PUT("/:id/approve", adminOnly, cancellationHandler.ApproveCancellationRequest)
				cancellations.PUT("/:id/reject", adminOnly, cancellationHandler.RejectCancellationRequest)
			}

			payment := authenticated.Group("/payment/zalopay")
			{
				payment.POST("/create", paymentHandler.CreatePaymentOrder)
				payment.POST("/status", paymentHandler.QueryPaymentStatus)
				payment.GET("/verify/:bookingId", paymentHandler.VerifyPayment)
			}

			admin := authenticated.Group("/admin", adminOnly)
			{
				admin.GET("/bookings", bookingHandler.ListBookings)
				admin.PUT("/bookings/:id/status", bookingHandler.UpdateBookingStatus)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	// Stop the completion scheduler
	completionService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler reports service and database health
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "healthy"
		status := http.StatusOK
		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":   dbStatus,
			"version":  version,
			"database": dbStatus,
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
