package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/urbancab/service-booking/internal/application"
	"github.com/urbancab/service-booking/internal/auth"
	"github.com/urbancab/service-booking/internal/config"
	"github.com/urbancab/service-booking/internal/database"
	bookingDomain "github.com/urbancab/service-booking/internal/domain/booking"
	"github.com/urbancab/service-booking/internal/domain/pricing"
	bookingEvents "github.com/urbancab/service-booking/internal/events"
	"github.com/urbancab/service-booking/internal/geo"
	"github.com/urbancab/service-booking/internal/handler"
	"github.com/urbancab/service-booking/internal/logging"
	"github.com/urbancab/service-booking/internal/maps"
	"github.com/urbancab/service-booking/internal/notify"
	"github.com/urbancab/service-booking/internal/payments"
	"github.com/urbancab/service-booking/internal/repository"
)

const (
	geoCacheCapacity = 5000
	geoCacheSweep    = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logging.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// The transition table is the single source of truth for lifecycle
	// permissions; refuse to start if it is inconsistent.
	if err := bookingDomain.ValidateTransitionTable(); err != nil {
		log.Fatal("invalid booking transition table", zap.Error(err))
	}

	// Connect to database
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations (dev auto-migrate)
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.BookingModel{}, &repository.DriverModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL)

	// Initialize Kafka producer and event publisher
	kafkaProducer := bookingEvents.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()
	publisher := bookingEvents.NewPublisher(kafkaProducer, "service-booking", log)

	// Initialize distance resolution pipeline
	geocoder, err := maps.NewGeocodingService(cfg.Maps.APIKey, cfg.Maps.Region)
	if err != nil {
		log.Fatal("failed to create geocoding service", zap.Error(err))
	}
	router, err := maps.NewRoutingService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatal("failed to create routing service", zap.Error(err))
	}

	coordsCache := geo.NewCache[geo.Coordinates](geoCacheCapacity, geo.WithSweepInterval[geo.Coordinates](geoCacheSweep))
	defer coordsCache.Close()
	distanceCache := geo.NewCache[geo.DistanceResult](geoCacheCapacity, geo.WithSweepInterval[geo.DistanceResult](geoCacheSweep))
	defer distanceCache.Close()

	pipeline := geo.NewPipeline(geocoder, router, coordsCache, distanceCache, log)

	// Initialize payment gateway client
	gateway := payments.NewClient(cfg.Payments.KeyID, cfg.Payments.KeySecret)

	// Initialize push notifications (best-effort; disabled without a project)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier notify.Sender = notify.NopSender{}
	if cfg.Firebase.ProjectID != "" {
		fcm, err := notify.NewFCMSender(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, log)
		if err != nil {
			log.Fatal("failed to initialize push notifications", zap.Error(err))
		}
		notifier = fcm
	}

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	driverRepo := repository.NewGormDriverRepository(db)

	// Initialize application services
	quoteService := application.NewQuoteService(pipeline, pricing.NewCalculator(), log)
	bookingService := application.NewBookingService(
		bookingRepo,
		driverRepo,
		quoteService,
		pricing.NewDiscountEngine(),
		bookingDomain.DefaultCancellationPolicy(),
		publisher,
		gateway,
		notifier,
		log,
	)
	driverService := application.NewDriverService(driverRepo, log)

	// Initialize and start payment event consumer in a goroutine
	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroup,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	quoteHandler := handler.NewQuoteHandler(quoteService)
	driverHandler := handler.NewDriverHandler(driverService)
	adminHandler := handler.NewAdminBookingHandler(bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	// Apply global middleware
	engine.Use(handler.RecoveryMiddleware(log))
	engine.Use(handler.LoggerMiddleware(log))
	engine.Use(handler.RequestIDMiddleware())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := handler.NewHealthHandler(db, "service-booking")
	healthHandler.RegisterRoutes(engine)

	// Register routes
	bookingHandler.RegisterRoutes(&engine.RouterGroup, jwtManager)
	quoteHandler.RegisterRoutes(&engine.RouterGroup, jwtManager)
	driverHandler.RegisterRoutes(&engine.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&engine.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
