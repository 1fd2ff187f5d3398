package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vaultgate/vaultgate/internal/config"
	"github.com/vaultgate/vaultgate/internal/gateway"
	"github.com/vaultgate/vaultgate/internal/handler"
	"github.com/vaultgate/vaultgate/internal/middleware"
	"github.com/vaultgate/vaultgate/internal/model"
	"github.com/vaultgate/vaultgate/internal/repository"
	"github.com/vaultgate/vaultgate/internal/service"
	"github.com/vaultgate/vaultgate/internal/ws"
	"github.com/vaultgate/vaultgate/migrations"
	"github.com/vaultgate/vaultgate/pkg/auth"
	"github.com/vaultgate/vaultgate/pkg/nudge"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting VaultGate Device Gateway [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(
			&model.Device{},
			&model.NotificationStage{},
			&model.PushNotification{},
			&model.VerificationStage{},
			&model.Session{},
		); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Initialize Layers ====================
	// JWT Manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	deviceRepo := repository.NewDeviceRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// Gateways, one registry each, wired into the dispatch table
	dispatcher := ws.NewDispatcher()

	notifyGateway := gateway.NewNotifyGateway(ws.NewRegistry[uuid.UUID](), deviceRepo, notifRepo)
	notifyGateway.RegisterRoutes(dispatcher)

	verifyGateway := gateway.NewVerifyGateway(ws.NewRegistry[gateway.VerifySubscription](), deviceRepo, sessionRepo)
	verifyGateway.RegisterRoutes(dispatcher)

	// FCM nudger (optional, wakes offline devices)
	fcmNudger, err := nudge.NewFCMNudger(cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Printf("⚠️  FCM not available: %v (offline nudges disabled)", err)
	}

	// Producer-side services
	notificationService := service.NewNotificationService(notifRepo, deviceRepo, notifyGateway, fcmNudger)
	sessionService := service.NewSessionService(sessionRepo, verifyGateway)

	// Handlers
	wsHandler := handler.NewWSHandler(dispatcher, jwtManager)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	sessionHandler := handler.NewSessionHandler(sessionService)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "vaultgate-gateway",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== Internal Producer API ====================
	internalAPI := router.Group("/internal/v1")
	internalAPI.Use(middleware.AuthMiddleware(jwtManager, rdb))
	{
		internalAPI.POST("/notifications", notificationHandler.CreateNotification)
		internalAPI.POST("/sessions/:id/verification-stage", sessionHandler.AdvanceVerificationStage)
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 VaultGate gateway running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("🔌 WebSocket: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}
