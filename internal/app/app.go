package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sprintboard_backend/database"
	"sprintboard_backend/internal/config"
	"sprintboard_backend/internal/handlers"
	"sprintboard_backend/internal/logger"
	"sprintboard_backend/internal/middleware"
	"sprintboard_backend/internal/notifier"
	"sprintboard_backend/internal/repositories"
	"sprintboard_backend/internal/routes"
	"sprintboard_backend/internal/services"
	"sprintboard_backend/internal/validator"
	"sprintboard_backend/internal/workers"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	gormDB, err := database.ConnectGorm()
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	ginRouter := SetupRouter(cfg, gormDB, sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startWorkers(ctx, cfg, gormDB)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", "address", address)
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(cfg *config.Config, gormDB *gorm.DB, sqlDB *sql.DB) *gin.Engine {
	serviceContainer := initializeServices()
	appHandlers := initializeHandlers(serviceContainer)

	ginRouter := initializeGinRouter(gormDB)
	routes.RegisterRoutes(ginRouter, appHandlers)

	return ginRouter
}

// Services are stateless; handlers pass the request-scoped *gorm.DB
// into every call.
func initializeServices() *services.ServiceContainer {
	notificationRepo := repositories.NewNotificationRepository()
	notificationService := services.NewNotificationService(notificationRepo)

	return &services.ServiceContainer{
		NotificationService: notificationService,
	}
}

func initializeHandlers(container *services.ServiceContainer) *handlers.AppHandlers {
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	return &handlers.AppHandlers{
		NotificationHandler: handlers.NewNotificationHandler(baseHandler, container.NotificationService),
	}
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}

// startWorkers launches the background maintenance loops: the outbox
// drain for the service's own outgoing notifications and the read-row
// cleanup.
func startWorkers(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) {
	if cfg.Notifier.BaseURL != "" {
		gateway := notifier.NewGatewayClient(cfg.Notifier.BaseURL, cfg.HTTPTimeout(), nil)
		outbox := notifier.NewOutbox(cfg.Notifier.OutboxPath)
		emitter := notifier.NewEmitter(gateway, "system")
		scheduler := notifier.NewRetryScheduler(gateway, outbox, emitter, cfg.Notifier.MaxRetries)

		workers.NewOutboxWorker(scheduler, cfg.RetryInterval()).Start(ctx)
		logger.Info("Outbox worker started", "interval", cfg.RetryInterval())
	}

	notificationRepo := repositories.NewNotificationRepository()
	cleanup := func(days int) error {
		return notificationRepo.CleanOldNotifications(gormDB, days)
	}
	workers.NewCleanupWorker(cleanup, 0, 0).Start(ctx)
	logger.Info("Cleanup worker started")
}
