package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classdesk/classdesk-api/internal/config"
	"github.com/classdesk/classdesk-api/internal/database"
	"github.com/classdesk/classdesk-api/internal/handler"
	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/observability"
	"github.com/classdesk/classdesk-api/internal/repository"
	"github.com/classdesk/classdesk-api/internal/router"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/internal/storage"
	cloud "github.com/classdesk/classdesk-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Group{}, &models.GroupMember{}, &models.Assignment{}, &models.Submission{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, assignment caching disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not set, event publishing disabled")
	}

	blobs, err := buildBlobStore(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise blob storage: %v", err)
	}

	observability.RegisterMetrics()

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	gate := service.NewAuthorizationGate(groupRepo, assignmentRepo, logger)
	events := service.NewEventPublisher(natsConn, "classdesk", logger)

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.TokenTTL, logger)
	groupService := service.NewGroupService(groupRepo, gate, validate, events, redisClient, cfg.JoinCodeAttempts, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, submissionRepo, gate, validate, blobs, redisClient, cfg.AssignmentCacheTTL, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, gate, validate, blobs, events, redisClient, cfg.MaxUploadBytes, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	groupHandler := handler.NewGroupHandler(groupService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       authHandler,
		GroupHandler:      groupHandler,
		AssignmentHandler: assignmentHandler,
		SubmissionHandler: submissionHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildBlobStore(cfg config.Config, logger zerolog.Logger) (storage.BlobStore, error) {
	if cfg.StorageDriver == config.StorageDriverCloudinary {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}

	return storage.NewLocalStore(cfg.LocalStoragePath, logger)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
