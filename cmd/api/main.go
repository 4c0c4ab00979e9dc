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
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/config"
	"github.com/campuspass/outpass-api/internal/database"
	"github.com/campuspass/outpass-api/internal/handler"
	"github.com/campuspass/outpass-api/internal/middleware"
	"github.com/campuspass/outpass-api/internal/repository"
	"github.com/campuspass/outpass-api/internal/router"
	"github.com/campuspass/outpass-api/internal/service"
	cloud "github.com/campuspass/outpass-api/pkg/cloudinary"
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

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, profile photo uploads disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	outpassRepo := repository.NewOutpassRepository(db)
	logRepo := repository.NewOutpassLogRepository(db)
	reportRepo := repository.NewReportRepository(db)

	notifier := service.NewNotifier(natsConn, logger)
	scanFeed := service.NewScanFeed(logger)
	issuer := service.NewQRTokenIssuer(cfg.QRTokenTTL)

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.JWTTokenTTL, logger)
	outpassService := service.NewOutpassService(outpassRepo, logRepo, userRepo, issuer, notifier, validate, cfg.MaxAdvanceDays, logger)
	scanService := service.NewScanService(outpassRepo, logRepo, notifier, scanFeed, logger)
	adminService := service.NewAdminService(userRepo, departmentRepo, validate, logger)
	reportService := service.NewReportService(reportRepo, userRepo, outpassService, redisClient, cfg.StatsCacheTTL, validate, logger)
	uploadService := service.NewUploadService(storage, userRepo, cfg.MaxUploadSizeMB, logger)

	authHandler := handler.NewAuthHandler(authService, uploadService, adminService, validate, logger)
	studentHandler := handler.NewStudentHandler(outpassService, reportService, validate, logger)
	staffHandler := handler.NewStaffHandler(outpassService, reportService, validate, logger)
	hodHandler := handler.NewHODHandler(outpassService, reportService, validate, logger)
	securityHandler := handler.NewSecurityHandler(scanService, scanFeed, validate, logger)
	adminHandler := handler.NewAdminHandler(adminService, outpassService, reportService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     authHandler,
		StudentHandler:  studentHandler,
		StaffHandler:    staffHandler,
		HODHandler:      hodHandler,
		SecurityHandler: securityHandler,
		AdminHandler:    adminHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
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
