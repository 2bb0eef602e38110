package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"careworks_backend/internal/auth"
	"careworks_backend/internal/config"
	"careworks_backend/internal/email"
	"careworks_backend/internal/handlers"
	"careworks_backend/internal/logger"
	"careworks_backend/internal/middleware"
	"careworks_backend/internal/models"
	"careworks_backend/internal/repositories"
	"careworks_backend/internal/routes"
	"careworks_backend/internal/services"
	"careworks_backend/internal/validator"
	"careworks_backend/pkg/apperrors"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig

	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(cfg.Server.Env != "production")

	// The signing key is a startup requirement, not a per-request concern.
	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT secret is not configured")
	}
	auth.Init(cfg.JWT.Secret, time.Duration(cfg.JWT.TTL)*time.Hour)

	logger.Info("Connecting to database...")
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := gormDB.AutoMigrate(&models.User{}); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	if err := seedFirstAdmin(gormDB, cfg); err != nil {
		logger.Fatal("Failed to seed first admin user", "error", err)
	}

	ginRouter := SetupRouter(cfg, gormDB)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	emailProvider := buildEmailProvider(cfg)

	userRepo := repositories.NewUserRepository(gormDB)
	authService := services.NewAuthService(userRepo, emailProvider, cfg.Server.FrontendURL)

	v := validator.New()
	base := handlers.NewBaseHandler(v)
	appHandlers := &routes.AppHandlers{
		AuthHandler: handlers.NewAuthHandler(base, authService),
		UserHandler: handlers.NewUserHandler(base, userRepo),
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.RequestIDMiddleware())
	ginRouter.Use(middleware.LoggingMiddleware())

	authMW := middleware.AuthMiddleware(userRepo)
	adminMW := middleware.AdminMiddleware()
	routes.RegisterRoutes(ginRouter, appHandlers, authMW, adminMW)

	return ginRouter
}

func buildEmailProvider(cfg *config.Config) email.Provider {
	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP is not configured; using the mock email provider")
		return &MockEmailProvider{}
	}

	renderer := email.NewTemplateManager()
	if cfg.Email.TemplatesDir != "" {
		if err := renderer.LoadTemplates(cfg.Email.TemplatesDir); err != nil {
			logger.Fatal("Failed to load email templates", "error", err, "dir", cfg.Email.TemplatesDir)
		}
	}

	smtpCfg := email.DefaultConfig()
	smtpCfg.Host = cfg.Email.SMTPHost
	if cfg.Email.SMTPPort != 0 {
		smtpCfg.Port = cfg.Email.SMTPPort
	}
	smtpCfg.Username = cfg.Email.SMTPUsername
	smtpCfg.Password = cfg.Email.SMTPPassword
	smtpCfg.FromEmail = cfg.Email.FromEmail
	smtpCfg.FromName = cfg.Email.FromName
	smtpCfg.UseTLS = cfg.Email.UseTLS

	return email.NewSMTPProvider(smtpCfg, renderer)
}

// seedFirstAdmin creates the configured admin account when it does not
// exist yet. Seeded admins are pre-verified: there is nobody to email.
func seedFirstAdmin(gormDB *gorm.DB, cfg *config.Config) error {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		logger.Warn("Admin credentials not configured; skipping admin seed")
		return nil
	}

	var existing models.User
	err := gormDB.Where("email = ?", cfg.Admin.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:        cfg.Admin.Email,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		FirstName:    "Admin",
		IsVerified:   true,
		Approved:     true,
	}
	if err := gormDB.Create(admin).Error; err != nil {
		return err
	}

	logger.Info("Seeded first admin user", "email", cfg.Admin.Email)
	return nil
}
