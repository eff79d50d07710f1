package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/FACorreiaa/bungmap/internal/domain/auth/handler"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/repository"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/service"
	"github.com/FACorreiaa/bungmap/internal/domain/documents"
	"github.com/FACorreiaa/bungmap/pkg/config"
	"github.com/FACorreiaa/bungmap/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	sqlDB *sql.DB

	// Repositories
	AuthRepo     repository.AuthRepository
	DocumentRepo documents.Repository

	// Services
	TokenManager service.TokenManager
	AuthService  *service.AuthService
	DocumentSvc  documents.Service

	// Handlers
	AuthHandler     *handler.AuthHandler
	OAuthHandler    *handler.OAuthHandler
	DocumentHandler *documents.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	sqlDB, err := sql.Open("pgx", d.Config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open sql DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping sql DB: %w", err)
	}

	d.sqlDB = sqlDB
	d.AuthRepo = repository.NewPostgresAuthRepository(sqlDB)
	d.DocumentRepo = documents.NewRepositoryImpl(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	jwtSecret := []byte(d.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		return fmt.Errorf("jwt secret is required")
	}

	d.TokenManager = service.NewTokenManager(jwtSecret, d.Config.Auth.TokenTTL)
	d.AuthService = service.NewAuthService(d.AuthRepo, d.TokenManager, d.Config.Auth.AdminEmail, d.Logger)
	d.DocumentSvc = documents.NewService(d.DocumentRepo, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.AuthHandler = handler.NewAuthHandler(d.AuthService, d.Logger)
	d.DocumentHandler = documents.NewHandler(d.DocumentSvc, d.Logger)

	oauth := handler.OAuthConfig{
		ClientID:      d.Config.Auth.GoogleClientID,
		ClientSecret:  d.Config.Auth.GoogleClientSecret,
		CallbackURL:   d.Config.Auth.GoogleCallbackURL,
		SessionSecret: d.Config.Auth.SessionSecret,
		Secure:        d.Config.Auth.SecureCookies,
	}
	if oauth.Enabled() {
		d.OAuthHandler = handler.NewOAuthHandler(oauth, d.AuthService, d.Logger)
	} else {
		d.Logger.Info("google sign in disabled; no client configured")
	}
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.sqlDB != nil {
		d.sqlDB.Close()
	}
	d.Logger.Info("cleanup completed")
}
