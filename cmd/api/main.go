package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/contactvault/server/internal/auth"
	"github.com/contactvault/server/internal/config"
	"github.com/contactvault/server/internal/db"
	httphandler "github.com/contactvault/server/internal/http"
	"github.com/contactvault/server/internal/http/handlers"
	"github.com/contactvault/server/internal/mail"
	"github.com/contactvault/server/internal/middleware"
	"github.com/contactvault/server/internal/repo"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env from CWD if present (env vars override)
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create context for startup operations
	ctx := context.Background()

	// Open database connection
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	userRepo := repo.NewUserRepo(database)
	contactRepo := repo.NewContactRepo(database)

	// Initialize auth services
	tokenService := auth.NewTokenService(cfg.JWTSecret)
	hasher := auth.NewPasswordHasher()

	var mailer mail.Dispatcher = mail.LogDispatcher{}
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPDispatcher(cfg.SMTP, cfg.BaseURL)
	} else {
		log.Println("SMTP_HOST not set; emails will be logged, not sent")
	}

	authService := auth.NewAuthService(tokenService, hasher, userRepo, mailer)

	// Rate limiters: Redis-backed when configured, in-memory otherwise
	authLimiter, apiLimiter := newLimiters(cfg)

	// Initialize handlers
	h := httphandler.Handlers{
		Auth:     handlers.NewAuthHandler(authService),
		Contacts: handlers.NewContactsHandler(contactRepo),
		Users:    handlers.NewUsersHandler(),
		Health:   handlers.NewHealthHandler(database),
	}

	// Create router
	router := httphandler.NewRouter(h, tokenService, userRepo, authLimiter, apiLimiter)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// newLimiters builds the per-route admission checks, both keyed by client IP:
// 20 req/min on auth endpoints, 60 req/min on the API.
func newLimiters(cfg *config.Config) (authLimiter, apiLimiter middleware.Limiter) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("Rate limiting backed by Redis at %s", cfg.RedisAddr)
		return middleware.NewRedisLimiter(client, "rl:auth:", time.Minute, 20),
			middleware.NewRedisLimiter(client, "rl:api:", time.Minute, 60)
	}
	log.Println("REDIS_ADDR not set; rate limiting is in-memory")
	return middleware.NewMemoryLimiter(time.Minute, 20),
		middleware.NewMemoryLimiter(time.Minute, 60)
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
