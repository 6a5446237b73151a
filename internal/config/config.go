package config

import (
	"fmt"
	"os"
)

// SMTPConfig holds outbound mail settings. Empty Host disables real delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string
	BaseURL     string
	RedisAddr   string
	SMTP        SMTPConfig
	DevMode     bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:    "8080", // default port
		BaseURL: "http://localhost:8080",
	}

	// Load DATABASE_URL (required)
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	// Load PORT (optional, defaults to 8080)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Load JWT_SECRET (required)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	// Load BASE_URL (optional, used to build confirmation/reset links in emails)
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	// Load REDIS_ADDR (optional; rate limiting falls back to in-memory when unset)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	// Load SMTP settings (optional; mail is logged instead of sent when SMTP_HOST is unset)
	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if cfg.SMTP.Port == "" {
		cfg.SMTP.Port = "465"
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	// Load DEV_MODE (optional, defaults to false)
	devMode := os.Getenv("DEV_MODE")
	cfg.DevMode = devMode == "true"

	return cfg, nil
}
