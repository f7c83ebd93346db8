package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	ServerPort string
	LogLevel   string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Amazon SES, used to e-mail invite codes
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string
	EmailDebug   bool

	// Google OAuth login
	GoogleClientID       string
	GoogleClientSecret   string
	OAuthRedirectBaseURL string
}

const insecureDevSecret = "change-me-in-production"

// Load reads configuration from an optional .env file and the environment,
// falling back to sensible defaults
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_TYPE", "sqlite")
	v.SetDefault("DB_PATH", "./familybudget.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", insecureDevSecret)
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 24*time.Hour)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", time.Minute)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SES_FROM_EMAIL", "")
	v.SetDefault("SES_FROM_NAME", "Family Budget")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("EMAIL_DEBUG", false)
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_REDIRECT_BASE_URL", "")

	return &Config{
		ServerPort:           v.GetString("PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		DatabaseType:         strings.ToLower(v.GetString("DB_TYPE")),
		DatabasePath:         v.GetString("DB_PATH"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		AccessTokenTTL:       v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:      v.GetDuration("REFRESH_TOKEN_TTL"),
		LoginRateLimit:       v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:      v.GetDuration("LOGIN_RATE_WINDOW"),
		AWSRegion:            v.GetString("AWS_REGION"),
		SESFromEmail:         v.GetString("SES_FROM_EMAIL"),
		SESFromName:          v.GetString("SES_FROM_NAME"),
		AppBaseURL:           v.GetString("APP_BASE_URL"),
		EmailDebug:           v.GetBool("EMAIL_DEBUG"),
		GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectBaseURL: v.GetString("OAUTH_REDIRECT_BASE_URL"),
	}, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if port, err := strconv.Atoi(c.ServerPort); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid port '%s': must be a number", c.ServerPort))
	} else if port < 1 || port > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DatabaseType {
	case "sqlite", "sqlite3", "":
		if c.DatabasePath == "" {
			result = multierror.Append(result, errors.New("DB_PATH cannot be empty when using sqlite"))
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			result = multierror.Append(result, fmt.Errorf("DATABASE_URL is required when DB_TYPE is %s", c.DatabaseType))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported DB_TYPE '%s': must be sqlite, postgres or mysql", c.DatabaseType))
	}

	if len(c.JWTSecret) < 16 {
		result = multierror.Append(result, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.AccessTokenTTL <= 0 {
		result = multierror.Append(result, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		result = multierror.Append(result, errors.New("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL"))
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		result = multierror.Append(result, errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive"))
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		result = multierror.Append(result, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}

	return result.ErrorOrNil()
}

// UsesInsecureSecret reports whether the built-in development JWT secret is in use
func (c *Config) UsesInsecureSecret() bool {
	return c.JWTSecret == insecureDevSecret
}

// GoogleOAuthEnabled reports whether Google login is configured
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
