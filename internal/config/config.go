package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "lorry-app-secret"

// DefaultDatabaseURL is the embedded SQLite file used when DATABASE_URL is unset
const DefaultDatabaseURL = "data/lorry.db"

// Config holds every setting the server needs. It is built once in main and passed down.
type Config struct {
	Env                       string
	Port                      string
	DatabaseURL               string
	JWTSecret                 string
	TokenTTL                  time.Duration
	AllowedOrigins            []string
	FirebaseCredentialsBase64 string
	FirebaseCredentialsFile   string
	SeedDemoUsers             bool
}

// IsDev reports whether the server runs in local development mode
func (c *Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function (os.Getenv in production)
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Env:                       get("APP_ENV", "production"),
		Port:                      get("PORT", "4000"),
		DatabaseURL:               get("DATABASE_URL", DefaultDatabaseURL),
		JWTSecret:                 get("APP_JWT_SECRET", ""),
		FirebaseCredentialsBase64: get("FIREBASE_CREDENTIALS_BASE64", ""),
		FirebaseCredentialsFile:   get("FIREBASE_CREDENTIALS_FILE", ""),
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return nil, errors.New("APP_JWT_SECRET environment variable is required")
		}
		log.Println("⚠️  APP_JWT_SECRET not set, using development secret")
		cfg.JWTSecret = devJWTSecret
	}

	ttl, err := time.ParseDuration(get("TOKEN_TTL", "12h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL %q: must be a positive Go duration", getenv("TOKEN_TTL"))
	}
	cfg.TokenTTL = ttl

	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	seed, err := strconv.ParseBool(get("SEED_DEMO_USERS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_DEMO_USERS %q: %w", getenv("SEED_DEMO_USERS"), err)
	}
	cfg.SeedDemoUsers = seed

	return cfg, nil
}
