package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aura-webinar/studio/pkg/database"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	OpenAI     OpenAIConfig
	Generation GenerationConfig
	Admin      AdminConfig
	Render     RenderConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	DefaultRoute       string // where non-admins are sent when they reach the admin surface
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/studio?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int // 0 keeps the pgx default
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket for catalog preview media.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string
	PresignExpireMinutes int
}

// OpenAIConfig holds the completion service credentials and model settings.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty = api.openai.com
	Model       string // knowledge base, topic and slide generation
	ScriptModel string // per-slide scripts
	Temperature float64
	TimeoutSec  int // per-call deadline
}

// GenerationConfig bounds background generation runs.
type GenerationConfig struct {
	TimeoutSec int // whole slide run
	LockTTLSec int // per-webinar mutual exclusion lease
}

// AdminConfig holds the admin identity rule.
type AdminConfig struct {
	EmailDomain string // users whose email ends with "@"+EmailDomain are admins
}

// RenderConfig holds the external avatar video render endpoint.
type RenderConfig struct {
	URL string // empty disables video rendering
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// PoolOptions returns the pool settings for the named process.
func (c DatabaseConfig) PoolOptions(app string) database.PoolOptions {
	return database.PoolOptions{
		MaxConns:        int32(c.MaxConns),
		MaxConnIdleTime: 5 * time.Minute,
		ApplicationName: app,
	}
}

// CallTimeout returns the per-call completion deadline.
func (c OpenAIConfig) CallTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RunTimeout returns the deadline for a whole slide generation run.
func (c GenerationConfig) RunTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// LockTTL returns the lease of a generation lock.
func (c GenerationConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
			DefaultRoute:       getEnv("DEFAULT_ROUTE", "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "studio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:          getEnv("AWS_S3_MEDIA_BUCKET", "webinar-studio-media"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4"),
			ScriptModel: getEnv("OPENAI_SCRIPT_MODEL", "gpt-3.5-turbo"),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
			TimeoutSec:  getEnvInt("OPENAI_TIMEOUT_SEC", 90),
		},
		Generation: GenerationConfig{
			TimeoutSec: getEnvInt("GENERATION_TIMEOUT_SEC", 900),
			LockTTLSec: getEnvInt("GENERATION_LOCK_TTL_SEC", 1200),
		},
		Admin: AdminConfig{
			EmailDomain: strings.TrimPrefix(getEnv("ADMIN_EMAIL_DOMAIN", "thementorprogram.xyz"), "@"),
		},
		Render: RenderConfig{
			URL: getEnv("RENDER_URL", ""),
		},
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	// A lease shorter than a run expires mid-run and admits a second run.
	if cfg.Generation.LockTTLSec < cfg.Generation.TimeoutSec {
		return nil, fmt.Errorf("GENERATION_LOCK_TTL_SEC (%d) must be at least GENERATION_TIMEOUT_SEC (%d)",
			cfg.Generation.LockTTLSec, cfg.Generation.TimeoutSec)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
