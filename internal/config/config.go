// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Server   ServerConfig   `ignored:"true"`
	Database DatabaseConfig `ignored:"true"`
	JWT      JWTConfig      `ignored:"true"`
	AWS      AWSConfig      `ignored:"true"`
	Storage  StorageConfig  `ignored:"true"`
	Cache    CacheConfig    `ignored:"true"`
	Admin    AdminConfig    `ignored:"true"`
	Log      LogConfig      `ignored:"true"`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	Host         string        `envconfig:"HOST" default:"localhost"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	// Upper bound on a multipart product submission.
	MaxUploadSize int64    `envconfig:"MAX_UPLOAD_SIZE" default:"10485760"`
	AllowOrigins  []string `envconfig:"ALLOW_ORIGINS" default:"http://localhost:3000"`
	RateLimit     bool     `envconfig:"RATE_LIMIT" default:"true"`
}

type DatabaseConfig struct {
	// pgx (default) or postgres for lib/pq
	Driver       string        `envconfig:"DRIVER" default:"pgx"`
	Host         string        `envconfig:"HOST" default:"localhost"`
	Port         string        `envconfig:"PORT" default:"5432"`
	User         string        `envconfig:"USER" default:"postgres"`
	Password     string        `envconfig:"PASSWORD"`
	Database     string        `envconfig:"NAME" default:"storefront"`
	SSLMode      string        `envconfig:"SSL_MODE" default:"disable"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	MaxLifetime  time.Duration `envconfig:"MAX_LIFETIME" default:"5m"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"warn"`
}

type JWTConfig struct {
	SecretKey      string        `envconfig:"SECRET" default:"your-secret-key-change-in-production"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TTL" default:"24h"`
}

type AWSConfig struct {
	Region          string `envconfig:"REGION" default:"us-east-1"`
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
	S3Bucket        string `envconfig:"S3_BUCKET" default:"storefront-assets"`
	CloudFrontURL   string `envconfig:"CLOUDFRONT_URL"`
	// Custom endpoint for S3-compatible stores (MinIO, LocalStack).
	Endpoint string `envconfig:"ENDPOINT"`
}

type StorageConfig struct {
	// s3 or local
	Driver    string `envconfig:"DRIVER" default:"local"`
	LocalPath string `envconfig:"LOCAL_PATH" default:"./uploads"`
	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:8080/uploads"`
	Folder    string `envconfig:"FOLDER" default:"products"`
}

type CacheConfig struct {
	Enabled     bool          `envconfig:"ENABLED" default:"true"`
	MaxCost     int64         `envconfig:"MAX_COST" default:"67108864"`
	NumCounters int64         `envconfig:"NUM_COUNTERS" default:"100000"`
	TTL         time.Duration `envconfig:"TTL" default:"10m"`
}

type AdminConfig struct {
	Email    string `envconfig:"EMAIL" default:"admin@storefront.local"`
	Password string `envconfig:"PASSWORD"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{}
	sections := []struct {
		prefix string
		spec   interface{}
	}{
		{"", cfg},
		{"SERVER", &cfg.Server},
		{"DB", &cfg.Database},
		{"JWT", &cfg.JWT},
		{"AWS", &cfg.AWS},
		{"STORAGE", &cfg.Storage},
		{"CACHE", &cfg.Cache},
		{"ADMIN", &cfg.Admin},
		{"LOG", &cfg.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.spec); err != nil {
			return nil, fmt.Errorf("failed to process %s configuration: %w", s.prefix, err)
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.IsProduction() {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("database password is required in production")
	}

	switch c.Database.Driver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("SERVER_MAX_UPLOAD_SIZE must be positive")
	}

	return nil
}
