package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the churn scorer.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Prediction PredictionConfig `yaml:"prediction"`
	SES        SESConfig        `yaml:"ses"`
	Digest     DigestConfig     `yaml:"digest"`
	Auth       AuthConfig       `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether email values are masked. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// StorageConfig locates uploaded churn files.
type StorageConfig struct {
	Type       string `yaml:"type"` // "s3" or "local"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// DatabaseConfig selects and configures the analysis store.
type DatabaseConfig struct {
	URL           string `yaml:"url"`
	Backend       string `yaml:"backend"` // "postgres" or "dynamodb"
	DynamoDBTable string `yaml:"dynamodb_table"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
}

// RedisConfig configures the run lock backend. An empty URL falls back to
// PostgreSQL advisory locks.
type RedisConfig struct {
	URL            string `yaml:"url"`
	LockTTLMinutes int    `yaml:"lock_ttl_minutes"`
}

// LockTTL returns the run lock expiry.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// PredictionConfig configures the remote churn model.
type PredictionConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxInFlight    int    `yaml:"max_in_flight"`
}

// Timeout returns the per-call timeout as a duration
func (c PredictionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds Amazon SES credentials for digest email.
type SESConfig struct {
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Region      string `yaml:"region"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
}

// Configured reports whether a sender address is set.
func (c SESConfig) Configured() bool {
	return c.FromAddress != ""
}

// DigestConfig controls the post-analysis email digest.
type DigestConfig struct {
	Enabled        bool   `yaml:"enabled"`
	TopN           int    `yaml:"top_n"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DashboardURL   string `yaml:"dashboard_url"`
}

// Timeout returns the digest send budget.
func (c DigestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	GoogleClientID string `yaml:"google_client_id"`
	AllowedDomain  string `yaml:"allowed_domain"`
	DevOwnerID     string `yaml:"dev_owner_id"`
	DevOwnerEmail  string `yaml:"dev_owner_email"`
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./uploads"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "postgres"
	}
	if cfg.Database.DynamoDBTable == "" {
		cfg.Database.DynamoDBTable = "churn_analyses"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Redis.LockTTLMinutes == 0 {
		cfg.Redis.LockTTLMinutes = 15
	}
	if cfg.Prediction.BaseURL == "" {
		cfg.Prediction.BaseURL = "http://localhost:8000"
	}
	if cfg.Prediction.TimeoutSeconds == 0 {
		cfg.Prediction.TimeoutSeconds = 15
	}
	if cfg.Prediction.MaxInFlight == 0 {
		cfg.Prediction.MaxInFlight = 16
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.SES.FromName == "" {
		cfg.SES.FromName = "Churn Insights"
	}
	if cfg.Digest.TopN == 0 {
		cfg.Digest.TopN = 5
	}
	if cfg.Digest.TimeoutSeconds == 0 {
		cfg.Digest.TimeoutSeconds = 10
	}
	if cfg.Auth.DevOwnerID == "" {
		cfg.Auth.DevOwnerID = "local-dev"
	}
}

// Validate rejects unknown backends and out-of-range limits.
func (cfg *Config) Validate() error {
	switch cfg.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("storage.type %q: want local or s3", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "s3" && cfg.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required when storage.type is s3")
	}
	switch cfg.Database.Backend {
	case "postgres", "dynamodb":
	default:
		return fmt.Errorf("database.backend %q: want postgres or dynamodb", cfg.Database.Backend)
	}
	if cfg.Prediction.MaxInFlight < 1 {
		return fmt.Errorf("prediction.max_in_flight must be positive, got %d", cfg.Prediction.MaxInFlight)
	}
	if cfg.Prediction.TimeoutSeconds < 1 {
		return fmt.Errorf("prediction.timeout_seconds must be positive, got %d", cfg.Prediction.TimeoutSeconds)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DATABASE_BACKEND"); v != "" {
		cfg.Database.Backend = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PREDICTION_API_URL"); v != "" {
		cfg.Prediction.BaseURL = v
	}
	if v := os.Getenv("PREDICTION_MAX_IN_FLIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PREDICTION_MAX_IN_FLIGHT: %w", err)
		}
		cfg.Prediction.MaxInFlight = n
	}
	if v := os.Getenv("UPLOADS_BUCKET"); v != "" {
		cfg.Storage.Type = "s3"
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("AWS_SES_FROM_ADDRESS"); v != "" {
		cfg.SES.FromAddress = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("AUTH_ALLOWED_DOMAIN"); v != "" {
		cfg.Auth.AllowedDomain = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
