package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Session  SessionConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// StorageConfig holds archive-store (S3) configuration
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	UploadURLTTL    time.Duration
	DownloadURLTTL  time.Duration
	UploadTimeout   time.Duration
}

// LLMConfig holds extraction-provider configuration
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int
}

// SessionConfig holds upload-session store configuration
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	RedisAddr     string // empty means in-process store
	RedisPassword string
	RedisDB       int
}

// PipelineConfig holds tuning knobs for the upload pipeline
type PipelineConfig struct {
	MaxPDFPages      int
	TargetImageBytes int
	MaxImageWidth    int
	MaxImageHeight   int
	BatchConcurrency int
}

// LoadConfig reads configuration from the environment, applying defaults.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "invoices"),
			UploadURLTTL:    getEnvAsDuration("S3_UPLOAD_URL_TTL", 15*time.Minute),
			DownloadURLTTL:  getEnvAsDuration("S3_DOWNLOAD_URL_TTL", 15*time.Minute),
			UploadTimeout:   getEnvAsDuration("S3_UPLOAD_TIMEOUT", 5*time.Minute),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			MaxAttempts: getEnvAsInt("OPENAI_MAX_ATTEMPTS", 3),
		},
		Session: SessionConfig{
			TTL:           getEnvAsDuration("UPLOAD_SESSION_TTL", 30*time.Minute),
			SweepInterval: getEnvAsDuration("UPLOAD_SESSION_SWEEP_INTERVAL", 5*time.Minute),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Pipeline: PipelineConfig{
			MaxPDFPages:      getEnvAsInt("PIPELINE_MAX_PDF_PAGES", 3),
			TargetImageBytes: getEnvAsInt("PIPELINE_TARGET_IMAGE_BYTES", 1*1024*1024),
			MaxImageWidth:    getEnvAsInt("PIPELINE_MAX_IMAGE_WIDTH", 1600),
			MaxImageHeight:   getEnvAsInt("PIPELINE_MAX_IMAGE_HEIGHT", 2200),
			BatchConcurrency: getEnvAsInt("PIPELINE_BATCH_CONCURRENCY", 3),
		},
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", nil)
	}
	if c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "S3_BUCKET is required", nil)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", nil)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", nil)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
