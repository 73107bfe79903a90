package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Vision     VisionConfig
	Validation ValidationConfig
	Render     RenderConfig
	Audit      AuditConfig
}

// VisionConfig holds vision-provider configuration
type VisionConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// ValidationConfig holds round-loop configuration
type ValidationConfig struct {
	MaxRounds      int
	TargetAccuracy float32
}

// RenderConfig holds page rasterization configuration
type RenderConfig struct {
	DPI int // 600, 400 or 300; higher trades latency for clarity
}

// AuditConfig holds audit-store configuration
type AuditConfig struct {
	DBPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Vision: VisionConfig{
			Model:     getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:   getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			MaxTokens: getEnvAsInt("VISION_MAX_TOKENS", 16000),
			Timeout:   getEnvAsDuration("VISION_TIMEOUT", 45*time.Second),
		},
		Validation: ValidationConfig{
			MaxRounds:      getEnvAsInt("MAX_ROUNDS", 10),
			TargetAccuracy: getEnvAsFloat32("TARGET_ACCURACY", 1.0),
		},
		Render: RenderConfig{
			DPI: getEnvAsInt("RENDER_DPI", 600),
		},
		Audit: AuditConfig{
			DBPath: getEnv("AUDIT_DB_PATH", "./docvalidate.db"),
		},
	}
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

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Vision.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required", ErrInvalidInput)
	}
	if c.Validation.MaxRounds < 1 || c.Validation.MaxRounds > 15 {
		return NewAppError("CONFIG_ERROR", "MAX_ROUNDS must be between 1 and 15", ErrInvalidInput)
	}
	if c.Validation.TargetAccuracy < 0.80 || c.Validation.TargetAccuracy > 1.0 {
		return NewAppError("CONFIG_ERROR", "TARGET_ACCURACY must be between 0.80 and 1.00", ErrInvalidInput)
	}
	switch c.Render.DPI {
	case 300, 400, 600:
	default:
		return NewAppError("CONFIG_ERROR", "RENDER_DPI must be one of 300, 400, 600", ErrInvalidInput)
	}
	return nil
}
