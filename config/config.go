// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port   string
	DBPath string

	JWTSecret string
	JWTIssuer string

	LogLevel string

	// Empty RedisURL disables event publishing.
	RedisURL     string
	RedisChannel string
	NotifyBuffer int

	RateLimitRPS   float64
	RateLimitBurst int

	EnableScenarios bool
	CORSOrigins     []string
}

const insecureDevSecret = "dev-only-leave-engine-secret-change-me"

// Load reads configuration. Values in a .env file are applied first and
// real environment variables win over them. Load does not validate; callers
// apply their overrides and then call Validate once.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "leave.db")
	v.SetDefault("JWT_SECRET", insecureDevSecret)
	v.SetDefault("JWT_ISSUER", "leave-engine")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_CHANNEL", "leave-events")
	v.SetDefault("NOTIFY_BUFFER", 256)
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("ENABLE_SCENARIOS", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")
	v.AutomaticEnv()

	cfg := &Config{
		Port:            v.GetString("PORT"),
		DBPath:          v.GetString("DB_PATH"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTIssuer:       v.GetString("JWT_ISSUER"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		RedisURL:        v.GetString("REDIS_URL"),
		RedisChannel:    v.GetString("REDIS_CHANNEL"),
		NotifyBuffer:    v.GetInt("NOTIFY_BUFFER"),
		RateLimitRPS:    v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:  v.GetInt("RATE_LIMIT_BURST"),
		EnableScenarios: v.GetBool("ENABLE_SCENARIOS"),
		CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
	}
	return cfg
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("NOTIFY_BUFFER must be positive, got %d", c.NotifyBuffer)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

// InsecureSecret reports whether the built-in development secret is in use.
func (c *Config) InsecureSecret() bool {
	return c.JWTSecret == insecureDevSecret
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
