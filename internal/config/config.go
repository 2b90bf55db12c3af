package config

import (
	"os"
	"strconv"
	"time"
)

// Staging delay bounds. Requests outside this range are clamped, never
// rejected.
const (
	MinStageDelay = 1 * time.Hour
	MaxStageDelay = 30 * 24 * time.Hour
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	MongoURI string // empty → in-memory store (reduced durability)
	RedisURL string // empty → delivery fan-out is store-only

	JWTSecret string

	// Staged publication
	DefaultStageDelay time.Duration // applied when a create omits the delay
	SessionGap        time.Duration // inactivity gap that closes a session

	// Recovery snapshot
	RecoveryFile    string
	SnapshotTimeout time.Duration // bound on the shutdown-time write

	// Fixed UTC hour at which the day-digest check fires
	DigestHourUTC int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),

		MongoURI: getEnv("MONGODB_URI", ""),
		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DefaultStageDelay: getMillisEnv("DEFAULT_STAGE_DELAY_MS", time.Hour),
		SessionGap:        time.Duration(getIntEnv("SESSION_GAP_MINUTES", 30)) * time.Minute,

		RecoveryFile:    getEnv("RECOVERY_FILE", "data/pending_recovery.json"),
		SnapshotTimeout: time.Duration(getIntEnv("SNAPSHOT_TIMEOUT_SECONDS", 5)) * time.Second,

		DigestHourUTC: getIntEnv("DIGEST_HOUR_UTC", 8),
	}
}

// ClampStageDelay forces a requested staging delay into the allowed range.
// Zero or negative means "unspecified" and yields the configured default.
func (c *Config) ClampStageDelay(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = c.DefaultStageDelay
	}
	if requested < MinStageDelay {
		return MinStageDelay
	}
	if requested > MaxStageDelay {
		return MaxStageDelay
	}
	return requested
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return defaultValue
}
