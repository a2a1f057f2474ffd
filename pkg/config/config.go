package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port        string
		Env         string
		Timeout     time.Duration
		MetricsAddr string
	}

	// Redis configuration (persisted auth state)
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Archive database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	// Remote aggregation service
	Remote RemoteConfig

	// Capture pipeline settings
	Capture struct {
		DedupWindow    time.Duration
		SnapshotPeriod time.Duration
		MaxDieGroups   int
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Feature flags
	Features struct {
		EnableArchive bool
		EnableTracing bool
	}
}

// RemoteConfig describes the remote aggregation service endpoints and
// the relay's retry behavior. Named so the relay manager can take it
// alone instead of the whole Config.
type RemoteConfig struct {
	StreamURL      string
	OutboundURL    string
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.MetricsAddr = getEnvString("METRICS_ADDR", ":2112")

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// Archive database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "fumblebot")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")

		// Remote service config
		instance.Remote.StreamURL = getEnvString("FUMBLEBOT_STREAM_URL", "https://api.crit-fumble.com/events/stream")
		instance.Remote.OutboundURL = getEnvString("FUMBLEBOT_OUTBOUND_URL", "https://api.crit-fumble.com/events")
		instance.Remote.ReconnectDelay = getEnvDuration("RECONNECT_DELAY", 5*time.Second)
		instance.Remote.RequestTimeout = getEnvDuration("REMOTE_REQUEST_TIMEOUT", 10*time.Second)

		// Capture config
		instance.Capture.DedupWindow = getEnvDuration("DEDUP_WINDOW", 2*time.Second)
		instance.Capture.SnapshotPeriod = getEnvDuration("SNAPSHOT_PERIOD", 30*time.Second)
		instance.Capture.MaxDieGroups = getEnvInt("MAX_DIE_GROUPS", 20)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Feature flags
		instance.Features.EnableArchive = getEnvBool("ENABLE_ARCHIVE", false)
		instance.Features.EnableTracing = getEnvBool("ENABLE_TRACING", false)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
