// Package config provides environment configuration for the bridge daemon.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Talk server
	TalkURL      string
	TalkUser     string
	TalkPassword string
	TalkTimeout  time.Duration

	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	RelayEnabled bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Watcher
	WatchRooms   []string
	PollTimeout  time.Duration
	PollBackoff  time.Duration
	HistoryDepth int

	// JWT settings
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	BotName         string

	// Room cache
	RoomCacheSize int
	RoomCacheTTL  time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it.
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		// Talk
		TalkURL:      getEnv("TALK_URL", ""),
		TalkUser:     getEnv("TALK_USER", ""),
		TalkPassword: getEnv("TALK_PASSWORD", ""),
		TalkTimeout:  getDurationEnv("TALK_TIMEOUT", 90*time.Second),

		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		RelayEnabled: getBoolEnv("RELAY_ENABLED", false),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Watcher
		WatchRooms:   getListEnv("WATCH_ROOMS"),
		PollTimeout:  getDurationEnv("POLL_TIMEOUT", 30*time.Second),
		PollBackoff:  getDurationEnv("POLL_BACKOFF", 5*time.Second),
		HistoryDepth: getIntEnv("HISTORY_DEPTH", 20),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		BotName:         getEnv("BOT_NAME", ""),

		// Room cache
		RoomCacheSize: getIntEnv("ROOM_CACHE_SIZE", 256),
		RoomCacheTTL:  getDurationEnv("ROOM_CACHE_TTL", 30*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports settings the daemon cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.TalkURL == "" {
		errs = append(errs, errors.New("TALK_URL is required"))
	}
	if c.TalkUser == "" || c.TalkPassword == "" {
		errs = append(errs, errors.New("TALK_USER and TALK_PASSWORD are required"))
	}
	if c.RoomCacheSize <= 0 {
		errs = append(errs, errors.New("ROOM_CACHE_SIZE must be positive"))
	}
	if c.PollTimeout > 60*time.Second {
		errs = append(errs, errors.New("POLL_TIMEOUT must not exceed 60s"))
	}
	if c.TalkTimeout > 0 && c.TalkTimeout <= c.PollTimeout {
		errs = append(errs, errors.New("TALK_TIMEOUT must exceed POLL_TIMEOUT"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty entries.
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
