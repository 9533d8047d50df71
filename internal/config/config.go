package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds widget configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Chat backend
	BackendURL     string
	BackendTimeout time.Duration

	// Widget behaviour
	IdleTimeout    time.Duration
	GreetingDelay  time.Duration
	FallbackPhone  string
	BookingTrigger string
	StarterTopics  []string

	// Session persistence
	SessionStore string
	SessionTTL   time.Duration
	SessionFile  string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins []string
	MetricsEnabled     bool
}

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
	SessionStoreFile   = "file"
)

// DefaultStarterTopics are offered under the greeting turn.
var DefaultStarterTopics = []string{
	"Записаться на консультацию",
	"Узнать про имплантацию",
	"Посмотреть цены",
	"Боюсь боли",
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:     strings.TrimRight(getEnv("CHAT_BACKEND_URL", "http://localhost:5000"), "/"),
		BackendTimeout: getEnvAsDuration("CHAT_BACKEND_TIMEOUT", 0),

		IdleTimeout:    getEnvAsDuration("WIDGET_IDLE_TIMEOUT", 30*time.Second),
		GreetingDelay:  getEnvAsDuration("WIDGET_GREETING_DELAY", 500*time.Millisecond),
		FallbackPhone:  getEnv("WIDGET_FALLBACK_PHONE", "+7(4152) 44-24-24"),
		BookingTrigger: getEnv("WIDGET_BOOKING_TRIGGER", "Записаться на консультацию"),
		StarterTopics:  getEnvAsList("WIDGET_STARTER_TOPICS", "|", DefaultStarterTopics),

		SessionStore: strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", SessionStoreMemory))),
		SessionTTL:   getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionFile:  getEnv("SESSION_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", ",", nil),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
	}
}

// Validate reports configuration that would leave the widget unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return errors.New("config: CHAT_BACKEND_URL cannot be empty")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("config: WIDGET_IDLE_TIMEOUT must be > 0")
	}
	if c.GreetingDelay < 0 {
		return errors.New("config: WIDGET_GREETING_DELAY must be >= 0")
	}
	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis, SessionStoreFile:
	default:
		return errors.New("config: SESSION_STORE must be one of memory, redis, file")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, sep string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
