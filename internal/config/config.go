package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	StoreBackend   string
	DBPath         string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	ScenariosPath string

	LLMBaseURL            string
	LLMAPIKey             string
	JudgeModel            string
	GenerationModel       string
	JudgeTemperature      float64
	GenerationTemperature float64
	LLMTimeout            time.Duration

	SessionMaxAge      time.Duration
	SweepInterval      time.Duration
	LeaderboardSize    int
	AllowedEmailDomain string

	AMQPURL          string
	EventsQueue      string
	EventWorkerCount int
	EventQueueSize   int

	CORSAllowedOrigins []string
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:      envOr("ADDR", ":8080"),
		LogLevel:  envOr("LOG_LEVEL", "INFO"),
		LogFormat: envOr("LOG_FORMAT", "text"),

		StoreBackend:   strings.ToLower(envOr("STORE_BACKEND", BackendSQLite)),
		DBPath:         envOr("DB_PATH", "file:promptfix.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envIntOr("REDIS_DB", 0),
		RedisKeyPrefix: envOr("REDIS_KEY_PREFIX", "promptfix:"),

		ScenariosPath: os.Getenv("SCENARIOS_PATH"),

		LLMBaseURL:            envOr("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:             os.Getenv("LLM_API_KEY"),
		JudgeModel:            envOr("JUDGE_MODEL", "gpt-4o-mini"),
		GenerationModel:       envOr("GENERATION_MODEL", "gpt-4o-mini"),
		JudgeTemperature:      envFloatOr("JUDGE_TEMPERATURE", 0.1),
		GenerationTemperature: envFloatOr("GENERATION_TEMPERATURE", 0.7),
		LLMTimeout:            envDurationOr("LLM_TIMEOUT", 30*time.Second),

		SessionMaxAge:      envDurationOr("SESSION_MAX_AGE", 2*time.Hour),
		SweepInterval:      envDurationOr("SWEEP_INTERVAL", 10*time.Minute),
		LeaderboardSize:    envIntOr("LEADERBOARD_SIZE", 10),
		AllowedEmailDomain: os.Getenv("ALLOWED_EMAIL_DOMAIN"),

		AMQPURL:          os.Getenv("AMQP_URL"),
		EventsQueue:      envOr("EVENTS_QUEUE", "promptfix.game_events"),
		EventWorkerCount: envIntOr("EVENT_WORKER_COUNT", 2),
		EventQueueSize:   envIntOr("EVENT_QUEUE_SIZE", 256),

		CORSAllowedOrigins: envListOr("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// Validate reports every invalid setting, joined into one error.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Addr == "" {
		add("ADDR cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		add("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR (got %q)", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		add("LOG_FORMAT must be text or json (got %q)", c.LogFormat)
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			add("DB_PATH cannot be empty when STORE_BACKEND=sqlite")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			add("DATABASE_URL cannot be empty when STORE_BACKEND=postgres")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			add("REDIS_ADDR cannot be empty when STORE_BACKEND=redis")
		}
		if c.RedisDB < 0 {
			add("REDIS_DB must be >= 0 (got %d)", c.RedisDB)
		}
	case BackendMemory:
	default:
		add("STORE_BACKEND must be one of sqlite, postgres, redis, memory (got %q)", c.StoreBackend)
	}

	if c.LLMBaseURL == "" {
		add("LLM_BASE_URL cannot be empty")
	}
	if c.JudgeModel == "" {
		add("JUDGE_MODEL cannot be empty")
	}
	if c.GenerationModel == "" {
		add("GENERATION_MODEL cannot be empty")
	}
	if c.JudgeTemperature < 0 || c.JudgeTemperature > 2 {
		add("JUDGE_TEMPERATURE must be between 0 and 2 (got %g)", c.JudgeTemperature)
	}
	if c.GenerationTemperature < 0 || c.GenerationTemperature > 2 {
		add("GENERATION_TEMPERATURE must be between 0 and 2 (got %g)", c.GenerationTemperature)
	}
	if c.LLMTimeout <= 0 {
		add("LLM_TIMEOUT must be positive (got %v)", c.LLMTimeout)
	}

	if c.SessionMaxAge <= 0 {
		add("SESSION_MAX_AGE must be positive (got %v)", c.SessionMaxAge)
	}
	if c.SweepInterval <= 0 {
		add("SWEEP_INTERVAL must be positive (got %v)", c.SweepInterval)
	}
	if c.LeaderboardSize < 1 || c.LeaderboardSize > 100 {
		add("LEADERBOARD_SIZE must be between 1 and 100 (got %d)", c.LeaderboardSize)
	}

	if c.EventWorkerCount < 1 {
		add("EVENT_WORKER_COUNT must be at least 1 (got %d)", c.EventWorkerCount)
	}
	if c.EventQueueSize < 1 {
		add("EVENT_QUEUE_SIZE must be at least 1 (got %d)", c.EventQueueSize)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid value for %s=%q, using default %g", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %v", key, v, def)
	}
	return def
}

func envListOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
