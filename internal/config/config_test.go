package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/promptfix/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Addr:                  ":8080",
		LogLevel:              "INFO",
		LogFormat:             "text",
		StoreBackend:          config.BackendSQLite,
		DBPath:                "test.db",
		LLMBaseURL:            "http://localhost:11434",
		JudgeModel:            "judge",
		GenerationModel:       "gen",
		JudgeTemperature:      0.1,
		GenerationTemperature: 0.7,
		LLMTimeout:            30 * time.Second,
		SessionMaxAge:         2 * time.Hour,
		SweepInterval:         10 * time.Minute,
		LeaderboardSize:       10,
		EventWorkerCount:      2,
		EventQueueSize:        64,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR cannot be empty")
}

func TestValidate_StoreBackends(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:          "sqlite without path",
			mutate:        func(c *config.Config) { c.DBPath = "" },
			expectedError: "DB_PATH",
		},
		{
			name:          "postgres without url",
			mutate:        func(c *config.Config) { c.StoreBackend = config.BackendPostgres },
			expectedError: "DATABASE_URL",
		},
		{
			name:          "redis without addr",
			mutate:        func(c *config.Config) { c.StoreBackend = config.BackendRedis },
			expectedError: "REDIS_ADDR",
		},
		{
			name:          "unknown backend",
			mutate:        func(c *config.Config) { c.StoreBackend = "dynamodb" },
			expectedError: "STORE_BACKEND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestValidate_MemoryBackendNeedsNothing(t *testing.T) {
	cfg := validConfig()
	cfg.StoreBackend = config.BackendMemory
	cfg.DBPath = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{
			name:  "invalid level",
			level: "INVALID",
		},
		{
			name:  "empty level",
			level: "",
		},
		{
			name:  "lowercase valid level",
			level: "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = tt.level

			err := cfg.Validate()
			if tt.level == "debug" {
				// Lowercase should be accepted (converted to uppercase)
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "LOG_LEVEL")
			}
		})
	}
}

func TestValidate_Temperatures(t *testing.T) {
	cfg := validConfig()
	cfg.JudgeTemperature = -0.1
	cfg.GenerationTemperature = 2.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JUDGE_TEMPERATURE")
	assert.Contains(t, err.Error(), "GENERATION_TEMPERATURE")
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := config.Config{
		Addr:            "",
		LogLevel:        "INVALID",
		LogFormat:       "xml",
		StoreBackend:    config.BackendSQLite,
		LeaderboardSize: 500,
	}

	err := cfg.Validate()
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "ADDR cannot be empty")
	assert.Contains(t, errStr, "LOG_LEVEL")
	assert.Contains(t, errStr, "LOG_FORMAT")
	assert.Contains(t, errStr, "DB_PATH cannot be empty")
	assert.Contains(t, errStr, "LLM_BASE_URL")
	assert.Contains(t, errStr, "JUDGE_MODEL")
	assert.Contains(t, errStr, "LLM_TIMEOUT")
	assert.Contains(t, errStr, "SESSION_MAX_AGE")
	assert.Contains(t, errStr, "SWEEP_INTERVAL")
	assert.Contains(t, errStr, "LEADERBOARD_SIZE")
	assert.Contains(t, errStr, "EVENT_WORKER_COUNT")
	assert.Contains(t, errStr, "EVENT_QUEUE_SIZE")
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("DB_PATH", "custom.db")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("JUDGE_TEMPERATURE", "0.2")
	t.Setenv("LEADERBOARD_SIZE", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := config.Load()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "custom.db", cfg.DBPath)
	assert.Equal(t, config.BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 0.2, cfg.JudgeTemperature)
	assert.Equal(t, 10, cfg.LeaderboardSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
