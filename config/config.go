package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	BindAddress string

	TranscriptAPIURL  string
	TranscriptTimeout time.Duration

	OracleAPIURL  string
	OracleAPIKey  string
	OracleModel   string
	OracleTimeout time.Duration

	LogLevel string
	LogFile  string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", "localhost"),

		TranscriptAPIURL:  getEnv("TRANSCRIPT_API_URL", "http://localhost:9090"),
		TranscriptTimeout: getEnvDuration("TRANSCRIPT_TIMEOUT_SECONDS", 15),

		OracleAPIURL:  getEnv("ORACLE_API_URL", "https://api.openai.com/v1/chat/completions"),
		OracleAPIKey:  getEnv("ORACLE_API_KEY", ""),
		OracleModel:   getEnv("ORACLE_MODEL", "gpt-4o"),
		OracleTimeout: getEnvDuration("ORACLE_TIMEOUT_SECONDS", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}
