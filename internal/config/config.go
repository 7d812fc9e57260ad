// Package config provides environment-based configuration for interviewd.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the interview protocol. The env overrides exist for
// operational tuning only.
const (
	DefaultPort         = "8080"
	DefaultLogLevel     = "info"
	DefaultMaxQuestions = 7
	DefaultIdleTimeout  = 300 * time.Second
)

// Config aggregates all interviewd settings.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// MaxQuestions is the number of agent responses after which an
	// interview completes.
	MaxQuestions int

	// IdleTimeout is how long a session may go without activity before
	// it times out.
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	addr, err := loadAddr()
	if err != nil {
		return nil, err
	}

	maxQuestions, err := intEnv("INTERVIEW_MAX_QUESTIONS", DefaultMaxQuestions)
	if err != nil {
		return nil, err
	}
	if maxQuestions < 1 {
		return nil, fmt.Errorf("INTERVIEW_MAX_QUESTIONS must be positive, got %d", maxQuestions)
	}

	idleSeconds, err := intEnv("INTERVIEW_IDLE_TIMEOUT", int(DefaultIdleTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	if idleSeconds < 1 {
		return nil, fmt.Errorf("INTERVIEW_IDLE_TIMEOUT must be positive, got %d", idleSeconds)
	}

	return &Config{
		Addr:         addr,
		LogLevel:     getEnvOrDefault("LOG_LEVEL", DefaultLogLevel),
		MaxQuestions: maxQuestions,
		IdleTimeout:  time.Duration(idleSeconds) * time.Second,
	}, nil
}

// loadAddr resolves the listen address from PORT.
// Accepts a bare port ("8080") or a full address (":8080", "127.0.0.1:8080").
func loadAddr() (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = DefaultPort
	}
	if strings.ContainsAny(port, " \t") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
