package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	DoubaoPort int // Doubao bridge listen port
	GLMPort    int // GLM bridge listen port
	GeminiPort int // Supplemental Gemini Live bridge listen port

	DoubaoAppID     string
	DoubaoAccessKey string
	DoubaoSecretKey string

	GLMAPIKey string

	GeminiAPIKey string // optional; supplemental bridge is skipped when empty

	RedisURL      string
	RedisPassword string

	MaxSessions     int
	SessionTimeout  time.Duration
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration
	MaxBufferSize   int // maximum pre-ready buffer size in bytes per session
}

// Load loads configuration from environment variables with defaults.
// DOUBAO_APP_ID, DOUBAO_ACCESS_KEY, DOUBAO_SECRET_KEY, and API_KEY are
// required; the process should exit if Load returns an error.
func Load() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DoubaoPort:      3001,
		GLMPort:         3000,
		GeminiPort:      3002,
		RedisURL:        "localhost:6379",
		RedisPassword:   "",
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		MaxBufferSize:   5 * 1024 * 1024, // 5MB default
	}

	cfg.DoubaoAppID = os.Getenv("DOUBAO_APP_ID")
	cfg.DoubaoAccessKey = os.Getenv("DOUBAO_ACCESS_KEY")
	cfg.DoubaoSecretKey = os.Getenv("DOUBAO_SECRET_KEY")
	if cfg.DoubaoAppID == "" || cfg.DoubaoAccessKey == "" || cfg.DoubaoSecretKey == "" {
		return nil, fmt.Errorf("DOUBAO_APP_ID, DOUBAO_ACCESS_KEY and DOUBAO_SECRET_KEY environment variables are required")
	}

	cfg.GLMAPIKey = os.Getenv("API_KEY")
	if cfg.GLMAPIKey == "" {
		return nil, fmt.Errorf("API_KEY environment variable is required")
	}

	// Optional: GEMINI_API_KEY enables the supplemental Gemini Live bridge
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if port := os.Getenv("DOUBAO_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DOUBAO_PORT: %w", err)
		}
		cfg.DoubaoPort = p
	}

	if port := os.Getenv("GLM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid GLM_PORT: %w", err)
		}
		cfg.GLMPort = p
	}

	if port := os.Getenv("GEMINI_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid GEMINI_PORT: %w", err)
		}
		cfg.GeminiPort = p
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.RedisURL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		cfg.MaxSessions = m
	}

	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		cfg.SessionTimeout = time.Duration(t) * time.Minute
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		cfg.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	if bufferSize := os.Getenv("MAX_BUFFER_SIZE"); bufferSize != "" {
		b, err := strconv.Atoi(bufferSize)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BUFFER_SIZE: %w", err)
		}
		cfg.MaxBufferSize = b
	}

	return cfg, nil
}
