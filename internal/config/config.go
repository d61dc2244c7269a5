// Package config provides configuration for the mission service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Feedback generator modes.
const (
	FeedbackModeMock         = "mock"
	FeedbackModeDirect       = "direct"
	FeedbackModeEdgeFunction = "edge_function"
	FeedbackModeVertex       = "vertex"
)

// Blob backends.
const (
	BlobBackendLocal = "local"
	BlobBackendGCS   = "gcs"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Logging
	LogMode      string
	LogRedaction bool
	LogHashSalt  string

	// Calendar
	Timezone string

	// Assignment
	CategoryWindow int

	// Policy data
	SafetyRulesPath string
	FlowPolicyPath  string

	// Feedback generator
	FeedbackMode      string
	MockFeedbackDelay time.Duration
	LLMBaseURL        string
	LLMAPIKey         string
	LLMModel          string
	LLMTimeout        time.Duration
	EdgeFunctionURL   string
	EdgeFunctionKey   string
	GCPProject        string
	GCPLocation       string
	VertexModel       string

	// Photo storage
	BlobBackend       string
	BlobDir           string
	BlobPublicBaseURL string
	GCSBucket         string
	GCSCredentials    string

	// Seed the embedded demo catalog on start
	SeedDefaultContent bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:missions.db?cache=shared&mode=rwc"),
		LogMode:            getEnv("LOG_MODE", "development"),
		LogRedaction:       getEnvBool("LOG_REDACTION_ENABLED", true),
		LogHashSalt:        getEnv("LOG_HASH_SALT", ""),
		Timezone:           getEnv("APP_TIMEZONE", "Asia/Seoul"),
		CategoryWindow:     getEnvInt("ASSIGN_CATEGORY_WINDOW", 3),
		SafetyRulesPath:    getEnv("SAFETY_RULES_PATH", ""),
		FlowPolicyPath:     getEnv("FLOW_POLICY_PATH", ""),
		FeedbackMode:       strings.ToLower(getEnv("FEEDBACK_MODE", FeedbackModeMock)),
		MockFeedbackDelay:  time.Duration(getEnvInt("MOCK_FEEDBACK_DELAY_MS", 500)) * time.Millisecond,
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:         time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		EdgeFunctionURL:    getEnv("EDGE_FUNCTION_URL", ""),
		EdgeFunctionKey:    getEnv("EDGE_FUNCTION_KEY", ""),
		GCPProject:         getEnv("GCP_PROJECT", ""),
		GCPLocation:        getEnv("GCP_LOCATION", "us-central1"),
		VertexModel:        getEnv("VERTEX_MODEL", "gemini-2.0-flash"),
		BlobBackend:        strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal)),
		BlobDir:            getEnv("BLOB_DIR", "./data/recording-photos"),
		BlobPublicBaseURL:  getEnv("BLOB_PUBLIC_BASE_URL", ""),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentials:     getEnv("GCS_CREDENTIALS_FILE", ""),
		SeedDefaultContent: getEnvBool("SEED_DEFAULT_CONTENT", false),
	}
}

// Validate checks combinations that Load cannot default.
func (c *Config) Validate() error {
	switch c.FeedbackMode {
	case FeedbackModeMock, FeedbackModeDirect:
	case FeedbackModeEdgeFunction:
		if c.EdgeFunctionURL == "" {
			return fmt.Errorf("FEEDBACK_MODE=%s requires EDGE_FUNCTION_URL", c.FeedbackMode)
		}
	case FeedbackModeVertex:
		if c.GCPProject == "" {
			return fmt.Errorf("FEEDBACK_MODE=%s requires GCP_PROJECT", c.FeedbackMode)
		}
	default:
		return fmt.Errorf("unknown FEEDBACK_MODE %q", c.FeedbackMode)
	}
	switch c.BlobBackend {
	case BlobBackendLocal:
	case BlobBackendGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("BLOB_BACKEND=gcs requires GCS_BUCKET")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	if c.CategoryWindow < 0 {
		return fmt.Errorf("ASSIGN_CATEGORY_WINDOW must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
