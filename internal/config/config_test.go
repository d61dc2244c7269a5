package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEEDBACK_MODE", "")
	t.Setenv("ASSIGN_CATEGORY_WINDOW", "")
	t.Setenv("LOG_REDACTION_ENABLED", "")
	cfg := Load()

	assert.True(t, cfg.LogRedaction)

	assert.Equal(t, FeedbackModeMock, cfg.FeedbackMode)
	assert.Equal(t, 3, cfg.CategoryWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.MockFeedbackDelay)
	assert.Equal(t, BlobBackendLocal, cfg.BlobBackend)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FEEDBACK_MODE", "EDGE_FUNCTION")
	t.Setenv("EDGE_FUNCTION_URL", "https://example.test/functions/v1/ai-feedback")
	t.Setenv("ASSIGN_CATEGORY_WINDOW", "5")
	t.Setenv("SEED_DEFAULT_CONTENT", "true")
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("LOG_REDACTION_ENABLED", "false")
	t.Setenv("LOG_HASH_SALT", "pepper")
	cfg := Load()

	assert.False(t, cfg.LogRedaction)
	assert.Equal(t, "pepper", cfg.LogHashSalt)

	assert.Equal(t, FeedbackModeEdgeFunction, cfg.FeedbackMode)
	assert.Equal(t, 5, cfg.CategoryWindow)
	assert.True(t, cfg.SeedDefaultContent)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv("FEEDBACK_MODE", "")
		return Load()
	}

	cfg := base()
	cfg.FeedbackMode = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.FeedbackMode = FeedbackModeVertex
	cfg.GCPProject = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.BlobBackend = BlobBackendGCS
	cfg.GCSBucket = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}
