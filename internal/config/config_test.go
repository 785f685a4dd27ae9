package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	assert.Equal(t, config.DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, config.DefaultRedisEndpoint, cfg.SessionStore.Addr)
	assert.Equal(t, config.DefaultRedisPrefix, cfg.SessionStore.Prefix)
	assert.Equal(t, config.DefaultMaxFixAttempts, cfg.Build.MaxFixAttempts)
	assert.Equal(t,
		config.DefaultClarifyThreshold, cfg.Build.ClarifyThreshold)
	assert.Equal(t, config.DefaultFlushBatchSize, cfg.Build.FlushBatchSize)
	assert.Equal(t, config.DefaultFlushInterval, cfg.Build.FlushInterval)
	assert.Equal(t, config.DefaultArchivePrefix, cfg.Archive.Prefix)
	assert.Equal(t,
		config.DefaultArchiveMemoryPct, cfg.Archive.MemoryPercent)
	assert.Equal(t, config.DefaultSessionCacheSize, cfg.SessionCacheSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REGISTRY_URL", "http://registry:3030/mcp")
	t.Setenv("REGISTRY_API_KEY", "reg-key")
	t.Setenv("MODEL_ENDPOINT", "http://model:8000/v1")
	t.Setenv("MODEL_NAME", "builder-large")
	t.Setenv("SESSION_REDIS_ADDR", "redis:6380")
	t.Setenv("SESSION_REDIS_PREFIX", "custom")
	t.Setenv("MAX_FIX_ATTEMPTS", "5")
	t.Setenv("ARCHIVE_BUCKET_URL", "s3://weft-archive")

	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "127.0.0.1", cfg.APIHost)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://registry:3030/mcp", cfg.Registry.URL)
	assert.Equal(t, "reg-key", cfg.Registry.APIKey)
	assert.Equal(t, "http://model:8000/v1", cfg.Model.Endpoint)
	assert.Equal(t, "builder-large", cfg.Model.Model)
	assert.Equal(t, "redis:6380", cfg.SessionStore.Addr)
	assert.Equal(t, "custom", cfg.SessionStore.Prefix)
	assert.Equal(t, 5, cfg.Build.MaxFixAttempts)
	assert.Equal(t, "s3://weft-archive", cfg.Archive.BucketURL)
}

func TestLoadFromEnvBadPort(t *testing.T) {
	t.Setenv("API_PORT", "not-a-port")
	cfg := config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromEnvPortOutOfRange(t *testing.T) {
	t.Setenv("API_PORT", "70000")
	cfg := config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func validConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Registry.URL = "http://registry:3030/mcp"
	cfg.Model.Endpoint = "http://model:8000/v1"
	return cfg
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingRegistry(t *testing.T) {
	cfg := validConfig()
	cfg.Registry.URL = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrMissingRegistryURL)
}

func TestValidateMissingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Endpoint = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrMissingModelEndpoint)
}

func TestValidateBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.APIPort = -1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidAPIPort)
}

func TestValidateBadThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Build.ClarifyThreshold = 1.5
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidThreshold)
}

func TestValidateBadFixAttempts(t *testing.T) {
	cfg := validConfig()
	cfg.Build.MaxFixAttempts = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidFixAttempts)
}
