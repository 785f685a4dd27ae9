package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kode4food/timebox"
)

type (
	// Config holds configuration settings for the build engine
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Session persistence
		SessionStore timebox.StoreConfig

		// External collaborators
		Registry RegistryConfig
		Model    ModelConfig

		// Pipeline behavior
		Build BuildConfig

		// Archiving of completed sessions
		Archive ArchiveConfig

		SessionCacheSize int
		ShutdownTimeout  time.Duration
	}

	// RegistryConfig locates the external capability registry (MCP)
	RegistryConfig struct {
		URL     string
		APIKey  string
		Timeout time.Duration
	}

	// ModelConfig locates the language-model completion service
	ModelConfig struct {
		Endpoint  string
		Model     string
		APIKey    string
		MaxTokens int
		Timeout   time.Duration
	}

	// BuildConfig tunes the pipeline's batching and repair behavior
	BuildConfig struct {
		// MaxFixAttempts bounds the validation auto-repair loop
		MaxFixAttempts int

		// ClarifyThreshold is the minimum intent confidence below which
		// discovery suspends on a clarification question
		ClarifyThreshold float64

		// FlushBatchSize is the pending-operation count that forces a flush
		FlushBatchSize int

		// FlushInterval is the wall-clock auto-flush cadence
		FlushInterval time.Duration
	}

	// ArchiveConfig controls blob export of completed sessions
	ArchiveConfig struct {
		BucketURL     string
		Prefix        string
		CheckInterval time.Duration
		MaxAge        time.Duration

		// MemoryPercent is the Redis memory usage percentage above which
		// the archive worker stops waiting for MaxAge
		MemoryPercent float64
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	DefaultRedisDB = 0

	DefaultRedisEndpoint       = "localhost:6379"
	DefaultRedisPrefix         = "weft"
	DefaultSnapshotWorkers     = 4
	DefaultSnapshotQueueSize   = 1000
	DefaultSnapshotSaveTimeout = 30 * time.Second
	DefaultSessionCacheSize    = 4096

	DefaultRegistryTimeout = 30 * time.Second
	DefaultModelTimeout    = 120 * time.Second
	DefaultModelMaxTokens  = 4096

	DefaultMaxFixAttempts   = 3
	DefaultClarifyThreshold = 0.7
	DefaultFlushBatchSize   = 10
	DefaultFlushInterval    = 5 * time.Second

	DefaultArchivePrefix        = "sessions/"
	DefaultArchiveCheckInterval = 5 * time.Minute
	DefaultArchiveMaxAge        = 24 * time.Hour
	DefaultArchiveMemoryPct     = 80.0

	DefaultShutdownTimeout = 10 * time.Second

	MaxSessionCacheSize = 1_000_000
	MaxFixAttemptsLimit = 10
	MaxFlushBatchSize   = 1000
)

var (
	ErrInvalidAPIPort        = errors.New("invalid API port")
	ErrMissingRegistryURL    = errors.New("registry URL is required")
	ErrMissingModelEndpoint  = errors.New("model endpoint is required")
	ErrInvalidFixAttempts    = errors.New("fix attempts must be positive")
	ErrInvalidFlushBatchSize = errors.New("flush batch size must be positive")
	ErrInvalidFlushInterval  = errors.New("flush interval must be positive")
	ErrInvalidThreshold      = errors.New(
		"clarify threshold must be between 0 and 1",
	)
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// engine settings, the session store, and both external collaborators
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:  DefaultAPIPort,
		APIHost:  DefaultAPIHost,
		LogLevel: "info",
		SessionStore: timebox.StoreConfig{
			Addr:         DefaultRedisEndpoint,
			Password:     "",
			DB:           DefaultRedisDB,
			Prefix:       DefaultRedisPrefix,
			WorkerCount:  DefaultSnapshotWorkers,
			MaxQueueSize: DefaultSnapshotQueueSize,
			SaveTimeout:  DefaultSnapshotSaveTimeout,
		},
		Registry: RegistryConfig{
			Timeout: DefaultRegistryTimeout,
		},
		Model: ModelConfig{
			MaxTokens: DefaultModelMaxTokens,
			Timeout:   DefaultModelTimeout,
		},
		Build: BuildConfig{
			MaxFixAttempts:   DefaultMaxFixAttempts,
			ClarifyThreshold: DefaultClarifyThreshold,
			FlushBatchSize:   DefaultFlushBatchSize,
			FlushInterval:    DefaultFlushInterval,
		},
		Archive: ArchiveConfig{
			Prefix:        DefaultArchivePrefix,
			CheckInterval: DefaultArchiveCheckInterval,
			MaxAge:        DefaultArchiveMaxAge,
			MemoryPercent: DefaultArchiveMemoryPct,
		},
		SessionCacheSize: DefaultSessionCacheSize,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	LoadStoreConfigFromEnv(&c.SessionStore, "SESSION")

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	if url := os.Getenv("REGISTRY_URL"); url != "" {
		c.Registry.URL = url
	}
	if key := os.Getenv("REGISTRY_API_KEY"); key != "" {
		c.Registry.APIKey = key
	}
	if endpoint := os.Getenv("MODEL_ENDPOINT"); endpoint != "" {
		c.Model.Endpoint = endpoint
	}
	if model := os.Getenv("MODEL_NAME"); model != "" {
		c.Model.Model = model
	}
	if key := os.Getenv("MODEL_API_KEY"); key != "" {
		c.Model.APIKey = key
	}

	if bucket := os.Getenv("ARCHIVE_BUCKET_URL"); bucket != "" {
		c.Archive.BucketURL = bucket
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.Archive.Prefix = prefix
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"SESSION_CACHE_SIZE", &c.SessionCacheSize, 0, MaxSessionCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_FIX_ATTEMPTS", &c.Build.MaxFixAttempts, 0, MaxFixAttemptsLimit,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"FLUSH_BATCH_SIZE", &c.Build.FlushBatchSize, 0, MaxFlushBatchSize,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.Registry.URL == "" {
		return ErrMissingRegistryURL
	}
	if c.Model.Endpoint == "" {
		return ErrMissingModelEndpoint
	}
	if c.Build.MaxFixAttempts <= 0 {
		return ErrInvalidFixAttempts
	}
	if c.Build.FlushBatchSize <= 0 {
		return ErrInvalidFlushBatchSize
	}
	if c.Build.FlushInterval <= 0 {
		return ErrInvalidFlushInterval
	}
	if c.Build.ClarifyThreshold < 0 || c.Build.ClarifyThreshold > 1 {
		return fmt.Errorf("%w: %f",
			ErrInvalidThreshold, c.Build.ClarifyThreshold)
	}
	return nil
}

// LoadStoreConfigFromEnv loads Redis store configuration from environment
// variables with the given prefix (e.g., "SESSION")
func LoadStoreConfigFromEnv(s *timebox.StoreConfig, prefix string) {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err == nil {
			s.DB = db
		}
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		s.Prefix = envPrefix
	}
	if envCount := os.Getenv(prefix + "_SNAPSHOT_WORKERS"); envCount != "" {
		if wc, err := strconv.Atoi(envCount); err == nil && wc >= 0 {
			s.WorkerCount = wc
		}
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
