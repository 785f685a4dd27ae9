// Package helpers provides shared fixtures for builder and server tests:
// an in-memory Redis backed session store, a scripted model client, and a
// scripted registry service.
package helpers

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kode4food/timebox"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/builder"
	"github.com/weftlabs/weft/internal/config"
)

// TestEnv holds all the components needed for builder testing
type TestEnv struct {
	Orchestrator *builder.Orchestrator
	Redis        *miniredis.Miniredis
	Model        *MockModel
	Registry     *MockRegistry
	Config       *config.Config
	EventHub     timebox.EventHub
	Store        *timebox.Store
	Cleanup      func()

	tb *timebox.Timebox
}

// NewTestEnv creates a fully configured test environment with an in-memory
// Redis backend and scripted collaborators
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	tb, err := timebox.NewTimebox(timebox.Config{
		MaxRetries: timebox.DefaultMaxRetries,
		CacheSize:  100,
		Workers:    true,
	})
	require.NoError(t, err)

	storeConfig := config.NewDefaultConfig().SessionStore
	storeConfig.Addr = server.Addr()
	storeConfig.Prefix = "test-session"

	store, err := tb.NewStore(storeConfig)
	require.NoError(t, err)

	cfg := config.NewDefaultConfig()
	cfg.SessionStore = storeConfig
	cfg.Registry.URL = "http://localhost:3000/mcp"
	cfg.Model.Endpoint = "http://localhost:4000/complete"
	cfg.Build.FlushInterval = 50 * time.Millisecond

	model := NewMockModel()
	registry := NewMockRegistry()
	orch := builder.New(store, registry, model, cfg)

	cleanup := func() {
		orch.Close()
		_ = tb.Close()
		server.Close()
	}

	return &TestEnv{
		Orchestrator: orch,
		Redis:        server,
		Model:        model,
		Registry:     registry,
		Config:       cfg,
		EventHub:     tb.GetHub(),
		Store:        store,
		Cleanup:      cleanup,
		tb:           tb,
	}
}

// WithEnv runs a test against a fresh environment and cleans up after it
func WithEnv(t *testing.T, fn func(*TestEnv)) {
	t.Helper()
	env := NewTestEnv(t)
	defer env.Cleanup()
	fn(env)
}

// NewOrchestratorInstance creates a new orchestrator sharing the same store
// and collaborators. Used to simulate process restart
func (e *TestEnv) NewOrchestratorInstance() *builder.Orchestrator {
	return builder.New(e.Store, e.Registry, e.Model, e.Config)
}
