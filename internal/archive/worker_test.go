package archive

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "gocloud.dev/blob/memblob"

	"github.com/weftlabs/weft/internal/assert/helpers"
	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/pkg/api"
)

func TestParseMemoryInfo(t *testing.T) {
	info := "# Memory\r\n" +
		"used_memory:1048576\r\n" +
		"used_memory_human:1.00M\r\n" +
		"maxmemory:2097152\r\n" +
		"maxmemory_policy:noeviction\r\n"

	used, max := parseMemoryInfo(info)
	assert.Equal(t, int64(1048576), used)
	assert.Equal(t, int64(2097152), max)
}

func TestParseMemoryInfoNoMax(t *testing.T) {
	used, max := parseMemoryInfo("used_memory:512\n")
	assert.Equal(t, int64(512), used)
	assert.Zero(t, max)
}

func TestAdjustMaxAge(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Archive.MaxAge = 24 * time.Hour
	w := &Worker{config: cfg}

	// No pressure keeps the configured window
	assert.Equal(t, 24*time.Hour, w.adjustMaxAge(0))

	// Pressure shrinks the window quadratically
	at90 := w.adjustMaxAge(0.9)
	assert.Less(t, at90, 24*time.Hour)

	at95 := w.adjustMaxAge(0.95)
	assert.Less(t, at95, at90)

	// The window never drops below a minute
	assert.Equal(t, time.Minute, w.adjustMaxAge(0.999))
}

func TestCheckAndExportOnlyCompleteSessions(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		m := env.Orchestrator.Manager()

		require.NoError(t, m.Replace(ctx, &api.SessionState{
			ID:     "sess-done",
			Prompt: "notify slack on deploy",
			Phase:  api.PhaseComplete,
		}))
		require.NoError(t, m.Replace(ctx, &api.SessionState{
			ID:     "sess-live",
			Prompt: "still building",
			Phase:  api.PhaseBuilding,
		}))

		cfg := env.Config
		cfg.Archive.BucketURL = "mem://"
		// Any idle time at all qualifies for export
		cfg.Archive.MaxAge = -time.Second

		exporter, err := NewExporter(ctx, &cfg.Archive)
		require.NoError(t, err)
		defer func() { _ = exporter.Close() }()

		w := &Worker{
			manager:  m,
			exporter: exporter,
			redisClient: redis.NewClient(&redis.Options{
				Addr: env.Redis.Addr(),
			}),
			config: cfg,
			ctx:    ctx,
		}
		defer func() { _ = w.redisClient.Close() }()

		w.checkAndExport()

		ok, err := exporter.Has(ctx, "sess-done")
		require.NoError(t, err)
		assert.True(t, ok)

		// The in-flight session is never touched
		ok, err = exporter.Has(ctx, "sess-live")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
