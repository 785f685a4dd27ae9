package archive

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weftlabs/weft/internal/builder"
	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/pkg/log"
)

// Worker periodically exports completed sessions. Under normal conditions
// only sessions idle past the max age are exported; when the session Redis
// reports memory pressure the age window shrinks so exports start sooner.
// Sessions that are not yet complete are never touched
type Worker struct {
	manager     *builder.Manager
	exporter    *Exporter
	redisClient *redis.Client
	config      *config.Config
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewWorker creates a worker that monitors the session Redis for memory
// pressure and exports completed sessions accordingly
func NewWorker(
	m *builder.Manager, exporter *Exporter, cfg *config.Config,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.SessionStore.Addr,
		Password: cfg.SessionStore.Password,
		DB:       cfg.SessionStore.DB,
	})

	return &Worker{
		manager:     m,
		exporter:    exporter,
		redisClient: client,
		config:      cfg,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the export monitoring loop
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	_ = w.redisClient.Close()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Archive.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkAndExport()
		}
	}
}

func (w *Worker) checkAndExport() {
	pressureRatio := w.checkMemoryPressure()
	maxAge := w.adjustMaxAge(pressureRatio)
	now := time.Now()

	ids, err := w.manager.List(w.ctx)
	if err != nil {
		slog.Warn("Failed to list sessions for export", log.Error(err))
		return
	}

	for _, id := range ids {
		st, err := w.manager.Load(w.ctx, id)
		if err != nil {
			if !errors.Is(err, builder.ErrSessionNotFound) {
				slog.Warn("Failed to load session for export",
					log.SessionID(id), log.Error(err))
			}
			continue
		}
		if !st.IsTerminal() || now.Sub(st.LastUpdated) <= maxAge {
			continue
		}
		if ok, err := w.exporter.Has(w.ctx, id); err == nil && ok {
			continue
		}

		if err := w.exporter.Export(w.ctx, st); err != nil {
			slog.Warn("Failed to export session",
				log.SessionID(id), log.Error(err))
			continue
		}
		slog.Info("Session exported",
			log.SessionID(id),
			slog.Bool("memory_pressure", pressureRatio > 0))
	}
}

// checkMemoryPressure returns the used-memory ratio when Redis is above
// the configured threshold, or 0 when there is no pressure
func (w *Worker) checkMemoryPressure() float64 {
	info, err := w.redisClient.Info(w.ctx, "memory").Result()
	if err != nil {
		slog.Warn("Failed to get Redis memory info", log.Error(err))
		return 0
	}

	usedMemory, maxMemory := parseMemoryInfo(info)
	if maxMemory == 0 {
		return 0
	}

	usedPercent := (float64(usedMemory) / float64(maxMemory)) * 100
	if usedPercent < w.config.Archive.MemoryPercent {
		return 0
	}
	return usedPercent / 100
}

func (w *Worker) adjustMaxAge(pressureRatio float64) time.Duration {
	if pressureRatio <= 0 {
		return w.config.Archive.MaxAge
	}

	scaled := time.Duration(float64(w.config.Archive.MaxAge) *
		math.Pow(1-pressureRatio, 2))
	if scaled < time.Minute {
		scaled = time.Minute
	}
	return scaled
}

func parseMemoryInfo(info string) (used, max int64) {
	lines := strings.SplitSeq(info, "\n")
	for line := range lines {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "used_memory:"); ok {
			used, _ = strconv.ParseInt(after, 10, 64)
		} else if after, ok := strings.CutPrefix(line, "maxmemory:"); ok {
			max, _ = strconv.ParseInt(after, 10, 64)
		}
	}
	return
}
