package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PurgeTicker tombstones stale cache entries on a fixed interval. It owns
// the tombstone-write path; nothing else purges while it runs.
type PurgeTicker struct {
	cache     *Cache
	interval  time.Duration
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.SugaredLogger

	mu         sync.Mutex
	runs       int64
	tombstoned int64
	lastRunAt  time.Time
}

// TickerConfig controls the purge cadence.
type TickerConfig struct {
	Interval  time.Duration // how often the purge fires
	Retention time.Duration // how long unused entries survive
}

// DefaultTickerConfig returns the stock purge cadence: daily runs, 90-day
// retention.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval:  24 * time.Hour,
		Retention: 2160 * time.Hour,
	}
}

// NewPurgeTicker creates a purge ticker for the cache.
func NewPurgeTicker(cache *Cache, cfg TickerConfig, logger *zap.SugaredLogger) *PurgeTicker {
	return NewPurgeTickerWithContext(context.Background(), cache, cfg, logger)
}

// NewPurgeTickerWithContext creates a purge ticker with a parent context.
// Non-positive config values fall back to the defaults.
func NewPurgeTickerWithContext(ctx context.Context, cache *Cache, cfg TickerConfig, logger *zap.SugaredLogger) *PurgeTicker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	defaults := DefaultTickerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}

	tickerCtx, cancel := context.WithCancel(ctx)
	return &PurgeTicker{
		cache:     cache,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		ctx:       tickerCtx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start begins the purge loop.
func (t *PurgeTicker) Start() {
	t.wg.Add(1)
	go t.run()
	t.logger.Infow("Cache purge ticker started", "interval", t.interval, "retention", t.retention)
}

// Stop cancels the loop and waits for it to exit.
func (t *PurgeTicker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.logger.Infow("Cache purge ticker stopped")
}

func (t *PurgeTicker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			count := t.cache.Purge(tickTime.Add(-t.retention))

			t.mu.Lock()
			t.runs++
			t.tombstoned += int64(count)
			t.lastRunAt = tickTime
			runs := t.runs
			t.mu.Unlock()

			if count > 0 {
				t.logger.Infow("Purge tick", "tombstoned", count, "run", runs)
			} else {
				t.logger.Debugw("Purge tick", "tombstoned", 0, "run", runs)
			}
		}
	}
}

// GetStats returns ticker statistics.
func (t *PurgeTicker) GetStats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]interface{}{
		"runs":        t.runs,
		"tombstoned":  t.tombstoned,
		"last_run_at": t.lastRunAt,
		"interval":    t.interval,
		"retention":   t.retention,
	}
}
