// Package resolver orchestrates one resolution call end to end: telemetry
// session, ephemeral descriptors, cache probe, strategy dispatch, and
// persistence of the outcome. Resolve never returns a Go error and never
// lets a panic escape; every failure mode is a *resolution.Result.
package resolver

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/concord/ai/provider"
	"github.com/teranos/concord/cache"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/monitor"
	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/semantic"
	"github.com/teranos/concord/store"
	"github.com/teranos/concord/strategy"
)

// Resolver runs the resolution pipeline over shared infrastructure: one
// cache, one strategy chain, one durable store, one telemetry recorder.
// Safe for concurrent use.
type Resolver struct {
	cfg      *config.Config
	cache    *cache.Cache
	chain    *strategy.Chain
	records  *store.Store
	recorder monitor.Recorder
	client   provider.AIClient
	explicit *strategy.ExplicitMapping
	logger   *zap.SugaredLogger
}

// Options tunes one Resolve call.
type Options struct {
	// ForceStrategy dispatches directly to the named strategy and skips
	// the cache probe.
	ForceStrategy string
	// CacheResults controls whether a successful result is written back
	// to the cache. nil means true.
	CacheResults *bool
	// CacheThreshold overrides the similarity floor above which a cached
	// result is returned verbatim. 0 means the configured default.
	CacheThreshold float64
}

// New creates a resolver wired to the shared database: the oracle client,
// record store, telemetry recorder, and cache all ride on db. The three
// standard strategies are registered, with mapping rules applied when the
// configured rules file exists. Nothing is started: the purge ticker and
// rules watcher belong to the caller.
func New(db *sql.DB, cfg *config.Config, logger *zap.SugaredLogger) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	client := provider.NewAIClient(cfg, db, logger, "resolve", "", "")
	records := store.New(db, logger)
	recorder := monitor.NewSQLiteRecorder(db, logger)
	c := cache.New(cfg, client, records, logger)

	return NewWithComponents(cfg, client, c, records, recorder, logger), nil
}

// NewWithComponents assembles a resolver from pre-built parts. Tests and
// embedders use this to substitute any piece; a nil recorder degrades to
// no-op telemetry and a nil cache is created on the spot.
func NewWithComponents(cfg *config.Config, client provider.AIClient, c *cache.Cache, records *store.Store, recorder monitor.Recorder, logger *zap.SugaredLogger) *Resolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if recorder == nil {
		recorder = monitor.NopRecorder{}
	}
	if c == nil {
		c = cache.New(cfg, client, records, logger)
	}

	explicit := strategy.NewExplicitMapping(logger)
	if path := cfg.GetRulesPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := explicit.LoadRulesFile(path); err != nil {
				logger.Warnw("Failed to load mapping rules", "path", path, "error", err)
			}
		} else {
			logger.Debugw("No mapping rules file", "path", path)
		}
	}

	chain := strategy.NewChain(logger)
	chain.Register(explicit)
	chain.Register(strategy.NewPatternMatching(c, logger))
	chain.Register(strategy.NewOracleFallback(client, logger))

	return &Resolver{
		cfg:      cfg,
		cache:    c,
		chain:    chain,
		records:  records,
		recorder: recorder,
		client:   client,
		explicit: explicit,
		logger:   logger,
	}
}

// Resolve reconciles dataA from moduleA with dataB from moduleB and
// returns exactly one result. Callers check Success and the conflict
// notes; Resolve itself never returns an error and never panics outward.
func (r *Resolver) Resolve(ctx context.Context, moduleA string, dataA any, moduleB string, dataB any, opts *Options) (result *resolution.Result) {
	if opts == nil {
		opts = &Options{}
	}
	start := time.Now()

	sessionID := r.recorder.OpenSession(map[string]any{
		"operation":   "resolve",
		"source_type": moduleA,
		"target_type": moduleB,
	})

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorw("Resolution panicked",
				"source_type", moduleA,
				"target_type", moduleB,
				"panic", rec)
			r.recorder.LogError(errors.Newf("resolution panic: %v", rec), map[string]any{
				"session_id": sessionID,
				"stage":      monitor.StageDispatch,
			})
			result = &resolution.Result{Success: false, StrategyUsed: resolution.StrategyError, Confidence: 0}
		}
		r.recorder.LogEvent(monitor.Event{
			SessionID: sessionID,
			Stage:     monitor.StageComplete,
			Message:   "resolution finished",
			Data: map[string]any{
				"success":     result.Success,
				"strategy":    result.StrategyUsed,
				"duration_ms": time.Since(start).Milliseconds(),
			},
		})
		r.recorder.CloseSession(sessionID)
	}()

	source := DescribeRuntime(moduleA, dataA)
	target := DescribeRuntime(moduleB, dataB)
	r.recorder.LogEvent(monitor.Event{
		SessionID: sessionID,
		Stage:     monitor.StageDescriptors,
		Message:   "built ephemeral descriptors",
	})

	// Forcing a strategy means the caller wants that strategy's answer,
	// not whatever the cache remembers.
	if opts.ForceStrategy == "" {
		if cached := r.probeCache(ctx, source, target, opts.CacheThreshold, sessionID); cached != nil {
			return cached
		}
	}

	result = r.chain.Dispatch(ctx, strategy.Request{
		SourceData:    dataA,
		TargetData:    dataB,
		Source:        source,
		Target:        target,
		ForceStrategy: opts.ForceStrategy,
	})
	r.recorder.LogEvent(monitor.Event{
		SessionID: sessionID,
		Stage:     monitor.StageDispatch,
		Message:   "strategy chain dispatched",
		Data: map[string]any{
			"strategy":   result.StrategyUsed,
			"success":    result.Success,
			"confidence": result.Confidence,
		},
	})

	if result.Success && (opts.CacheResults == nil || *opts.CacheResults) {
		r.persist(result, source, target, moduleA, moduleB, sessionID)
	}
	return result
}

// probeCache checks for a near-identical prior resolution and returns its
// stored result verbatim. Retrieve already bumped the entry's usage.
func (r *Resolver) probeCache(ctx context.Context, source, target *semantic.Descriptor, threshold float64, sessionID string) *resolution.Result {
	if threshold <= 0 {
		threshold = r.cacheThreshold()
	}

	match := r.cache.Retrieve(ctx, source, target, threshold)
	if match == nil {
		r.recorder.LogEvent(monitor.Event{
			SessionID: sessionID,
			Stage:     monitor.StageCacheProbe,
			Message:   "no cached result above threshold",
			Data:      map[string]any{"threshold": threshold},
		})
		return nil
	}

	cached := cachedResult(match.Entry)
	if cached == nil {
		// The entry carries a path but no stored result; the pattern
		// strategy can still replay it through normal dispatch.
		r.recorder.LogEvent(monitor.Event{
			SessionID: sessionID,
			Stage:     monitor.StageCacheProbe,
			Message:   "matched entry carries no stored result",
			Data:      map[string]any{"entry_id": match.Entry.ID, "score": match.Score},
		})
		return nil
	}

	r.logger.Infow("Returning cached resolution",
		"entry_id", match.Entry.ID,
		"score", match.Score,
		"strategy", cached.StrategyUsed)
	r.recorder.LogEvent(monitor.Event{
		SessionID: sessionID,
		Stage:     monitor.StageCacheProbe,
		Message:   "returned cached result",
		Data: map[string]any{
			"entry_id": match.Entry.ID,
			"score":    match.Score,
			"strategy": cached.StrategyUsed,
			"success":  cached.Success,
		},
	})
	return cached
}

// persist writes a successful result back: a cache entry carrying the
// serialized result plus the strategy's transformation path, and a durable
// resolution record tagged with both module ids. Failures here are logged
// and recorded, never surfaced to the caller.
func (r *Resolver) persist(result *resolution.Result, source, target *semantic.Descriptor, moduleA, moduleB, sessionID string) {
	path := *resolution.NewPath()
	if result.Metadata.TransformationPath != nil {
		path = *result.Metadata.TransformationPath
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		r.logger.Warnw("Result not serializable, skipping persistence", "error", err)
		r.recorder.LogError(err, map[string]any{
			"session_id": sessionID,
			"stage":      monitor.StagePersist,
		})
		return
	}

	entryID := r.cache.Store(source, target, path, map[string]any{
		"result": string(serialized),
	})

	if r.records != nil {
		rec := resolutionRecord{
			SourceModule: moduleA,
			TargetModule: moduleB,
			Strategy:     result.StrategyUsed,
			Confidence:   result.Confidence,
			CacheEntryID: entryID,
			ResolvedAt:   time.Now().UTC(),
		}
		if _, err := r.records.Append(store.CategoryResolution, rec); err != nil {
			r.logger.Warnw("Failed to append resolution record", "error", err)
		}
	}

	r.recorder.LogEvent(monitor.Event{
		SessionID: sessionID,
		Stage:     monitor.StagePersist,
		Message:   "result cached",
		Data:      map[string]any{"entry_id": entryID},
	})
}

// resolutionRecord is the durable trace of one successful resolution.
type resolutionRecord struct {
	SourceModule string    `json:"source_module"`
	TargetModule string    `json:"target_module"`
	Strategy     string    `json:"strategy"`
	Confidence   float64   `json:"confidence"`
	CacheEntryID string    `json:"cache_entry_id,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// cachedResult reconstructs the stored result from a cache entry's
// metadata. Entries written by other paths may not carry one; nil means
// the probe should fall through to dispatch.
func cachedResult(e *cache.Entry) *resolution.Result {
	raw, ok := e.Metadata["result"]
	if !ok {
		return nil
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		data = b
	}

	var res resolution.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil
	}
	return &res
}

// RegisterStrategy adds a custom strategy; the chain re-sorts by priority.
func (r *Resolver) RegisterStrategy(s strategy.Strategy) {
	r.chain.Register(s)
}

// Strategies returns the registered strategy names in dispatch order.
func (r *Resolver) Strategies() []string {
	return r.chain.Names()
}

// Cache returns the transformation cache shared with the pattern strategy.
// The CLI hangs its cache commands and the purge ticker off this.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// Mappings returns the explicit mapping strategy, for programmatic
// registrations and rules reloads.
func (r *Resolver) Mappings() *strategy.ExplicitMapping {
	return r.explicit
}

// Records returns the durable record store.
func (r *Resolver) Records() *store.Store {
	return r.records
}

func (r *Resolver) cacheThreshold() float64 {
	if r.cfg.Resolver.CacheThreshold > 0 {
		return r.cfg.Resolver.CacheThreshold
	}
	return config.DefaultCacheThreshold
}
