// Package strategy implements the resolution strategies and the priority
// chain that dispatches conflicts to them. A strategy never returns a Go
// error: every outcome it can produce, its own failures included, is a
// *resolution.Result.
package strategy

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/semantic"
)

// Strategy is one way of resolving a conflict between a source and a
// target module. Strategies with higher priority are probed first.
type Strategy interface {
	// Name identifies the strategy in results, logs, and force requests.
	Name() string
	// Priority orders the chain; higher values are probed first.
	Priority() int
	// CanResolve reports whether this strategy volunteers for the
	// descriptor pair. It must be cheap relative to Resolve.
	CanResolve(ctx context.Context, src, tgt *semantic.Descriptor) bool
	// Resolve performs the resolution. The result carries success,
	// confidence, and conflict notes; it is never nil for a well-behaved
	// strategy.
	Resolve(ctx context.Context, srcData, tgtData any, src, tgt *semantic.Descriptor) *resolution.Result
}

// Request carries one conflict through the chain.
type Request struct {
	SourceData any
	TargetData any
	Source     *semantic.Descriptor
	Target     *semantic.Descriptor

	// ForceStrategy dispatches directly to the named strategy, skipping
	// CanResolve probing. Empty means normal priority order.
	ForceStrategy string
}

// Chain holds registered strategies sorted by descending priority.
type Chain struct {
	mu         sync.RWMutex
	strategies []Strategy
	logger     *zap.SugaredLogger
}

// NewChain creates an empty chain.
func NewChain(logger *zap.SugaredLogger) *Chain {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Chain{logger: logger}
}

// Register adds a strategy and re-sorts the chain. The sort is stable, so
// strategies sharing a priority keep registration order.
func (c *Chain) Register(s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.strategies = append(c.strategies, s)
	sort.SliceStable(c.strategies, func(i, j int) bool {
		return c.strategies[i].Priority() > c.strategies[j].Priority()
	})

	c.logger.Debugw("Strategy registered",
		"strategy", s.Name(),
		"priority", s.Priority(),
		"chain_size", len(c.strategies))
}

// Names returns the registered strategy names in dispatch order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Dispatch routes one request to exactly one strategy and returns its
// result. A forced strategy that is not registered falls through to
// normal probing. When no strategy volunteers, the oracle fallback takes
// the call regardless of its own CanResolve answer.
func (c *Chain) Dispatch(ctx context.Context, req Request) *resolution.Result {
	c.mu.RLock()
	strategies := make([]Strategy, len(c.strategies))
	copy(strategies, c.strategies)
	c.mu.RUnlock()

	if req.ForceStrategy != "" {
		for _, s := range strategies {
			if s.Name() == req.ForceStrategy {
				return c.resolveWith(ctx, s, req)
			}
		}
		c.logger.Warnw("Forced strategy not registered, probing chain",
			"strategy", req.ForceStrategy)
	}

	for _, s := range strategies {
		if s.CanResolve(ctx, req.Source, req.Target) {
			return c.resolveWith(ctx, s, req)
		}
	}

	for _, s := range strategies {
		if s.Name() == OracleFallbackName {
			return c.resolveWith(ctx, s, req)
		}
	}

	return resolution.Failure("none", "no_strategy",
		"no registered strategy accepted the conflict")
}

// resolveWith runs one strategy and stamps the execution time onto its
// result. A nil result is converted into a failure so Dispatch always
// yields exactly one Result.
func (c *Chain) resolveWith(ctx context.Context, s Strategy, req Request) *resolution.Result {
	start := time.Now()
	c.logger.Debugw("Dispatching conflict",
		"strategy", s.Name(),
		"source_type", semantic.TypeLabel(req.Source),
		"target_type", semantic.TypeLabel(req.Target))

	result := s.Resolve(ctx, req.SourceData, req.TargetData, req.Source, req.Target)
	if result == nil {
		result = resolution.Failure(s.Name(), "strategy_error",
			"strategy returned no result")
	}
	result.Metadata.ExecutionTimeMs = time.Since(start).Milliseconds()

	c.logger.Debugw("Strategy finished",
		"strategy", result.StrategyUsed,
		"success", result.Success,
		"confidence", result.Confidence,
		"duration_ms", result.Metadata.ExecutionTimeMs)
	return result
}
