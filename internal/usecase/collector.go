package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/pkg/cache"
	"IndiPull/pkg/date"
	"IndiPull/pkg/logger"
)

const sourceCachePrefix = "src"

// Collector calls every source in order, one at a time, and caches each
// result for the TTL of the source's class. Failed results are cached too,
// so a dead upstream is retried only once its entry expires.
type Collector struct {
	sources []drepo.Source
	cache   cache.Service
	ttl     map[registry.TTLClass]time.Duration
	timeout time.Duration
	metrics drepo.Metrics
	l       *logger.Logger
	now     func() time.Time
}

// NewCollector creates a Collector. timeout bounds each individual fetch.
func NewCollector(sources []drepo.Source, c cache.Service, ttl map[registry.TTLClass]time.Duration, timeout time.Duration, metrics drepo.Metrics, l *logger.Logger) *Collector {
	if l == nil {
		l = logger.Nop()
	}
	return &Collector{
		sources: sources,
		cache:   c,
		ttl:     ttl,
		timeout: timeout,
		metrics: metrics,
		l:       l,
		now:     time.Now,
	}
}

// Sources returns the adapter names in fetch order.
func (c *Collector) Sources() []string {
	out := make([]string, len(c.sources))
	for i, s := range c.sources {
		out[i] = s.Name()
	}
	return out
}

// Collect returns one result per source, in source order.
func (c *Collector) Collect(ctx context.Context, cycleID string, on date.Date) []models.SourceResult {
	l := c.l.With(logger.String("cycle_id", cycleID), logger.String("on", on.String()))
	out := make([]models.SourceResult, 0, len(c.sources))
	for _, src := range c.sources {
		out = append(out, c.collectOne(ctx, l, src, on))
	}
	return out
}

func (c *Collector) collectOne(ctx context.Context, l *logger.Logger, src drepo.Source, on date.Date) models.SourceResult {
	key := cache.GenerateKeyWithParams(sourceCachePrefix, src.Name(), on)

	var cached models.SourceResult
	err := c.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		c.metrics.RecordFetch(src.Name(), "cached")
		return cached
	case !errors.Is(err, cache.ErrCacheMiss):
		l.Warn("collector: cache read failed", logger.String("source", src.Name()), logger.Error(err))
	}

	start := c.now()
	res := c.fetch(ctx, src, on)
	elapsed := c.now().Sub(start)
	c.metrics.RecordFetchLatency(src.Name(), elapsed)

	if res.Err != "" {
		c.metrics.RecordFetch(src.Name(), "error")
		l.Warn("collector: source unavailable",
			logger.String("source", src.Name()),
			logger.String("reason", res.Err),
			logger.Duration("elapsed_ms", elapsed),
		)
	} else {
		c.metrics.RecordFetch(src.Name(), "ok")
		l.Debug("collector: fetched",
			logger.String("source", src.Name()),
			logger.Int("readings", len(res.Readings)),
			logger.Duration("elapsed_ms", elapsed),
		)
	}

	// a cancelled refresh says nothing about the upstream
	if ctx.Err() != nil {
		return res
	}
	if err := c.cache.Set(ctx, key, res, c.ttlOf(src.TTLClass())); err != nil {
		l.Warn("collector: cache write failed", logger.String("source", src.Name()), logger.Error(err))
	}
	return res
}

// fetch runs one adapter call under its own timeout. An adapter that ignores
// its context is abandoned when the timeout fires; a panic becomes an
// unavailable result.
func (c *Collector) fetch(ctx context.Context, src drepo.Source, on date.Date) models.SourceResult {
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	failed := func(reason string) models.SourceResult {
		return models.SourceResult{Source: src.Name(), On: on, FetchedAt: c.now(), Err: reason}
	}

	if err := fctx.Err(); err != nil {
		return failed(fmt.Sprintf("fetch: %v", err))
	}

	done := make(chan models.SourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- failed(fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- src.Fetch(fctx, on)
	}()

	var res models.SourceResult
	select {
	case res = <-done:
	case <-fctx.Done():
		res = failed(fmt.Sprintf("fetch: %v", fctx.Err()))
	}
	if res.Source == "" {
		res.Source = src.Name()
	}
	if res.On.IsZero() {
		res.On = on
	}
	return res
}

// Invalidate drops every cached source result.
func (c *Collector) Invalidate(ctx context.Context) error {
	if err := c.cache.DeleteByPattern(ctx, cache.BuildPattern(sourceCachePrefix)); err != nil {
		return fmt.Errorf("invalidate source cache: %w", err)
	}
	return nil
}

func (c *Collector) ttlOf(class registry.TTLClass) time.Duration {
	if d, ok := c.ttl[class]; ok && d > 0 {
		return d
	}
	return c.ttl[registry.Slow]
}
