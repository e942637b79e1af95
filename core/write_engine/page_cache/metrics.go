package pagecache

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type cacheMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	flushes   metric.Int64Counter
}

func newCacheMetrics(meter metric.Meter) (*cacheMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	m := &cacheMetrics{}
	var err error
	if m.hits, err = meter.Int64Counter("kagedb.page_cache.hits",
		metric.WithDescription("Page lookups served from memory")); err != nil {
		return nil, fmt.Errorf("failed to create hits counter: %w", err)
	}
	if m.misses, err = meter.Int64Counter("kagedb.page_cache.misses",
		metric.WithDescription("Page lookups that read through to the store")); err != nil {
		return nil, fmt.Errorf("failed to create misses counter: %w", err)
	}
	if m.evictions, err = meter.Int64Counter("kagedb.page_cache.evictions",
		metric.WithDescription("Clean pages dropped by the LRU policy")); err != nil {
		return nil, fmt.Errorf("failed to create evictions counter: %w", err)
	}
	if m.flushes, err = meter.Int64Counter("kagedb.page_cache.page_flushes",
		metric.WithDescription("Dirty pages written back to the store")); err != nil {
		return nil, fmt.Errorf("failed to create page_flushes counter: %w", err)
	}
	return m, nil
}
