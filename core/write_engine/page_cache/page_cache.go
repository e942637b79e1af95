// Package pagecache provides a bounded, LRU-evicting, write-back cache of
// pages on top of a page store.
//
// The cache is not internally synchronized: callers that share one PageCache
// across goroutines must impose their own exclusion around cache operations.
// The per-page latch on the handles it returns only covers the page buffer
// itself.
package pagecache

import (
	"container/list"
	"context"
	"errors"
	"fmt"

	pagemanager "github.com/kagedb/kagedb/core/write_engine/page_manager"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// PageStore is the durable backing of a PageCache. *pager.Pager satisfies it.
type PageStore interface {
	ReadPage(id pagemanager.PageID) ([]byte, error)
	WritePage(id pagemanager.PageID, data []byte) error
}

// PageCache caches pages read through a PageStore, tracks which of them have
// diverged from durable storage, and batches the write-back of dirty pages.
//
// Capacity is a soft limit: a dirty page is never evicted, so when every
// cached page is dirty the cache grows past its capacity until the next
// Flush.
type PageCache struct {
	store    PageStore
	capacity int
	table    map[pagemanager.PageID]*pagemanager.Page
	lruList  *list.List // front = most recently used, back = eviction candidate
	logger   *zap.Logger
	metrics  *cacheMetrics
}

// New creates a PageCache over store holding at most capacity pages. A nil
// logger is replaced with a no-op logger; a nil meter disables metrics.
func New(store PageStore, capacity int, logger *zap.Logger, meter metric.Meter) (*PageCache, error) {
	if store == nil {
		return nil, errors.New("page cache store cannot be nil")
	}
	if capacity < 1 {
		return nil, fmt.Errorf("page cache capacity must be at least 1, got %d", capacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics, err := newCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache metrics: %w", err)
	}
	logger.Info("page cache initialized", zap.Int("capacity", capacity))
	return &PageCache{
		store:    store,
		capacity: capacity,
		table:    make(map[pagemanager.PageID]*pagemanager.Page),
		lruList:  list.New(),
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// GetPage returns the shared handle for the given page, faulting it in from
// the store on a miss. Every call for the same id returns the same handle
// until the page is evicted, and each call promotes the page to most recently
// used.
func (c *PageCache) GetPage(id pagemanager.PageID) (*pagemanager.Page, error) {
	if page, ok := c.table[id]; ok {
		c.lruList.MoveToFront(page.GetLruElement())
		c.metrics.hits.Add(context.Background(), 1)
		return page, nil
	}
	c.metrics.misses.Add(context.Background(), 1)

	data, err := c.store.ReadPage(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d through store: %w", id, err)
	}
	page := pagemanager.NewPage(id)
	page.SetData(data)
	c.table[id] = page
	page.SetLruElement(c.lruList.PushFront(page))
	c.evictIfNecessary()
	c.logger.Debug("page faulted in", zap.Uint64("page_id", uint64(id)), zap.Int("cached", len(c.table)))
	return page, nil
}

// MarkDirty flags the page as diverged from durable storage. Marking a page
// that is not currently cached is a deliberate no-op: callers may mark pages
// they have not faulted in yet.
func (c *PageCache) MarkDirty(id pagemanager.PageID) {
	if page, ok := c.table[id]; ok {
		page.SetDirty(true)
	}
}

// Flush writes every dirty page through to the store, walking the recency
// list from least to most recently used, and clears the dirty flag of each
// page as it lands. The first write failure stops the pass and propagates;
// pages already written stay clean and the remainder stay dirty, so a retry
// resumes where the failed pass left off.
func (c *PageCache) Flush() error {
	for elem := c.lruList.Back(); elem != nil; elem = elem.Prev() {
		page := elem.Value.(*pagemanager.Page)
		if !page.IsDirty() {
			continue
		}
		if err := c.store.WritePage(page.GetPageID(), page.GetData()); err != nil {
			return fmt.Errorf("failed to flush page %d: %w", page.GetPageID(), err)
		}
		page.SetDirty(false)
		c.metrics.flushes.Add(context.Background(), 1)
	}
	return nil
}

// Contains reports whether the page is currently cached.
func (c *PageCache) Contains(id pagemanager.PageID) bool {
	_, ok := c.table[id]
	return ok
}

// Len returns the number of cached pages. This can exceed the configured
// capacity while every cached page is dirty.
func (c *PageCache) Len() int {
	return len(c.table)
}

// evictIfNecessary drops clean pages, least recently used first, until the
// cache is back under capacity. A dirty victim is requeued at the most
// recently used end instead of being evicted. When a full scan finds only
// dirty pages, eviction gives up and the cache stays over capacity.
func (c *PageCache) evictIfNecessary() {
	for len(c.table) > c.capacity {
		evicted := false
		for i, n := 0, c.lruList.Len(); i < n; i++ {
			victim := c.lruList.Back()
			page := victim.Value.(*pagemanager.Page)
			if page.IsDirty() {
				c.lruList.MoveToFront(victim)
				continue
			}
			c.lruList.Remove(victim)
			delete(c.table, page.GetPageID())
			page.SetLruElement(nil)
			c.metrics.evictions.Add(context.Background(), 1)
			// The page is clean, so dropping it loses nothing: its content
			// already matches durable storage.
			c.logger.Debug("evicted clean page", zap.Uint64("page_id", uint64(page.GetPageID())))
			evicted = true
			break
		}
		if !evicted {
			c.logger.Debug("all cached pages dirty, cache over capacity until next flush",
				zap.Int("cached", len(c.table)), zap.Int("capacity", c.capacity))
			return
		}
	}
}
