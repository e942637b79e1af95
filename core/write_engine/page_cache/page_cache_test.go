package pagecache

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	pagemanager "github.com/kagedb/kagedb/core/write_engine/page_manager"
	"github.com/kagedb/kagedb/core/write_engine/pager"
	"go.uber.org/zap"
)

func setupCache(t *testing.T, capacity int) (*PageCache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	p, err := pager.Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	cache, err := New(p, capacity, zap.NewNop(), nil)
	require.NoError(t, err)
	return cache, path
}

func TestNewRejectsBadArguments(t *testing.T) {
	_, err := New(nil, 3, nil, nil)
	require.Error(t, err)

	cache, _ := setupCache(t, 3)
	_, err = New(cache.store, 0, nil, nil)
	require.Error(t, err)
}

func TestGetPageReturnsZeroedPage(t *testing.T) {
	cache, _ := setupCache(t, 3)

	page, err := cache.GetPage(1)
	require.NoError(t, err)
	require.Equal(t, make([]byte, pagemanager.PageSize), page.GetData())
}

func TestGetPageHandlesAliasSameBuffer(t *testing.T) {
	cache, _ := setupCache(t, 3)

	first, err := cache.GetPage(1)
	require.NoError(t, err)
	second, err := cache.GetPage(1)
	require.NoError(t, err)
	require.Same(t, first, second)

	// A mutation through one handle is visible through the other.
	copy(first.GetData(), []byte{9, 8, 7, 6})
	require.Equal(t, []byte{9, 8, 7, 6}, second.GetData()[:4])
}

func TestFlushWritesDirtyPagesThrough(t *testing.T) {
	cache, path := setupCache(t, 3)

	page, err := cache.GetPage(1)
	require.NoError(t, err)
	copy(page.GetData(), []byte{9, 8, 7, 6})
	cache.MarkDirty(1)
	require.NoError(t, cache.Flush())
	require.False(t, page.IsDirty())

	// A fresh pager over the same file sees the flushed bytes.
	verify, err := pager.Open(path, zap.NewNop())
	require.NoError(t, err)
	defer verify.Close()
	data, err := verify.ReadPage(1)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7, 6}, data[:4])
}

func TestMarkDirtyUncachedPageIsNoOp(t *testing.T) {
	cache, _ := setupCache(t, 3)

	cache.MarkDirty(42)
	require.False(t, cache.Contains(42))
	require.NoError(t, cache.Flush())
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	cache, _ := setupCache(t, 3)

	for id := pagemanager.PageID(1); id <= 4; id++ {
		_, err := cache.GetPage(id)
		require.NoError(t, err)
	}

	require.False(t, cache.Contains(1))
	require.True(t, cache.Contains(2))
	require.True(t, cache.Contains(3))
	require.True(t, cache.Contains(4))
	require.Equal(t, 3, cache.Len())
}

func TestHitPromotesPageOverEviction(t *testing.T) {
	cache, _ := setupCache(t, 3)

	for id := pagemanager.PageID(1); id <= 3; id++ {
		_, err := cache.GetPage(id)
		require.NoError(t, err)
	}
	// Touch page 1 so page 2 becomes the LRU victim.
	_, err := cache.GetPage(1)
	require.NoError(t, err)
	_, err = cache.GetPage(4)
	require.NoError(t, err)

	require.True(t, cache.Contains(1))
	require.False(t, cache.Contains(2))
}

func TestDirtyPageIsNeverEvicted(t *testing.T) {
	cache, _ := setupCache(t, 3)

	_, err := cache.GetPage(1)
	require.NoError(t, err)
	cache.MarkDirty(1)

	for id := pagemanager.PageID(2); id <= 4; id++ {
		_, err := cache.GetPage(id)
		require.NoError(t, err)
	}

	// The dirty page is passed over; the next clean LRU victim goes instead.
	require.True(t, cache.Contains(1))
	require.False(t, cache.Contains(2))
	require.True(t, cache.Contains(3))
	require.True(t, cache.Contains(4))
	require.Equal(t, 3, cache.Len())

	// Once flushed clean it is an ordinary eviction candidate again.
	require.NoError(t, cache.Flush())
	_, err = cache.GetPage(5)
	require.NoError(t, err)
	require.Equal(t, 3, cache.Len())
}

func TestAllDirtyCacheExceedsCapacityWithoutLooping(t *testing.T) {
	cache, _ := setupCache(t, 2)

	for id := pagemanager.PageID(1); id <= 4; id++ {
		_, err := cache.GetPage(id)
		require.NoError(t, err)
		cache.MarkDirty(id)
	}

	require.Equal(t, 4, cache.Len())
	for id := pagemanager.PageID(1); id <= 4; id++ {
		require.True(t, cache.Contains(id))
	}
}

// failingStore fails every write for one page id, to exercise flush error
// propagation without touching the filesystem.
type failingStore struct {
	pages  map[pagemanager.PageID][]byte
	failOn pagemanager.PageID
}

func newFailingStore(failOn pagemanager.PageID) *failingStore {
	return &failingStore{pages: make(map[pagemanager.PageID][]byte), failOn: failOn}
}

func (s *failingStore) ReadPage(id pagemanager.PageID) ([]byte, error) {
	buf := make([]byte, pagemanager.PageSize)
	copy(buf, s.pages[id])
	return buf, nil
}

func (s *failingStore) WritePage(id pagemanager.PageID, data []byte) error {
	if id == s.failOn {
		return fmt.Errorf("injected write failure for page %d", id)
	}
	s.pages[id] = append([]byte(nil), data...)
	return nil
}

func TestFlushStopsAtFirstErrorKeepsBookkeeping(t *testing.T) {
	store := newFailingStore(2)
	cache, err := New(store, 3, zap.NewNop(), nil)
	require.NoError(t, err)

	one, err := cache.GetPage(1)
	require.NoError(t, err)
	copy(one.GetData(), bytes.Repeat([]byte{0x01}, 8))
	cache.MarkDirty(1)

	two, err := cache.GetPage(2)
	require.NoError(t, err)
	copy(two.GetData(), bytes.Repeat([]byte{0x02}, 8))
	cache.MarkDirty(2)

	// Flush walks LRU to MRU: page 1 lands, then page 2 fails the pass.
	err = cache.Flush()
	require.Error(t, err)
	require.False(t, one.IsDirty())
	require.True(t, two.IsDirty())
	require.Equal(t, bytes.Repeat([]byte{0x01}, 8), store.pages[1][:8])
	require.NotContains(t, store.pages, pagemanager.PageID(2))

	// The failed page is retried by the next flush once the store recovers.
	store.failOn = 0
	require.NoError(t, cache.Flush())
	require.False(t, two.IsDirty())
}
