// Package recovery replays the write-ahead log back into a page store after
// a restart. It must run before the store serves reads, so that writes that
// were durably logged but never confirmed applied are not lost.
package recovery

import (
	"fmt"

	pagecache "github.com/kagedb/kagedb/core/write_engine/page_cache"
	pagemanager "github.com/kagedb/kagedb/core/write_engine/page_manager"
	"github.com/kagedb/kagedb/core/write_engine/wal"
	"go.uber.org/zap"
)

// Recover replays every record in the log starting at fromOffset and writes
// each one into the store. A record is fitted to one page: longer data is
// truncated at PageSize, shorter data is zero-padded. Later records for the
// same page overwrite earlier ones, which is exactly the log order a caller
// produced them in.
//
// It returns the number of pages applied. The first store write failure
// aborts the run; pages applied before it stay applied.
func Recover(w *wal.Wal, store pagecache.PageStore, fromOffset int64, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	applied := 0
	var writeErr error
	err := w.ReplayFromOffset(fromOffset, func(id pagemanager.PageID, data []byte) {
		if writeErr != nil {
			return
		}
		page := make([]byte, pagemanager.PageSize)
		copy(page, data)
		if len(data) != pagemanager.PageSize {
			logger.Debug("recovered record resized to page",
				zap.Uint64("page_id", uint64(id)), zap.Int("record_bytes", len(data)))
		}
		if err := store.WritePage(id, page); err != nil {
			writeErr = fmt.Errorf("failed to apply recovered page %d: %w", id, err)
			return
		}
		applied++
	})
	if err != nil {
		return applied, fmt.Errorf("wal replay failed during recovery: %w", err)
	}
	if writeErr != nil {
		return applied, writeErr
	}
	logger.Info("recovery complete", zap.Int("pages_applied", applied), zap.Int64("from_offset", fromOffset))
	return applied, nil
}
