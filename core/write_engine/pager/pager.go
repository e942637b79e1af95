// Package pager provides durable fixed-size page storage over a single file.
//
// The file has no header and no allocation metadata: page N is simply the
// byte range [N*PageSize, (N+1)*PageSize). File length is therefore not a
// reliable indicator of the highest page in use; reading past the end of the
// file yields a zero-filled page rather than an error.
package pager

import (
	"fmt"
	"io"
	"os"
	"sync"

	pagemanager "github.com/kagedb/kagedb/core/write_engine/page_manager"
	"go.uber.org/zap"
)

// Pager performs raw page-granular reads and writes against one data file.
// It does no caching and no logging. A single mutex serializes all access to
// the file handle; there is no page-level locking at this layer.
type Pager struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *zap.Logger
}

// Open opens the data file at path, creating it if absent. A nil logger is
// replaced with a no-op logger.
func Open(path string, logger *zap.Logger) (*Pager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open page store %s: %w", path, err)
	}
	logger.Info("page store opened", zap.String("path", path))
	return &Pager{file: file, path: path, logger: logger}, nil
}

// ReadPage returns the PageSize bytes stored for the given page. Regions the
// file does not cover read as zeroes: a page past the end of the file, or the
// tail of a file shorter than a full page, is zero-padded rather than an
// error.
func (p *Pager) ReadPage(id pagemanager.PageID) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil, ErrClosed
	}

	buf := make([]byte, pagemanager.PageSize)
	_, err := p.file.ReadAt(buf, int64(id)*pagemanager.PageSize)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read page %d: %w", id, err)
	}
	return buf, nil
}

// WritePage stores exactly PageSize bytes for the given page and syncs the
// file before returning; the write is durable once WritePage returns.
func (p *Pager) WritePage(id pagemanager.PageID, data []byte) error {
	if len(data) != pagemanager.PageSize {
		return fmt.Errorf("%w: page %d write of %d bytes, want %d",
			ErrInvalidPageData, id, len(data), pagemanager.PageSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return ErrClosed
	}

	if _, err := p.file.WriteAt(data, int64(id)*pagemanager.PageSize); err != nil {
		return fmt.Errorf("failed to write page %d: %w", id, err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync page store after writing page %d: %w", id, err)
	}
	p.logger.Debug("page written", zap.Uint64("page_id", uint64(id)))
	return nil
}

// Close closes the underlying file. Further calls on the Pager fail with
// ErrClosed.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return fmt.Errorf("failed to close page store %s: %w", p.path, err)
	}
	p.logger.Info("page store closed", zap.String("path", p.path))
	return nil
}
