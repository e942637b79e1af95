// Package wal implements an append-only, checksum-verified log of page-write
// intents with sequential crash-safe replay.
//
// A caller that wants to mutate a page appends the intended bytes here first,
// then applies the mutation through the page cache; on restart, replay
// reconstructs every write that was logged but possibly not yet applied.
// Records are framed into fixed-size chunks (see frame.go for the on-disk
// layout); each Append is synced to durable storage before it returns.
package wal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	pagemanager "github.com/kagedb/kagedb/core/write_engine/page_manager"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("wal is closed")

// Wal is the write-ahead log over a single append-only file. Appends are
// serialized by a mutex and each one is durable before the call returns;
// there is no batching across calls.
type Wal struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	logger  *zap.Logger
	metrics *walMetrics
}

// Open opens (creating if absent) the log file at path. A nil logger is
// replaced with a no-op logger; a nil meter disables metrics.
func Open(path string, logger *zap.Logger, meter metric.Meter) (*Wal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics, err := newWalMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create wal metrics: %w", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open wal %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat wal %s: %w", path, err)
	}
	logger.Info("wal opened", zap.String("path", path), zap.Int64("size", info.Size()))
	return &Wal{file: file, path: path, logger: logger, metrics: metrics}, nil
}

// Append durably logs the intent to write data to the given page. The record
// is split into frames of at most MaxChunkPayload bytes each; empty data
// still produces exactly one zero-payload frame. The file is synced before
// Append returns.
func (w *Wal) Append(id pagemanager.PageID, data []byte) error {
	return w.append(FrameData, uint64(id), data)
}

// AppendCheckpoint durably logs an advisory checkpoint frame whose payload is
// the given log offset. Replay skips checkpoint frames; a caller wanting
// truncated recovery must remember the offset itself and pass it to
// ReplayFromOffset.
func (w *Wal) AppendCheckpoint(lastOffset uint64) error {
	var payload [8]byte
	binary.LittleEndian.PutUint64(payload[:], lastOffset)
	return w.append(FrameCheckpoint, 0, payload[:])
}

func (w *Wal) append(kind FrameKind, pageID uint64, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ErrClosed
	}

	totalChunks := (len(data) + MaxChunkPayload - 1) / MaxChunkPayload
	if totalChunks == 0 {
		totalChunks = 1
	}
	for i := 0; i < totalChunks; i++ {
		start := i * MaxChunkPayload
		end := start + MaxChunkPayload
		if end > len(data) {
			end = len(data)
		}
		buf := encodeFrame(frame{
			kind:        kind,
			pageID:      pageID,
			chunkIndex:  uint32(i),
			totalChunks: uint32(totalChunks),
			payload:     data[start:end],
		})
		if _, err := w.file.Write(buf); err != nil {
			return fmt.Errorf("failed to append wal frame %d/%d for page %d: %w", i+1, totalChunks, pageID, err)
		}
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync wal after append for page %d: %w", pageID, err)
	}

	w.metrics.appends.Add(context.Background(), 1)
	w.metrics.framesWritten.Add(context.Background(), int64(totalChunks))
	w.logger.Debug("wal append",
		zap.Uint8("kind", uint8(kind)),
		zap.Uint64("page_id", pageID),
		zap.Int("bytes", len(data)),
		zap.Int("frames", totalChunks))
	return nil
}

// ReplayFromOffset reads frames sequentially starting at the given byte
// offset and invokes fn once per fully reassembled data record, in log order.
// Checkpoint frames are verified and skipped.
//
// Replay ends without error at the first sign of a torn or corrupt tail: a
// zero-byte read, a read shorter than a frame header, an unknown frame kind,
// a magic mismatch, an oversized payload length, or a CRC mismatch. Whatever
// was decoded before that point has already been delivered. Only genuine I/O
// failures surface as errors.
//
// A data frame whose page id differs from the record currently being
// reassembled discards the partial record: interleaved multi-frame records
// for different pages are not supported by this framing.
func (w *Wal) ReplayFromOffset(offset int64, fn func(id pagemanager.PageID, data []byte)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ErrClosed
	}

	buf := make([]byte, FrameSize)
	var session replaySession
	pos := offset
	for {
		n, err := w.file.ReadAt(buf, pos)
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read wal frame at offset %d: %w", pos, err)
		}
		if n < frameOverhead {
			// Clean EOF or a tail too short to hold a frame header.
			break
		}
		// Stale bytes past a short read must not resurrect the previous
		// frame's content.
		clear(buf[n:])

		f, ok := decodeFrame(buf)
		if !ok {
			w.metrics.replayStops.Add(context.Background(), 1)
			w.logger.Debug("replay stopped at malformed frame", zap.Int64("offset", pos))
			break
		}

		switch f.kind {
		case FrameCheckpoint:
			// Advisory marker only; verified above, otherwise ignored.
		case FrameData:
			if !session.active || session.pageID != f.pageID {
				session.begin(f.pageID, int(f.totalChunks))
			}
			session.collect(int(f.chunkIndex), f.payload)
			if session.complete() {
				fn(pagemanager.PageID(f.pageID), session.assemble())
				session.active = false
				w.metrics.recordsReplayed.Add(context.Background(), 1)
			}
		}
		pos += FrameSize
	}
	return nil
}

// CurrentOffset returns the current end-of-file byte offset. Callers record
// it before further appends to mark checkpoint positions.
func (w *Wal) CurrentOffset() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, ErrClosed
	}
	info, err := w.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat wal %s: %w", w.path, err)
	}
	return info.Size(), nil
}

// Close closes the log file. Further calls on the Wal fail with ErrClosed.
func (w *Wal) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to close wal %s: %w", w.path, err)
	}
	w.logger.Info("wal closed", zap.String("path", w.path))
	return nil
}

// replaySession is the transient per-record reassembly state used during
// replay. It is reset whenever a data frame for a different page arrives,
// dropping any partially collected chunks for the previous page.
type replaySession struct {
	active   bool
	pageID   uint64
	chunks   [][]byte
	received []bool
}

func (s *replaySession) begin(pageID uint64, totalChunks int) {
	s.active = true
	s.pageID = pageID
	s.chunks = make([][]byte, totalChunks)
	s.received = make([]bool, totalChunks)
}

// collect stores one chunk. Completeness is tracked with an explicit
// received marker per slot, so a zero-length payload (the sole chunk of an
// empty record) still counts as received.
func (s *replaySession) collect(index int, payload []byte) {
	if index >= len(s.chunks) {
		return
	}
	s.chunks[index] = append([]byte(nil), payload...)
	s.received[index] = true
}

func (s *replaySession) complete() bool {
	if !s.active {
		return false
	}
	for _, got := range s.received {
		if !got {
			return false
		}
	}
	return true
}

func (s *replaySession) assemble() []byte {
	total := 0
	for _, chunk := range s.chunks {
		total += len(chunk)
	}
	data := make([]byte, 0, total)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}
	return data
}
