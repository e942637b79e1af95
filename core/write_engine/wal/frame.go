package wal

import (
	"encoding/binary"
	"hash/crc32"
)

// On-disk frame layout (format version 1), all fields little-endian:
//
//	offset  size  field
//	0       1     frame kind (0 = data, 1 = checkpoint)
//	1       4     magic (0xC0DECAFE)
//	5       8     page id (0 for checkpoint frames)
//	13      4     chunk index, 0-based
//	17      4     total chunk count for this record
//	21      4     payload length
//	25      len   payload
//	25+len  4     CRC-32 (IEEE) of the payload
//	...           zero padding to FrameSize
//
// A frame's validity is fully self-contained: kind, magic and CRC are enough
// to accept or reject it without any cross-frame state.
const (
	// FrameSize is the fixed on-disk size of every log frame.
	FrameSize = 4096

	// Magic marks the start of every valid frame.
	Magic uint32 = 0xC0DECAFE

	headerSize    = 25
	crcSize       = 4
	frameOverhead = headerSize + crcSize

	// MaxChunkPayload is the largest payload one frame can carry; longer
	// records are split across this many bytes per frame.
	MaxChunkPayload = FrameSize - frameOverhead
)

// FrameKind tags the two record kinds the log knows about.
type FrameKind byte

const (
	FrameData       FrameKind = 0
	FrameCheckpoint FrameKind = 1
)

type frame struct {
	kind        FrameKind
	pageID      uint64
	chunkIndex  uint32
	totalChunks uint32
	payload     []byte
}

// encodeFrame serializes f into a full zero-padded frame. The payload must
// not exceed MaxChunkPayload.
func encodeFrame(f frame) []byte {
	buf := make([]byte, FrameSize)
	buf[0] = byte(f.kind)
	binary.LittleEndian.PutUint32(buf[1:5], Magic)
	binary.LittleEndian.PutUint64(buf[5:13], f.pageID)
	binary.LittleEndian.PutUint32(buf[13:17], f.chunkIndex)
	binary.LittleEndian.PutUint32(buf[17:21], f.totalChunks)
	binary.LittleEndian.PutUint32(buf[21:25], uint32(len(f.payload)))
	copy(buf[headerSize:], f.payload)
	crc := crc32.ChecksumIEEE(f.payload)
	binary.LittleEndian.PutUint32(buf[headerSize+len(f.payload):], crc)
	return buf
}

// decodeFrame parses one frame out of buf. ok is false when buf does not
// hold a well-formed frame — wrong kind byte, wrong magic, payload length
// overflowing the frame, or CRC mismatch. All of those are the expected
// signature of a torn trailing write, so the caller stops replay there
// rather than surfacing an error.
//
// The returned payload aliases buf; callers keeping it across reads must
// copy it.
func decodeFrame(buf []byte) (frame, bool) {
	if len(buf) < frameOverhead {
		return frame{}, false
	}
	kind := FrameKind(buf[0])
	if kind != FrameData && kind != FrameCheckpoint {
		return frame{}, false
	}
	if binary.LittleEndian.Uint32(buf[1:5]) != Magic {
		return frame{}, false
	}
	payloadLen := int(binary.LittleEndian.Uint32(buf[21:25]))
	if headerSize+payloadLen+crcSize > len(buf) {
		return frame{}, false
	}
	payload := buf[headerSize : headerSize+payloadLen]
	wantCRC := binary.LittleEndian.Uint32(buf[headerSize+payloadLen : headerSize+payloadLen+crcSize])
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return frame{}, false
	}
	return frame{
		kind:        kind,
		pageID:      binary.LittleEndian.Uint64(buf[5:13]),
		chunkIndex:  binary.LittleEndian.Uint32(buf[13:17]),
		totalChunks: binary.LittleEndian.Uint32(buf[17:21]),
		payload:     payload,
	}, true
}
