// Package transport implements continuation migration (§6): framing a
// codec-encoded Function snapshot for transfer to another host. Each frame
// is tagged with a migration UUID and a content digest, then
// zstd-compressed, mirroring the migrate-and-resume flow of
// original_source/vmm/src/client.rs and runtime.rs (the out-of-scope
// 9P/vsock fabric's contract only — no network transport is implemented
// here, just the wire framing a real one would carry).
package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// magic identifies an arcanum migration frame, guarding against feeding a
// transport frame to codec.Decode directly (or vice versa).
const magic = "ARCM"

// frameHeader precedes the compressed payload:
//
//	magic[4] | version byte | migration id [16] | digest [32] | length u64
const headerLen = len(magic) + 1 + 16 + 32 + 8

const version byte = 1

// Frame is a migration-ready envelope around a codec-encoded Function
// snapshot.
type Frame struct {
	ID     uuid.UUID
	Digest [32]byte
	// Snapshot is the codec.Encode output this frame carries (uncompressed).
	Snapshot []byte
}

var encoder, _ = zstd.NewWriter(nil)

// NewFrame wraps a codec-encoded snapshot with a fresh migration ID and its
// content digest. Two frames built from byte-identical snapshots carry the
// same digest, letting a receiving host recognize a no-op migration (the
// same continuation it already holds) without decoding the payload.
func NewFrame(snapshot []byte) Frame {
	return Frame{
		ID:       uuid.New(),
		Digest:   blake2b.Sum256(snapshot),
		Snapshot: snapshot,
	}
}

// Marshal compresses the frame and prefixes it with its header.
func (f Frame) Marshal() []byte {
	compressed := encoder.EncodeAll(f.Snapshot, nil)

	buf := make([]byte, 0, headerLen+len(compressed))
	buf = append(buf, magic...)
	buf = append(buf, version)
	idBytes, _ := f.ID.MarshalBinary()
	buf = append(buf, idBytes...)
	buf = append(buf, f.Digest[:]...)

	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(compressed)))
	buf = append(buf, length[:]...)

	return append(buf, compressed...)
}

// Unmarshal parses and decompresses a frame previously produced by Marshal,
// verifying its digest against the decompressed snapshot.
func Unmarshal(buf []byte) (Frame, error) {
	if len(buf) < headerLen {
		return Frame{}, fmt.Errorf("transport: frame too short: %d bytes", len(buf))
	}

	if string(buf[:len(magic)]) != magic {
		return Frame{}, fmt.Errorf("transport: not an arcanum migration frame")
	}

	pos := len(magic)

	if buf[pos] != version {
		return Frame{}, fmt.Errorf("transport: unsupported frame version %d", buf[pos])
	}
	pos++

	var id uuid.UUID
	if err := id.UnmarshalBinary(buf[pos : pos+16]); err != nil {
		return Frame{}, fmt.Errorf("transport: migration id: %w", err)
	}
	pos += 16

	var digest [32]byte
	copy(digest[:], buf[pos:pos+32])
	pos += 32

	length := binary.LittleEndian.Uint64(buf[pos : pos+8])
	pos += 8

	if uint64(len(buf)-pos) != length {
		return Frame{}, fmt.Errorf("transport: length mismatch: header says %d, have %d", length, len(buf)-pos)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return Frame{}, fmt.Errorf("transport: %w", err)
	}
	defer decoder.Close()

	snapshot, err := decoder.DecodeAll(buf[pos:], nil)
	if err != nil {
		return Frame{}, fmt.Errorf("transport: decompress: %w", err)
	}

	if got := blake2b.Sum256(snapshot); got != digest {
		return Frame{}, fmt.Errorf("transport: digest mismatch: snapshot corrupted in transit")
	}

	return Frame{ID: id, Digest: digest, Snapshot: snapshot}, nil
}
