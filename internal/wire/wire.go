// Package wire frames cached payloads with the generation that wrote them
// and the time they were fetched. The frame is validated strictly on read;
// anything that does not parse exactly is treated as corruption and the
// entry is deleted by the caller.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("shellcache: corrupt entry")
	magic4     = [...]byte{'S', 'H', 'L', 'C'}
)

// Entry: magic(4) | ver(1) | kind(1) | fetchedAt(u64 be, unix nanos) |
// genLen(u16 be) | gen | payloadLen(u32 be) | payload
// Trailing bytes are rejected.
type Entry struct {
	Generation string
	FetchedAt  int64 // unix nanos
	Payload    []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func Encode(e Entry) ([]byte, error) {
	if l := len(e.Generation); l == 0 || l > 0xFFFF {
		return nil, errors.New("shellcache: invalid generation length")
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 2 + len(e.Generation) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.FetchedAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Generation)))
	buf.Write(u2[:])
	buf.WriteString(e.Generation)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

func Decode(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	off := 6

	fetchedAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	glen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if glen <= 0 || glen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	gen := string(b[off : off+glen])
	off += glen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen > len(b)-off { // overflow-safe bound check
		return Entry{}, ErrCorrupt
	}
	if off+plen != len(b) {
		return Entry{}, ErrCorrupt // strict framing: no trailing bytes
	}

	return Entry{Generation: gen, FetchedAt: fetchedAt, Payload: b[off : off+plen]}, nil
}
