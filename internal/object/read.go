package object

import (
	"bytes"
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/message"
)

// maxBlocks bounds the number of continuation blocks followed per header.
const maxBlocks = 1024

type block struct {
	offset uint64
	length uint64
}

// Read parses the object header at address, following continuations.
func Read(r *binpkg.Reader, address uint64) (*Header, error) {
	peek, err := r.At(int64(address)).ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", address, err)
	}
	switch {
	case bytes.Equal(peek, signatureHeader):
		return readV2(r, address)
	case peek[0] == 1:
		return readV1(r, address)
	}
	return nil, fmt.Errorf("%w at address %d", ErrInvalidHeader, address)
}

/*
Version 1 prefix, 16 bytes:

	0   version (1), reserved
	2   number of messages
	4   object reference count
	8   size of the first message block
	12  reserved, aligning messages to 8 bytes

Each message: type (2), size (2), flags (1), reserved (3), data padded to 8.
*/
func readV1(r *binpkg.Reader, address uint64) (*Header, error) {
	prefix, err := r.At(int64(address)).ReadBytes(16)
	if err != nil {
		return nil, fmt.Errorf("object header v1 at %d: %w", address, err)
	}
	h := &Header{Version: 1, Address: address}
	size := uint64(binary.LittleEndian.Uint32(prefix[8:12]))

	queue := []block{{address + 16, size}}
	for n := 0; len(queue) > 0; n++ {
		if n == maxBlocks {
			return nil, fmt.Errorf("%w: too many continuation blocks at %d", ErrInvalidHeader, address)
		}
		b := queue[0]
		queue = queue[1:]
		data, err := r.At(int64(b.offset)).ReadBytes(int(b.length))
		if err != nil {
			return nil, fmt.Errorf("object header v1 block at %d: %w", b.offset, err)
		}
		more, err := h.decodeV1(data, r.Config())
		if err != nil {
			return nil, fmt.Errorf("object header at %d: %w", address, err)
		}
		queue = append(queue, more...)
	}
	return h, nil
}

func (h *Header) decodeV1(data []byte, cfg binpkg.Config) ([]block, error) {
	le := binary.LittleEndian
	var conts []block
	for pos := 0; pos+8 <= len(data); {
		typ := message.Type(le.Uint16(data[pos:]))
		size := int(le.Uint16(data[pos+2:]))
		flags := data[pos+4]
		pos += 8
		if pos+size > len(data) {
			return nil, fmt.Errorf("%w: message 0x%04x overruns its block", ErrInvalidHeader, uint16(typ))
		}
		body := data[pos : pos+size]
		pos += (size + 7) &^ 7

		c, err := h.add(typ, flags, body, cfg)
		if err != nil {
			return nil, err
		}
		if c != nil {
			conts = append(conts, *c)
		}
	}
	return conts, nil
}

/*
Version 2 prefix:

	0   "OHDR", version (2), flags
	6   four timestamps if flags bit 5
	    max compact / min dense attribute counts if flags bit 4
	    chunk 0 size, 1 << (flags & 3) bytes

Each message: type (1), size (2), flags (1), creation order (2) if flags
bit 2, data. A chunk ends with a lookup3 checksum; continuation chunks start
with "OCHK".
*/
func readV2(r *binpkg.Reader, address uint64) (*Header, error) {
	head, err := r.At(int64(address)).ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("object header v2 at %d: %w", address, err)
	}
	if head[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[4])
	}
	flags := head[5]
	h := &Header{Version: 2, Address: address, Flags: flags}

	prefix := 6
	if flags&0x20 != 0 {
		prefix += 16
	}
	if flags&0x10 != 0 {
		prefix += 4
	}
	width := 1 << (flags & 0x03)
	sizeField, err := r.At(int64(address) + int64(prefix)).ReadBytes(width)
	if err != nil {
		return nil, fmt.Errorf("object header v2 at %d: %w", address, err)
	}
	prefix += width
	chunk0 := int(binpkg.DecodeUint(binary.LittleEndian, sizeField))

	data, err := r.At(int64(address)).ReadBytes(prefix + chunk0 + 4)
	if err != nil {
		return nil, fmt.Errorf("object header v2 at %d: %w", address, err)
	}
	if err := verify(data); err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}

	ordered := flags&0x04 != 0
	queue, err := h.decodeV2(data[prefix:prefix+chunk0], ordered, r.Config())
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}
	for n := 0; len(queue) > 0; n++ {
		if n == maxBlocks {
			return nil, fmt.Errorf("%w: too many continuation blocks at %d", ErrInvalidHeader, address)
		}
		b := queue[0]
		queue = queue[1:]
		chunk, err := r.At(int64(b.offset)).ReadBytes(int(b.length))
		if err != nil {
			return nil, fmt.Errorf("object header v2 block at %d: %w", b.offset, err)
		}
		if len(chunk) < 8 || !bytes.Equal(chunk[:4], signatureContinuation) {
			return nil, fmt.Errorf("%w: bad continuation signature at %d", ErrInvalidHeader, b.offset)
		}
		if err := verify(chunk); err != nil {
			return nil, fmt.Errorf("continuation block at %d: %w", b.offset, err)
		}
		more, err := h.decodeV2(chunk[4:len(chunk)-4], ordered, r.Config())
		if err != nil {
			return nil, fmt.Errorf("object header at %d: %w", address, err)
		}
		queue = append(queue, more...)
	}
	return h, nil
}

func (h *Header) decodeV2(data []byte, ordered bool, cfg binpkg.Config) ([]block, error) {
	hsz := 4
	if ordered {
		hsz += 2
	}
	var conts []block
	// A trailing gap smaller than a message header is allowed.
	for pos := 0; pos+hsz <= len(data); {
		typ := message.Type(data[pos])
		size := int(binary.LittleEndian.Uint16(data[pos+1:]))
		flags := data[pos+3]
		pos += hsz
		if pos+size > len(data) {
			return nil, fmt.Errorf("%w: message 0x%02x overruns its chunk", ErrInvalidHeader, uint16(typ))
		}
		c, err := h.add(typ, flags, data[pos:pos+size], cfg)
		if err != nil {
			return nil, err
		}
		if c != nil {
			conts = append(conts, *c)
		}
		pos += size
	}
	return conts, nil
}

func (h *Header) add(typ message.Type, flags uint8, body []byte, cfg binpkg.Config) (*block, error) {
	if typ == message.TypeNIL {
		return nil, nil
	}
	msg, err := message.Parse(typ, body, flags, cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := msg.(*message.Continuation); ok {
		return &block{c.Offset, c.Length}, nil
	}
	h.Messages = append(h.Messages, msg)
	return nil, nil
}

func verify(chunk []byte) error {
	n := len(chunk) - 4
	stored := binary.LittleEndian.Uint32(chunk[n:])
	if binpkg.Lookup3Checksum(chunk[:n]) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
