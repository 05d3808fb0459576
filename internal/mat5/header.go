// Package mat5 reads and writes Level 5 MAT-files.
//
// A file is a 128-byte header followed by data elements. Each top-level
// element is one variable, stored as miMATRIX or as a zlib-compressed
// miCOMPRESSED wrapping one. Both byte orders are read; writing always
// produces uncompressed little-endian elements.
package mat5

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderSize = 128
	textSize   = 116

	// Version5 marks a Level 5 file, Version73 the HDF5-based layout that
	// reuses the same header in its user block.
	Version5  = 0x0100
	Version73 = 0x0200
)

var (
	ErrNotMAT5     = errors.New("not a Level 5 MAT-file")
	ErrNotFound    = errors.New("variable not found")
	ErrUnsupported = errors.New("unsupported")
	ErrExists      = errors.New("variable already exists")
	ErrReadOnly    = errors.New("file is not writable")
)

// Header is the decoded file header.
type Header struct {
	Text    string
	Subsys  [8]byte
	Version uint16
	Order   binary.ByteOrder
}

// DecodeHeader parses the first 128 bytes of a file. The endian indicator
// decides the byte order of the version field and of everything after it.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes", ErrNotMAT5, len(b))
	}
	h := Header{Text: string(bytes.TrimRight(b[:textSize], " \x00"))}
	copy(h.Subsys[:], b[textSize:textSize+8])
	switch string(b[126:128]) {
	case "IM":
		h.Order = binary.LittleEndian
	case "MI":
		h.Order = binary.BigEndian
	default:
		return Header{}, fmt.Errorf("%w: bad endian indicator %q", ErrNotMAT5, b[126:128])
	}
	h.Version = h.Order.Uint16(b[124:126])
	return h, nil
}

// EncodeHeader returns a little-endian header holding text, truncated or
// space-padded to 116 bytes.
func EncodeHeader(text string, version uint16) []byte {
	b := make([]byte, HeaderSize)
	n := copy(b[:textSize], text)
	for i := n; i < textSize; i++ {
		b[i] = ' '
	}
	binary.LittleEndian.PutUint16(b[124:], version)
	copy(b[126:], "IM")
	return b
}
