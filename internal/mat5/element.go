package mat5

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/dtype"
)

// Data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16
	miUTF16      = 17
	miUTF32      = 18
)

// Array flag bits.
const (
	flagComplex = 0x0800
	flagGlobal  = 0x0400
	flagLogical = 0x0200
)

var miKinds = map[uint32]dtype.Kind{
	miINT8: dtype.Int8, miUINT8: dtype.Uint8,
	miINT16: dtype.Int16, miUINT16: dtype.Uint16,
	miINT32: dtype.Int32, miUINT32: dtype.Uint32,
	miINT64: dtype.Int64, miUINT64: dtype.Uint64,
	miSINGLE: dtype.Float32, miDOUBLE: dtype.Float64,
	miUTF8: dtype.Uint8, miUTF16: dtype.Uint16, miUTF32: dtype.Uint32,
}

// miType returns the element type used to write kind k.
func miType(k dtype.Kind) uint32 {
	switch k {
	case dtype.Bool:
		return miUINT8
	case dtype.CharKind:
		return miUINT16
	}
	for t, mk := range miKinds {
		if mk == k && t < miUTF8 {
			return t
		}
	}
	return 0
}

type element struct {
	typ  uint32
	data []byte
}

// readElement splits the first element off b. A missing final pad is
// tolerated.
func readElement(b []byte, order binary.ByteOrder) (element, []byte, error) {
	if len(b) < 8 {
		return element{}, nil, fmt.Errorf("data element tag needs 8 bytes, have %d", len(b))
	}
	tag := order.Uint32(b)
	if n := tag >> 16; n != 0 {
		if n > 4 {
			return element{}, nil, fmt.Errorf("small data element claims %d bytes", n)
		}
		return element{typ: tag & 0xFFFF, data: b[4 : 4+n]}, b[8:], nil
	}
	n := uint64(order.Uint32(b[4:]))
	if n > uint64(len(b)-8) {
		return element{}, nil, fmt.Errorf("data element of type %d claims %d bytes, have %d", tag, n, len(b)-8)
	}
	next := 8 + pad8(n)
	if next > uint64(len(b)) {
		next = uint64(len(b))
	}
	return element{typ: tag, data: b[8 : 8+n]}, b[next:], nil
}

func pad8(n uint64) uint64 {
	return (n + 7) &^ 7
}

// appendElement appends a little-endian element, using the small format for
// one to four bytes of data.
func appendElement(out []byte, typ uint32, data []byte) []byte {
	if n := len(data); n > 0 && n <= 4 {
		out = binary.LittleEndian.AppendUint32(out, uint32(n)<<16|typ)
		out = append(out, data...)
		return append(out, make([]byte, 4-n)...)
	}
	out = binary.LittleEndian.AppendUint32(out, typ)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	return append(out, make([]byte, pad8(uint64(len(data)))-uint64(len(data)))...)
}
