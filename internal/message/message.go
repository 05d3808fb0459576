// Package message parses and encodes the HDF5 object header messages a MAT
// 7.3 container uses: dataspace, datatype, layout, filter pipeline,
// attribute, link, link info, group info, symbol table and continuation.
// Anything else is kept as [Unknown].
package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
)

// Type identifies a header message.
type Type uint16

const (
	TypeNIL            Type = 0x0000
	TypeDataspace      Type = 0x0001
	TypeLinkInfo       Type = 0x0002
	TypeDatatype       Type = 0x0003
	TypeFillValueOld   Type = 0x0004
	TypeFillValue      Type = 0x0005
	TypeLink           Type = 0x0006
	TypeDataLayout     Type = 0x0008
	TypeGroupInfo      Type = 0x000A
	TypeFilterPipeline Type = 0x000B
	TypeAttribute      Type = 0x000C
	TypeContinuation   Type = 0x0010
	TypeSymbolTable    Type = 0x0011
	TypeModTime        Type = 0x0012
	TypeAttributeInfo  Type = 0x0015
)

// Message flag bits.
const (
	FlagConstant = 0x01
	FlagShared   = 0x02
)

// UndefinedAddress is the all-ones address for 8-byte offsets.
const UndefinedAddress = ^uint64(0)

// Message is any parsed header message.
type Message interface {
	Type() Type
}

// Encoder is a message that can be written into an object header.
type Encoder interface {
	Message
	Encode(w *binary.Writer) error
}

// Encode serializes m into a fresh buffer using cfg.
func Encode(m Encoder, cfg binary.Config) ([]byte, error) {
	w, buf := binary.NewBufferWriter(cfg)
	if err := m.Encode(w); err != nil {
		return nil, fmt.Errorf("encoding message 0x%04x: %w", uint16(m.Type()), err)
	}
	return buf.Bytes(), nil
}

// Parse decodes the body of a message. Shared messages are not resolved and
// come back as Unknown.
func Parse(typ Type, data []byte, flags uint8, cfg binary.Config) (Message, error) {
	if flags&FlagShared != 0 {
		return &Unknown{typ: typ, Data: data}, nil
	}
	switch typ {
	case TypeDataspace:
		return parseDataspace(data, cfg)
	case TypeDatatype:
		return parseDatatype(data)
	case TypeDataLayout:
		return parseDataLayout(data, cfg)
	case TypeFilterPipeline:
		return parseFilterPipeline(data)
	case TypeAttribute:
		return parseAttribute(data, cfg)
	case TypeLink:
		return parseLink(data, cfg)
	case TypeLinkInfo:
		return parseLinkInfo(data, cfg)
	case TypeSymbolTable:
		return parseSymbolTable(data, cfg)
	case TypeContinuation:
		return parseContinuation(data, cfg)
	}
	return &Unknown{typ: typ, Data: data}, nil
}

// Unknown carries the raw body of an unhandled message.
type Unknown struct {
	typ  Type
	Data []byte
}

func (m *Unknown) Type() Type { return m.typ }

// Continuation points at the next chunk of an object header.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

func parseContinuation(data []byte, cfg binary.Config) (*Continuation, error) {
	r := reader(data, cfg)
	off, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("continuation message: %w", err)
	}
	length, err := r.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("continuation message: %w", err)
	}
	return &Continuation{Offset: off, Length: length}, nil
}

// SymbolTable names the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, cfg binary.Config) (*SymbolTable, error) {
	r := reader(data, cfg)
	bt, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("symbol table message: %w", err)
	}
	heap, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("symbol table message: %w", err)
	}
	return &SymbolTable{BTreeAddress: bt, LocalHeapAddress: heap}, nil
}

func reader(data []byte, cfg binary.Config) *binary.Reader {
	return binary.NewReader(bytes.NewReader(data), cfg)
}

// cstring returns the bytes of b up to the first NUL.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func pad8(n int) int {
	return (n + 7) &^ 7
}
