package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
)

// DatatypeClass is the HDF5 datatype class.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// ByteOrder of a numeric datatype.
type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

// StringPadding of a fixed-length string.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet of a string.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Class   DatatypeClass
	Version uint8
	Size    uint32

	// Fixed and floating point.
	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	// Strings.
	Padding StringPadding
	Charset CharacterSet

	// Compound members, in declaration order.
	Members []CompoundMember

	// Base is the element type of variable-length, array and enum types.
	Base *Datatype

	// VarLenString is set for variable-length strings as opposed to sequences.
	VarLenString bool

	ArrayDims []uint32

	// RefType is 0 for object references and 1 for region references.
	RefType uint8
}

// CompoundMember is one field of a compound type.
type CompoundMember struct {
	Name   string
	Offset uint32
	Type   *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// Order returns the encoding/binary byte order of a numeric type.
func (m *Datatype) Order() binary.ByteOrder {
	if m.ByteOrder == OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Member returns the compound member with the given name.
func (m *Datatype) Member(name string) (CompoundMember, bool) {
	for _, mem := range m.Members {
		if mem.Name == name {
			return mem, true
		}
	}
	return CompoundMember{}, false
}

func parseDatatype(data []byte) (*Datatype, error) {
	dt, _, err := decodeDatatype(data)
	return dt, err
}

// decodeDatatype parses one datatype and reports how many bytes it used.
func decodeDatatype(data []byte) (*Datatype, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("datatype message too short: %d bytes", len(data))
	}
	bits := uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16
	dt := &Datatype{
		Class:   DatatypeClass(data[0] & 0x0F),
		Version: data[0] >> 4,
		Size:    binary.LittleEndian.Uint32(data[4:8]),
	}
	props := data[8:]
	n := 0

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = bits&0x08 != 0
		if len(props) < 4 {
			return nil, 0, fmt.Errorf("fixed-point properties truncated")
		}
		dt.BitOffset = binary.LittleEndian.Uint16(props[0:2])
		dt.BitPrecision = binary.LittleEndian.Uint16(props[2:4])
		n = 4

	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = true
		if len(props) < 12 {
			return nil, 0, fmt.Errorf("floating-point properties truncated")
		}
		dt.BitOffset = binary.LittleEndian.Uint16(props[0:2])
		dt.BitPrecision = binary.LittleEndian.Uint16(props[2:4])
		n = 12

	case ClassTime:
		n = 2

	case ClassString:
		dt.Padding = StringPadding(bits & 0x0F)
		dt.Charset = CharacterSet((bits >> 4) & 0x0F)

	case ClassOpaque:
		n = int(bits & 0xFF)

	case ClassReference:
		dt.RefType = uint8(bits & 0x0F)

	case ClassCompound:
		count := int(bits & 0xFFFF)
		for i := 0; i < count; i++ {
			mem, used, err := decodeMember(props[n:], dt.Version, dt.Size)
			if err != nil {
				return nil, 0, fmt.Errorf("compound member %d: %w", i, err)
			}
			dt.Members = append(dt.Members, mem)
			n += used
		}

	case ClassEnum:
		base, used, err := decodeDatatype(props)
		if err != nil {
			return nil, 0, fmt.Errorf("enum base: %w", err)
		}
		dt.Base = base
		n = used
		count := int(bits & 0xFFFF)
		for i := 0; i < count; i++ {
			end := n
			for end < len(props) && props[end] != 0 {
				end++
			}
			if dt.Version < 3 {
				n += pad8(end - n + 1)
			} else {
				n = end + 1
			}
		}
		n += count * int(base.Size)

	case ClassVarLen:
		dt.VarLenString = bits&0x0F == 1
		dt.Padding = StringPadding((bits >> 4) & 0x0F)
		dt.Charset = CharacterSet((bits >> 8) & 0x0F)
		base, used, err := decodeDatatype(props)
		if err != nil {
			return nil, 0, fmt.Errorf("variable-length base: %w", err)
		}
		dt.Base = base
		n = used

	case ClassArray:
		if len(props) < 1 {
			return nil, 0, fmt.Errorf("array properties truncated")
		}
		rank := int(props[0])
		n = 1
		if dt.Version < 3 {
			n = 4
		}
		for i := 0; i < rank && n+4 <= len(props); i++ {
			dt.ArrayDims = append(dt.ArrayDims, binary.LittleEndian.Uint32(props[n:]))
			n += 4
		}
		if dt.Version < 3 {
			n += 4 * rank // permutation indices
		}
		if n > len(props) {
			return nil, 0, fmt.Errorf("array properties truncated")
		}
		base, used, err := decodeDatatype(props[n:])
		if err != nil {
			return nil, 0, fmt.Errorf("array base: %w", err)
		}
		dt.Base = base
		n += used

	default:
		return nil, 0, fmt.Errorf("unsupported datatype class %d", dt.Class)
	}

	if n > len(props) {
		return nil, 0, fmt.Errorf("datatype class %d properties truncated", dt.Class)
	}
	return dt, 8 + n, nil
}

func decodeMember(data []byte, version uint8, size uint32) (CompoundMember, int, error) {
	var mem CompoundMember
	end := 0
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end >= len(data) {
		return mem, 0, fmt.Errorf("member name not terminated")
	}
	mem.Name = string(data[:end])

	n := end + 1
	if version < 3 {
		n = pad8(n)
	}

	width := 4
	if version >= 3 {
		width = memberOffsetSize(size)
	}
	if n+width > len(data) {
		return mem, 0, fmt.Errorf("member %q truncated", mem.Name)
	}
	mem.Offset = uint32(binpkg.DecodeUint(binary.LittleEndian, data[n:n+width]))
	n += width

	if version == 1 {
		// dimensionality, reserved, permutation, reserved, four dimension sizes
		n += 1 + 3 + 4 + 4 + 16
	}
	if n > len(data) {
		return mem, 0, fmt.Errorf("member %q truncated", mem.Name)
	}
	typ, used, err := decodeDatatype(data[n:])
	if err != nil {
		return mem, 0, err
	}
	mem.Type = typ
	return mem, n + used, nil
}

func memberOffsetSize(size uint32) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFF:
		return 3
	}
	return 4
}

// Encode writes the datatype. Compound types use version 3, everything else
// version 1.
func (m *Datatype) Encode(w *binpkg.Writer) error {
	version := uint8(1)
	var bits uint32
	switch m.Class {
	case ClassFixedPoint:
		bits = uint32(m.ByteOrder)
		if m.Signed {
			bits |= 0x08
		}
	case ClassFloatPoint:
		// implied mantissa MSB, sign bit at the top
		bits = uint32(m.ByteOrder) | 0x20 | (m.Size*8-1)<<8
	case ClassString:
		bits = uint32(m.Padding) | uint32(m.Charset)<<4
	case ClassReference:
		bits = uint32(m.RefType)
	case ClassVarLen:
		if m.VarLenString {
			bits = 1
		}
		bits |= uint32(m.Padding)<<4 | uint32(m.Charset)<<8
	case ClassCompound:
		version = 3
		bits = uint32(len(m.Members))
	default:
		return fmt.Errorf("cannot encode datatype class %d", m.Class)
	}

	head := []byte{uint8(m.Class) | version<<4, uint8(bits), uint8(bits >> 8), uint8(bits >> 16)}
	if err := w.WriteBytes(head); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Size); err != nil {
		return err
	}

	switch m.Class {
	case ClassFixedPoint:
		if err := w.WriteUint16(m.BitOffset); err != nil {
			return err
		}
		return w.WriteUint16(uint16(m.Size * 8))
	case ClassFloatPoint:
		return w.WriteBytes(floatProperties(m.Size))
	case ClassVarLen:
		return m.Base.Encode(w)
	case ClassCompound:
		width := memberOffsetSize(m.Size)
		for _, mem := range m.Members {
			if err := w.WriteBytes(append([]byte(mem.Name), 0)); err != nil {
				return err
			}
			if err := w.WriteUintN(uint64(mem.Offset), width); err != nil {
				return err
			}
			if err := mem.Type.Encode(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// floatProperties returns the IEEE 754 bit layout for 4- and 8-byte floats.
func floatProperties(size uint32) []byte {
	if size == 4 {
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	}
	return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xFF, 0x03, 0, 0}
}

// NewFixedPoint returns a little-endian integer type.
func NewFixedPoint(size uint32, signed bool) *Datatype {
	return &Datatype{
		Class:        ClassFixedPoint,
		Size:         size,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloat returns a little-endian IEEE float type of 4 or 8 bytes.
func NewFloat(size uint32) *Datatype {
	return &Datatype{
		Class:        ClassFloatPoint,
		Size:         size,
		Signed:       true,
		BitPrecision: uint16(size * 8),
	}
}

// NewString returns a fixed-length ASCII string type.
func NewString(size uint32, padding StringPadding) *Datatype {
	return &Datatype{Class: ClassString, Size: size, Padding: padding}
}

// NewObjectReference returns the object reference type.
func NewObjectReference(offsetSize int) *Datatype {
	return &Datatype{Class: ClassReference, Size: uint32(offsetSize)}
}

// NewVarLenSequence returns a variable-length sequence of base. On disk an
// element is a length, a global heap collection address and an index.
func NewVarLenSequence(base *Datatype, offsetSize int) *Datatype {
	return &Datatype{
		Class: ClassVarLen,
		Size:  uint32(4 + offsetSize + 4),
		Base:  base,
	}
}

// NewCompound returns a compound type with the given members.
func NewCompound(size uint32, members ...CompoundMember) *Datatype {
	return &Datatype{Class: ClassCompound, Size: size, Members: members}
}
