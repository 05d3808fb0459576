// Package dtype moves element data between raw bytes and typed Go slices.
//
// A [Kind] names one of the element types a MAT-file variable can hold.
// Decoding and encoding take an explicit byte order so that the Level 4,
// Level 5 and HDF5 codecs can share them.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-matio/internal/message"
)

// Char is a MATLAB character: one UTF-16 code unit.
type Char uint16

// Kind is an element type.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Bool
	CharKind
)

var kindNames = [...]string{"invalid", "int8", "uint8", "int16", "uint16", "int32", "uint32",
	"int64", "uint64", "float32", "float64", "bool", "char"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Size returns the stored width of one element in bytes.
func (k Kind) Size() int {
	switch k {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16, CharKind:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Of returns the kind of a typed slice, or Invalid.
func Of(slice any) Kind {
	switch slice.(type) {
	case []int8:
		return Int8
	case []uint8:
		return Uint8
	case []int16:
		return Int16
	case []uint16:
		return Uint16
	case []int32:
		return Int32
	case []uint32:
		return Uint32
	case []int64:
		return Int64
	case []uint64:
		return Uint64
	case []float32:
		return Float32
	case []float64:
		return Float64
	case []bool:
		return Bool
	case []Char:
		return CharKind
	}
	return Invalid
}

// Len returns the length of a typed slice, or 0 for nil and unknown values.
func Len(slice any) int {
	switch s := slice.(type) {
	case []int8:
		return len(s)
	case []uint8:
		return len(s)
	case []int16:
		return len(s)
	case []uint16:
		return len(s)
	case []int32:
		return len(s)
	case []uint32:
		return len(s)
	case []int64:
		return len(s)
	case []uint64:
		return len(s)
	case []float32:
		return len(s)
	case []float64:
		return len(s)
	case []bool:
		return len(s)
	case []Char:
		return len(s)
	}
	return 0
}

// Make returns a zeroed slice of kind k and length n.
func Make(k Kind, n int) any {
	switch k {
	case Int8:
		return make([]int8, n)
	case Uint8:
		return make([]uint8, n)
	case Int16:
		return make([]int16, n)
	case Uint16:
		return make([]uint16, n)
	case Int32:
		return make([]int32, n)
	case Uint32:
		return make([]uint32, n)
	case Int64:
		return make([]int64, n)
	case Uint64:
		return make([]uint64, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	case Bool:
		return make([]bool, n)
	case CharKind:
		return make([]Char, n)
	}
	return nil
}

// Clone returns a copy of a typed slice.
func Clone(slice any) any {
	if slice == nil {
		return nil
	}
	out := Make(Of(slice), Len(slice))
	copyAny(out, slice)
	return out
}

func copyAny(dst, src any) {
	switch d := dst.(type) {
	case []int8:
		copy(d, src.([]int8))
	case []uint8:
		copy(d, src.([]uint8))
	case []int16:
		copy(d, src.([]int16))
	case []uint16:
		copy(d, src.([]uint16))
	case []int32:
		copy(d, src.([]int32))
	case []uint32:
		copy(d, src.([]uint32))
	case []int64:
		copy(d, src.([]int64))
	case []uint64:
		copy(d, src.([]uint64))
	case []float32:
		copy(d, src.([]float32))
	case []float64:
		copy(d, src.([]float64))
	case []bool:
		copy(d, src.([]bool))
	case []Char:
		copy(d, src.([]Char))
	}
}

// Decode reads len(raw)/k.Size() elements of kind k stored in order.
func Decode(k Kind, order binary.ByteOrder, raw []byte) (any, error) {
	size := k.Size()
	if size == 0 {
		return nil, fmt.Errorf("cannot decode %s elements", k)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %s elements", len(raw), k)
	}
	n := len(raw) / size
	out := Make(k, n)
	switch s := out.(type) {
	case []int8:
		for i := range s {
			s[i] = int8(raw[i])
		}
	case []uint8:
		copy(s, raw)
	case []bool:
		for i := range s {
			s[i] = raw[i] != 0
		}
	case []int16:
		for i := range s {
			s[i] = int16(order.Uint16(raw[2*i:]))
		}
	case []uint16:
		for i := range s {
			s[i] = order.Uint16(raw[2*i:])
		}
	case []Char:
		for i := range s {
			s[i] = Char(order.Uint16(raw[2*i:]))
		}
	case []int32:
		for i := range s {
			s[i] = int32(order.Uint32(raw[4*i:]))
		}
	case []uint32:
		for i := range s {
			s[i] = order.Uint32(raw[4*i:])
		}
	case []float32:
		for i := range s {
			s[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
	case []int64:
		for i := range s {
			s[i] = int64(order.Uint64(raw[8*i:]))
		}
	case []uint64:
		for i := range s {
			s[i] = order.Uint64(raw[8*i:])
		}
	case []float64:
		for i := range s {
			s[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	}
	return out, nil
}

// Encode stores a typed slice in order. Booleans become single bytes and
// characters two-byte code units.
func Encode(slice any, order binary.ByteOrder) ([]byte, error) {
	k := Of(slice)
	if k == Invalid {
		return nil, fmt.Errorf("cannot encode %T", slice)
	}
	out := make([]byte, Len(slice)*k.Size())
	switch s := slice.(type) {
	case []int8:
		for i, v := range s {
			out[i] = uint8(v)
		}
	case []uint8:
		copy(out, s)
	case []bool:
		for i, v := range s {
			if v {
				out[i] = 1
			}
		}
	case []int16:
		for i, v := range s {
			order.PutUint16(out[2*i:], uint16(v))
		}
	case []uint16:
		for i, v := range s {
			order.PutUint16(out[2*i:], v)
		}
	case []Char:
		for i, v := range s {
			order.PutUint16(out[2*i:], uint16(v))
		}
	case []int32:
		for i, v := range s {
			order.PutUint32(out[4*i:], uint32(v))
		}
	case []uint32:
		for i, v := range s {
			order.PutUint32(out[4*i:], v)
		}
	case []float32:
		for i, v := range s {
			order.PutUint32(out[4*i:], math.Float32bits(v))
		}
	case []int64:
		for i, v := range s {
			order.PutUint64(out[8*i:], uint64(v))
		}
	case []uint64:
		for i, v := range s {
			order.PutUint64(out[8*i:], v)
		}
	case []float64:
		for i, v := range s {
			order.PutUint64(out[8*i:], math.Float64bits(v))
		}
	}
	return out, nil
}

// FromHDF5 maps an integer or float datatype to its kind.
func FromHDF5(dt *message.Datatype) (Kind, error) {
	if dt == nil {
		return Invalid, fmt.Errorf("nil datatype")
	}
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum:
		if dt.Class == message.ClassEnum {
			if dt.Base == nil {
				return Invalid, fmt.Errorf("enum without base type")
			}
			dt = dt.Base
		}
		kinds := map[uint32][2]Kind{1: {Uint8, Int8}, 2: {Uint16, Int16}, 4: {Uint32, Int32}, 8: {Uint64, Int64}}
		pair, ok := kinds[dt.Size]
		if !ok {
			return Invalid, fmt.Errorf("unsupported integer size %d", dt.Size)
		}
		if dt.Signed {
			return pair[1], nil
		}
		return pair[0], nil
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return Float32, nil
		case 8:
			return Float64, nil
		}
		return Invalid, fmt.Errorf("unsupported float size %d", dt.Size)
	}
	return Invalid, fmt.Errorf("datatype class %d is not numeric", dt.Class)
}

// ToHDF5 returns the little-endian HDF5 datatype that stores kind k.
func ToHDF5(k Kind) (*message.Datatype, error) {
	switch k {
	case Int8, Int16, Int32, Int64:
		return message.NewFixedPoint(uint32(k.Size()), true), nil
	case Uint8, Uint16, Uint32, Uint64, Bool, CharKind:
		return message.NewFixedPoint(uint32(k.Size()), false), nil
	case Float32, Float64:
		return message.NewFloat(uint32(k.Size())), nil
	}
	return nil, fmt.Errorf("no HDF5 datatype for %s", k)
}
