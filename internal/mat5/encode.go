package mat5

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/dtype"
	"github.com/robert-malhotra/go-matio/internal/matvar"
)

const defaultFieldNameLen = 32

// EncodeMatrix returns v as a little-endian miMATRIX element named name.
func EncodeMatrix(v *matvar.Var, name string) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	body, err := encodeBody(v, name)
	if err != nil {
		return nil, err
	}
	out := binary.LittleEndian.AppendUint32(nil, miMATRIX)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...), nil
}

func encodeBody(v *matvar.Var, name string) ([]byte, error) {
	word := uint32(v.Class)
	if v.Complex {
		word |= flagComplex
	}
	if v.Global {
		word |= flagGlobal
	}
	if v.Logical {
		word |= flagLogical
	}
	flags := binary.LittleEndian.AppendUint32(nil, word)
	flags = binary.LittleEndian.AppendUint32(flags, 0)
	body := appendElement(nil, miUINT32, flags)

	dims := make([]byte, 0, 4*len(v.Dims))
	for _, d := range v.Dims {
		dims = binary.LittleEndian.AppendUint32(dims, uint32(int32(d)))
	}
	body = appendElement(body, miINT32, dims)
	body = appendElement(body, miINT8, []byte(name))

	switch {
	case v.Class.Numeric() || v.Class == matvar.ClassChar:
		re, err := encodeData(v.Real, v.Kind())
		if err != nil {
			return nil, err
		}
		body = append(body, re...)
		if v.Complex {
			im, err := encodeData(v.Imag, v.Kind())
			if err != nil {
				return nil, err
			}
			body = append(body, im...)
		}

	case v.Class == matvar.ClassCell:
		for _, c := range v.Cells {
			el, err := EncodeMatrix(c, "")
			if err != nil {
				return nil, err
			}
			body = append(body, el...)
		}

	case v.Class == matvar.ClassStruct:
		nameLen := defaultFieldNameLen
		for _, f := range v.Fields {
			if len(f)+1 > nameLen {
				nameLen = len(f) + 1
			}
		}
		body = appendElement(body, miINT32, binary.LittleEndian.AppendUint32(nil, uint32(nameLen)))
		names := make([]byte, nameLen*len(v.Fields))
		for i, f := range v.Fields {
			copy(names[i*nameLen:], f)
		}
		body = appendElement(body, miINT8, names)
		for _, c := range v.Values {
			el, err := EncodeMatrix(c, "")
			if err != nil {
				return nil, err
			}
			body = append(body, el...)
		}

	default:
		return nil, fmt.Errorf("%w: class %s", ErrUnsupported, v.Class)
	}
	return body, nil
}

// encodeData stores a payload in its own type. A nil payload is written as
// an empty element of kind k.
func encodeData(vals any, k dtype.Kind) ([]byte, error) {
	if vals == nil {
		vals = dtype.Make(k, 0)
	}
	raw, err := dtype.Encode(vals, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	return appendElement(nil, miType(k), raw), nil
}
