package mat5

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/robert-malhotra/go-matio/internal/dtype"
	"github.com/robert-malhotra/go-matio/internal/matvar"
)

const maxDepth = 64

// inflate decompresses the payload of an miCOMPRESSED element.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("miCOMPRESSED: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("miCOMPRESSED: %w", err)
	}
	return out, nil
}

// unwrap returns the miMATRIX payload of a top-level element.
func unwrap(el element, order binary.ByteOrder) ([]byte, error) {
	switch el.typ {
	case miMATRIX:
		return el.data, nil
	case miCOMPRESSED:
		raw, err := inflate(el.data)
		if err != nil {
			return nil, err
		}
		inner, _, err := readElement(raw, order)
		if err != nil {
			return nil, err
		}
		if inner.typ != miMATRIX {
			return nil, fmt.Errorf("compressed element holds type %d, not miMATRIX", inner.typ)
		}
		return inner.data, nil
	}
	return nil, fmt.Errorf("%w: top-level element type %d", ErrUnsupported, el.typ)
}

// matrixHeader is the part of an miMATRIX element every class shares.
type matrixHeader struct {
	class matvar.Class
	flags uint32
	dims  []int
	name  string
	rest  []byte
}

func decodeMatrixHeader(b []byte, order binary.ByteOrder) (*matrixHeader, error) {
	flags, b, err := readElement(b, order)
	if err != nil {
		return nil, fmt.Errorf("array flags: %w", err)
	}
	if flags.typ != miUINT32 || len(flags.data) < 8 {
		return nil, fmt.Errorf("array flags element has type %d and %d bytes", flags.typ, len(flags.data))
	}
	word := order.Uint32(flags.data)
	h := &matrixHeader{class: matvar.Class(word & 0xFF), flags: word}

	dims, b, err := readElement(b, order)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	if dims.typ != miINT32 || len(dims.data)%4 != 0 {
		return nil, fmt.Errorf("dimensions element has type %d and %d bytes", dims.typ, len(dims.data))
	}
	for i := 0; i < len(dims.data); i += 4 {
		d := int32(order.Uint32(dims.data[i:]))
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d", d)
		}
		h.dims = append(h.dims, int(d))
	}

	name, b, err := readElement(b, order)
	if err != nil {
		return nil, fmt.Errorf("array name: %w", err)
	}
	h.name = string(name.data)
	h.rest = b
	return h, nil
}

// decodeMatrix decodes the payload of an miMATRIX element. An empty payload
// is an empty double, which MATLAB writes for unset cells.
func decodeMatrix(b []byte, order binary.ByteOrder, depth int) (*matvar.Var, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}
	if len(b) == 0 {
		return matvar.NewEmpty(""), nil
	}
	h, err := decodeMatrixHeader(b, order)
	if err != nil {
		return nil, err
	}
	v := &matvar.Var{
		Name:    h.name,
		Class:   h.class,
		Dims:    h.dims,
		Global:  h.flags&flagGlobal != 0,
		Complex: h.flags&flagComplex != 0,
		Logical: h.flags&flagLogical != 0,
	}
	if len(v.Dims) < 2 {
		return nil, fmt.Errorf("%q has %d dimensions", v.Name, len(v.Dims))
	}

	switch {
	case v.Class.Numeric():
		err = decodeNumeric(v, h.rest, order)
	case v.Class == matvar.ClassChar:
		err = decodeChar(v, h.rest, order)
	case v.Class == matvar.ClassCell:
		err = decodeCell(v, h.rest, order, depth)
	case v.Class == matvar.ClassStruct:
		err = decodeStruct(v, h.rest, order, depth)
	default:
		err = fmt.Errorf("%w: class %s", ErrUnsupported, v.Class)
	}
	if err != nil {
		return nil, fmt.Errorf("%q: %w", v.Name, err)
	}
	return v, nil
}

// decodeData converts one numeric element to kind k.
func decodeData(el element, order binary.ByteOrder, k dtype.Kind) (any, error) {
	src, ok := miKinds[el.typ]
	if !ok {
		return nil, fmt.Errorf("element type %d is not numeric", el.typ)
	}
	vals, err := dtype.Decode(src, order, el.data)
	if err != nil {
		return nil, err
	}
	return dtype.Convert(vals, k)
}

func decodeNumeric(v *matvar.Var, b []byte, order binary.ByteOrder) error {
	if v.Logical && v.Class != matvar.ClassUint8 {
		v.Class = matvar.ClassUint8
	}
	k := v.Kind()
	re, b, err := readElement(b, order)
	if err != nil {
		return fmt.Errorf("real part: %w", err)
	}
	if v.Real, err = decodeData(re, order, k); err != nil {
		return fmt.Errorf("real part: %w", err)
	}
	if v.Complex {
		im, _, err := readElement(b, order)
		if err != nil {
			return fmt.Errorf("imaginary part: %w", err)
		}
		if v.Imag, err = decodeData(im, order, k); err != nil {
			return fmt.Errorf("imaginary part: %w", err)
		}
	}
	return v.Validate()
}

func decodeChar(v *matvar.Var, b []byte, order binary.ByteOrder) error {
	el, _, err := readElement(b, order)
	if err != nil {
		return err
	}
	var units []uint16
	switch el.typ {
	case miUTF8:
		if !utf8.Valid(el.data) {
			return fmt.Errorf("invalid UTF-8 character data")
		}
		units = utf16.Encode([]rune(string(el.data)))
	case miUTF32:
		raw, err := dtype.Decode(dtype.Uint32, order, el.data)
		if err != nil {
			return err
		}
		runes := make([]rune, 0, dtype.Len(raw))
		for _, r := range raw.([]uint32) {
			runes = append(runes, rune(r))
		}
		units = utf16.Encode(runes)
	default:
		vals, err := decodeData(el, order, dtype.Uint16)
		if err != nil {
			return err
		}
		units = vals.([]uint16)
	}
	chars := make([]matvar.Char, len(units))
	for i, u := range units {
		chars[i] = matvar.Char(u)
	}
	v.Real = chars
	v.Complex = false
	return v.Validate()
}

// tagSize is the smallest encoding of a cell or field: a bare element tag.
const tagSize = 8

func decodeCell(v *matvar.Var, b []byte, order binary.ByteOrder, depth int) error {
	n, err := matvar.ElementCount(v.Dims, len(b)/tagSize)
	if err != nil {
		return fmt.Errorf("%w: cell %v", ErrNotMAT5, err)
	}
	v.Cells = make([]*matvar.Var, n)
	for i := range v.Cells {
		el, rest, err := readElement(b, order)
		if err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		if el.typ != miMATRIX {
			return fmt.Errorf("cell %d has element type %d", i, el.typ)
		}
		if v.Cells[i], err = decodeMatrix(el.data, order, depth+1); err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		b = rest
	}
	return nil
}

func decodeStruct(v *matvar.Var, b []byte, order binary.ByteOrder, depth int) error {
	lenEl, b, err := readElement(b, order)
	if err != nil {
		return fmt.Errorf("field name length: %w", err)
	}
	if lenEl.typ != miINT32 || len(lenEl.data) != 4 {
		return fmt.Errorf("field name length element has type %d", lenEl.typ)
	}
	nameLen := int(order.Uint32(lenEl.data))

	namesEl, b, err := readElement(b, order)
	if err != nil {
		return fmt.Errorf("field names: %w", err)
	}
	if nameLen > 0 {
		for i := 0; i+nameLen <= len(namesEl.data); i += nameLen {
			name := namesEl.data[i : i+nameLen]
			if j := bytes.IndexByte(name, 0); j >= 0 {
				name = name[:j]
			}
			v.Fields = append(v.Fields, string(name))
		}
	}

	if len(v.Fields) == 0 {
		v.Values = []*matvar.Var{}
		return nil
	}
	n, err := matvar.ElementCount(v.Dims, len(b)/tagSize/len(v.Fields))
	if err != nil {
		return fmt.Errorf("%w: struct %v", ErrNotMAT5, err)
	}
	v.Values = make([]*matvar.Var, n*len(v.Fields))
	for i := range v.Values {
		el, rest, err := readElement(b, order)
		if err != nil {
			return fmt.Errorf("field %q: %w", v.Fields[i%len(v.Fields)], err)
		}
		if v.Values[i], err = decodeMatrix(el.data, order, depth+1); err != nil {
			return fmt.Errorf("field %q: %w", v.Fields[i%len(v.Fields)], err)
		}
		v.Values[i].Name = v.Fields[i%len(v.Fields)]
		b = rest
	}
	return nil
}
