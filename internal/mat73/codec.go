package mat73

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/robert-malhotra/go-matio/internal/dtype"
	"github.com/robert-malhotra/go-matio/internal/h5"
	"github.com/robert-malhotra/go-matio/internal/matvar"
	"github.com/robert-malhotra/go-matio/internal/message"
)

// Attribute names MATLAB tags its objects with.
const (
	attrClass     = "MATLAB_class"
	attrIntDecode = "MATLAB_int_decode"
	attrEmpty     = "MATLAB_empty"
	attrGlobal    = "MATLAB_global"
	attrFields    = "MATLAB_fields"
	attrSparse    = "MATLAB_sparse"
)

const maxDepth = 64

// order is the byte order of everything this package writes.
var order = binary.LittleEndian

// Write stores v under its name in the root group.
func (f *File) Write(v *matvar.Var) error {
	if !f.h5.Writable() {
		return h5.ErrReadOnly
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if err := matvar.CheckName(v.Name); err != nil {
		return err
	}
	if f.h5.Root().Has(v.Name) {
		return fmt.Errorf("%w: %q", ErrExists, v.Name)
	}
	addr, err := f.encode(v, v.Global)
	if err != nil {
		return fmt.Errorf("writing %q: %w", v.Name, err)
	}
	if err := f.h5.Root().AddLink(v.Name, addr); err != nil {
		return err
	}
	return f.h5.Flush()
}

// encode writes v and everything it references, returning its header address.
func (f *File) encode(v *matvar.Var, global bool) (uint64, error) {
	attrs := []*message.Attribute{h5.StringAttribute(attrClass, v.ClassName())}
	if global {
		attrs = append(attrs, h5.IntAttribute(attrGlobal, 1, 1, false))
	}
	switch {
	case v.Logical:
		attrs = append(attrs, h5.IntAttribute(attrIntDecode, 1, 4, true))
	case v.Class == matvar.ClassChar:
		attrs = append(attrs, h5.IntAttribute(attrIntDecode, 2, 4, true))
	}
	if v.Class == matvar.ClassStruct {
		fields, err := f.fieldsAttribute(v.Fields)
		if err != nil {
			return 0, err
		}
		attrs = append(attrs, fields)
	}

	if v.IsEmpty() {
		return f.encodeEmpty(v, attrs)
	}
	switch v.Class {
	case matvar.ClassCell:
		addrs := make([]uint64, len(v.Cells))
		for i, c := range v.Cells {
			var err error
			if addrs[i], err = f.encodeRef(c); err != nil {
				return 0, fmt.Errorf("cell %d: %w", i, err)
			}
		}
		return f.h5.WriteDataset(f.referenceType(), storageDims(v.Dims), f.h5.EncodeReferences(addrs), attrs...)
	case matvar.ClassStruct:
		return f.encodeStruct(v, attrs)
	}
	return f.encodeNumeric(v, attrs)
}

// encodeRef writes v and links it into "#refs#".
func (f *File) encodeRef(v *matvar.Var) (uint64, error) {
	addr, err := f.encode(v, false)
	if err != nil {
		return 0, err
	}
	return addr, f.addRef(addr)
}

// encodeEmpty writes an empty array as its dimensions, tagged MATLAB_empty.
func (f *File) encodeEmpty(v *matvar.Var, attrs []*message.Attribute) (uint64, error) {
	dims := make([]uint64, len(v.Dims))
	for i, d := range v.Dims {
		dims[i] = uint64(d)
	}
	raw, err := dtype.Encode(dims, order)
	if err != nil {
		return 0, err
	}
	attrs = append(attrs, h5.IntAttribute(attrEmpty, 1, 1, false))
	return f.h5.WriteDataset(message.NewFixedPoint(8, false), []uint64{uint64(len(dims))}, raw, attrs...)
}

func (f *File) encodeNumeric(v *matvar.Var, attrs []*message.Attribute) (uint64, error) {
	dt, err := dtype.ToHDF5(v.Kind())
	if err != nil {
		return 0, err
	}
	raw, err := dtype.Encode(v.Real, order)
	if err != nil {
		return 0, err
	}
	if v.Complex {
		imag, err := dtype.Encode(v.Imag, order)
		if err != nil {
			return 0, err
		}
		size := int(dt.Size)
		pairs := make([]byte, 0, 2*len(raw))
		for i := 0; i < len(raw); i += size {
			pairs = append(pairs, raw[i:i+size]...)
			pairs = append(pairs, imag[i:i+size]...)
		}
		raw = pairs
		dt = message.NewCompound(2*dt.Size,
			message.CompoundMember{Name: "real", Offset: 0, Type: dt},
			message.CompoundMember{Name: "imag", Offset: dt.Size, Type: dt})
	}
	return f.h5.WriteDataset(dt, storageDims(v.Dims), raw, attrs...)
}

// encodeStruct writes a scalar struct as a group of its field values, and a
// struct array as a group of per-field reference datasets.
func (f *File) encodeStruct(v *matvar.Var, attrs []*message.Attribute) (uint64, error) {
	n := v.NumElements()
	scalar := len(v.Dims) == 2 && n == 1
	links := make([]h5.Link, len(v.Fields))
	for j, name := range v.Fields {
		links[j].Name = name
		if scalar {
			addr, err := f.encode(v.Values[j], false)
			if err != nil {
				return 0, fmt.Errorf("field %q: %w", name, err)
			}
			links[j].Address = addr
			continue
		}
		addrs := make([]uint64, n)
		for i := range addrs {
			var err error
			if addrs[i], err = f.encodeRef(v.Values[i*len(v.Fields)+j]); err != nil {
				return 0, fmt.Errorf("field %q element %d: %w", name, i, err)
			}
		}
		addr, err := f.h5.WriteDataset(f.referenceType(), storageDims(v.Dims), f.h5.EncodeReferences(addrs))
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}
		links[j].Address = addr
	}
	return f.h5.WriteGroup(links, attrs...)
}

func (f *File) fieldsAttribute(fields []string) (*message.Attribute, error) {
	items := make([][]byte, len(fields))
	for i, name := range fields {
		items[i] = []byte(name)
	}
	return f.h5.VarLenAttribute(attrFields, message.NewString(1, message.PadNullTerm), items)
}

func (f *File) referenceType() *message.Datatype {
	return message.NewObjectReference(f.h5.Config().OffsetSize)
}

// storageDims reverses MATLAB's column-major dimensions into HDF5's
// row-major order.
func storageDims(dims []int) []uint64 {
	out := make([]uint64, len(dims))
	for i, d := range dims {
		out[len(dims)-1-i] = uint64(d)
	}
	return out
}

// matlabDims undoes storageDims. Scalars read as 1x1 and vectors as Nx1.
func matlabDims(dims []uint64) []int {
	switch len(dims) {
	case 0:
		return []int{1, 1}
	case 1:
		return []int{int(dims[0]), 1}
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		out[len(dims)-1-i] = int(d)
	}
	return out
}

// Read decodes the named variable.
func (f *File) Read(name string) (*matvar.Var, error) {
	if strings.HasPrefix(name, "#") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	obj, err := f.h5.Root().Open(name)
	if errors.Is(err, h5.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	v, err := f.decode(obj, name, 0)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", name, err)
	}
	global, _, _ := obj.UintAttribute(attrGlobal)
	v.Global = global != 0
	return v, v.Validate()
}

// supported reports whether obj holds a class Read can decode.
func supported(obj *h5.Object) bool {
	class, ok, err := obj.StringAttribute(attrClass)
	if err != nil || obj.Attribute(attrSparse) != nil {
		return false
	}
	if obj.IsGroup() {
		return !ok || class == "struct"
	}
	c, _, err := matvar.ParseClass(class)
	if !ok || err != nil {
		return false
	}
	return c.Numeric() || c == matvar.ClassChar || c == matvar.ClassCell || c == matvar.ClassStruct
}

func (f *File) decode(obj *h5.Object, name string, depth int) (*matvar.Var, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnsupported, maxDepth)
	}
	if !supported(obj) {
		class, _, _ := obj.StringAttribute(attrClass)
		return nil, fmt.Errorf("%w: object of class %q", ErrUnsupported, class)
	}
	if obj.IsGroup() {
		return f.decodeStruct(obj, name, depth)
	}

	class, _, _ := obj.StringAttribute(attrClass)
	c, logical, _ := matvar.ParseClass(class)
	if intDecode, _, _ := obj.UintAttribute(attrIntDecode); intDecode == 1 && c == matvar.ClassUint8 {
		logical = true
	}
	v := &matvar.Var{Name: name, Class: c, Logical: logical}

	if empty, _, _ := obj.UintAttribute(attrEmpty); empty != 0 {
		return f.decodeEmpty(obj, v)
	}
	v.Dims = matlabDims(obj.Dims())
	raw, err := obj.Read()
	if err != nil {
		return nil, err
	}
	if c == matvar.ClassCell {
		addrs := f.h5.DecodeReferences(raw)
		if n, err := matvar.ElementCount(v.Dims, len(addrs)); err != nil || n != len(addrs) {
			return nil, fmt.Errorf("%w: cell holds %d references for dimensions %v", ErrNotMAT73, len(addrs), v.Dims)
		}
		v.Cells = make([]*matvar.Var, len(addrs))
		for i, addr := range addrs {
			if v.Cells[i], err = f.decodeRef(addr, "", depth); err != nil {
				return nil, fmt.Errorf("cell %d: %w", i, err)
			}
		}
		return v, nil
	}
	if c == matvar.ClassStruct {
		return nil, fmt.Errorf("%w: struct stored as a dataset", ErrUnsupported)
	}
	return v, f.decodeNumeric(obj.Datatype(), raw, v)
}

func (f *File) decodeRef(addr uint64, name string, depth int) (*matvar.Var, error) {
	obj, err := f.h5.Object(addr)
	if err != nil {
		return nil, err
	}
	return f.decode(obj, name, depth+1)
}

func (f *File) decodeEmpty(obj *h5.Object, v *matvar.Var) (*matvar.Var, error) {
	raw, err := obj.Read()
	if err != nil {
		return nil, err
	}
	dims, err := decodeAs(obj.Datatype(), raw, dtype.Uint64)
	if err != nil {
		return nil, fmt.Errorf("empty dimensions: %w", err)
	}
	for _, d := range dims.([]uint64) {
		if d > math.MaxInt32 {
			return nil, fmt.Errorf("%w: empty dimension %d", ErrNotMAT73, d)
		}
		v.Dims = append(v.Dims, int(d))
	}
	if len(v.Dims) < 2 {
		v.Dims = []int{0, 0}
	}
	if _, err := matvar.ElementCount(v.Dims, 0); err != nil {
		return nil, fmt.Errorf("%w: empty array %v", ErrNotMAT73, err)
	}
	switch v.Class {
	case matvar.ClassCell:
		v.Cells = []*matvar.Var{}
	case matvar.ClassStruct:
		if v.Fields, err = f.fieldNames(obj); err != nil {
			return nil, err
		}
		v.Values = []*matvar.Var{}
	default:
		v.Real = dtype.Make(v.Kind(), 0)
	}
	return v, nil
}

func (f *File) decodeNumeric(dt *message.Datatype, raw []byte, v *matvar.Var) error {
	if dt.Class != message.ClassCompound {
		var err error
		v.Real, err = decodeAs(dt, raw, v.Kind())
		return err
	}
	re, okRe := dt.Member("real")
	im, okIm := dt.Member("imag")
	if !okRe || !okIm || re.Type.Size != im.Type.Size {
		return fmt.Errorf("%w: compound type is not a complex number", ErrUnsupported)
	}
	size := int(re.Type.Size)
	stride := int(dt.Size)
	n := len(raw) / stride
	realRaw := make([]byte, 0, n*size)
	imagRaw := make([]byte, 0, n*size)
	for i := 0; i < n; i++ {
		rec := raw[i*stride : (i+1)*stride]
		realRaw = append(realRaw, rec[re.Offset:int(re.Offset)+size]...)
		imagRaw = append(imagRaw, rec[im.Offset:int(im.Offset)+size]...)
	}
	var err error
	if v.Real, err = decodeAs(re.Type, realRaw, v.Kind()); err != nil {
		return err
	}
	if v.Imag, err = decodeAs(im.Type, imagRaw, v.Kind()); err != nil {
		return err
	}
	v.Complex = true
	return nil
}

// decodeAs decodes raw stored as dt and converts it to kind k.
func decodeAs(dt *message.Datatype, raw []byte, k dtype.Kind) (any, error) {
	stored, err := dtype.FromHDF5(dt)
	if err != nil {
		return nil, err
	}
	vals, err := dtype.Decode(stored, dt.Order(), raw)
	if err != nil {
		return nil, err
	}
	return dtype.Convert(vals, k)
}

// fieldNames returns the MATLAB_fields attribute, or nil if it is missing.
func (f *File) fieldNames(obj *h5.Object) ([]string, error) {
	a := obj.Attribute(attrFields)
	if a == nil {
		return nil, nil
	}
	n := 1
	if a.Dataspace != nil {
		n = int(a.Dataspace.NumElements())
	}
	items, err := f.h5.ReadVarLen(a.Datatype, a.Data, n)
	if err != nil {
		return nil, fmt.Errorf("field names: %w", err)
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = strings.TrimRight(string(it), "\x00")
	}
	return names, nil
}

func (f *File) decodeStruct(obj *h5.Object, name string, depth int) (*matvar.Var, error) {
	g, err := obj.Group()
	if err != nil {
		return nil, err
	}
	fields, err := f.fieldNames(obj)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		for _, l := range g.Links() {
			fields = append(fields, l.Name)
		}
	}
	v := &matvar.Var{Name: name, Class: matvar.ClassStruct, Dims: []int{1, 1}, Fields: fields}

	members := make([]*h5.Object, len(fields))
	array := len(fields) > 0
	for j, field := range fields {
		if members[j], err = g.Open(field); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		if !isReferenceArray(members[j]) {
			array = false
		}
	}

	if !array {
		v.Values = make([]*matvar.Var, len(fields))
		for j, m := range members {
			if v.Values[j], err = f.decode(m, fields[j], depth+1); err != nil {
				return nil, fmt.Errorf("field %q: %w", fields[j], err)
			}
		}
		return v, nil
	}

	v.Dims = matlabDims(members[0].Dims())
	refs := make([][]uint64, len(members))
	for j, m := range members {
		raw, err := m.Read()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fields[j], err)
		}
		refs[j] = f.h5.DecodeReferences(raw)
	}
	n, err := matvar.ElementCount(v.Dims, len(refs[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: struct %v", ErrNotMAT73, err)
	}
	for j := range refs {
		if len(refs[j]) != n {
			return nil, fmt.Errorf("%w: field %q has %d elements, want %d", ErrNotMAT73, fields[j], len(refs[j]), n)
		}
	}
	v.Values = make([]*matvar.Var, n*len(fields))
	for j, addrs := range refs {
		for i, addr := range addrs {
			if v.Values[i*len(fields)+j], err = f.decodeRef(addr, fields[j], depth); err != nil {
				return nil, fmt.Errorf("field %q element %d: %w", fields[j], i, err)
			}
		}
	}
	return v, nil
}

// isReferenceArray reports whether obj is an untagged dataset of object
// references, which is how struct arrays store each field.
func isReferenceArray(obj *h5.Object) bool {
	if obj.IsGroup() || obj.Attribute(attrClass) != nil {
		return false
	}
	dt := obj.Datatype()
	return dt != nil && dt.Class == message.ClassReference
}
