// Package matvar defines the in-memory variable record shared by the MAT-file
// codecs and the public API.
//
// A [Var] holds one named MATLAB value. Numeric, logical and char data live in
// typed Go slices in column-major order. Cells and structs hold child records.
package matvar

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/robert-malhotra/go-matio/internal/dtype"
)

// Char is a MATLAB character code unit.
type Char = dtype.Char

// Class is a MATLAB array class. The values are the Level 5 mxCLASS ids.
type Class uint8

const (
	ClassEmpty Class = iota
	ClassCell
	ClassStruct
	ClassObject
	ClassChar
	ClassSparse
	ClassDouble
	ClassSingle
	ClassInt8
	ClassUint8
	ClassInt16
	ClassUint16
	ClassInt32
	ClassUint32
	ClassInt64
	ClassUint64
	ClassFunction
	ClassOpaque
)

var classNames = [...]string{"empty", "cell", "struct", "object", "char", "sparse", "double", "single",
	"int8", "uint8", "int16", "uint16", "int32", "uint32", "int64", "uint64", "function_handle", "opaque"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ParseClass maps a MATLAB class name to a class. "logical" maps to
// ClassUint8 with logical set.
func ParseClass(name string) (c Class, logical bool, err error) {
	if name == "logical" {
		return ClassUint8, true, nil
	}
	for i, n := range classNames {
		if n == name {
			return Class(i), false, nil
		}
	}
	return ClassEmpty, false, fmt.Errorf("unknown MATLAB class %q", name)
}

// Numeric reports whether c stores numbers.
func (c Class) Numeric() bool {
	return c >= ClassDouble && c <= ClassUint64
}

var classKinds = map[Class]dtype.Kind{
	ClassDouble: dtype.Float64, ClassSingle: dtype.Float32,
	ClassInt8: dtype.Int8, ClassUint8: dtype.Uint8,
	ClassInt16: dtype.Int16, ClassUint16: dtype.Uint16,
	ClassInt32: dtype.Int32, ClassUint32: dtype.Uint32,
	ClassInt64: dtype.Int64, ClassUint64: dtype.Uint64,
	ClassChar: dtype.CharKind,
}

// Kind returns the element kind of a numeric or char class.
func (c Class) Kind() dtype.Kind {
	return classKinds[c]
}

// ClassOf returns the class that stores elements of kind k.
func ClassOf(k dtype.Kind) (c Class, logical bool) {
	if k == dtype.Bool {
		return ClassUint8, true
	}
	for c, ck := range classKinds {
		if ck == k {
			return c, false
		}
	}
	return ClassEmpty, false
}

var ErrInvalid = errors.New("invalid variable")

// MaxNameLength is the longest variable name MATLAB accepts.
const MaxNameLength = 63

// CheckName reports whether name can name a top-level variable: an ASCII
// letter followed by letters, digits or underscores.
func CheckName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: name %q must have 1 to %d characters", ErrInvalid, name, MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		letter := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		if letter || i > 0 && (c == '_' || c >= '0' && c <= '9') {
			continue
		}
		return fmt.Errorf("%w: name %q is not a MATLAB identifier", ErrInvalid, name)
	}
	return nil
}

// ElementCount returns the product of dims. It fails when a dimension is
// negative or when the product exceeds limit, so callers can size
// allocations from untrusted dimensions.
func ElementCount(dims []int, limit int) (int, error) {
	if len(dims) == 0 {
		return 0, nil
	}
	for _, d := range dims {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension in %v", dims)
		}
		if d == 0 {
			return 0, nil
		}
	}
	n := 1
	for _, d := range dims {
		if n > limit/d {
			return 0, fmt.Errorf("dimensions %v hold more than %d elements", dims, limit)
		}
		n *= d
	}
	return n, nil
}

// Var is one MATLAB variable.
type Var struct {
	Name    string
	Class   Class
	Dims    []int
	Logical bool
	Global  bool
	Complex bool

	// Real and Imag hold numeric, logical ([]bool) and char ([]Char) data.
	Real any
	Imag any

	// Cells holds one record per cell element.
	Cells []*Var

	// Fields names the struct fields. Values holds NumElements()*len(Fields)
	// records, element-major with fields fastest.
	Fields []string
	Values []*Var
}

// NumElements returns the product of the dimensions.
func (v *Var) NumElements() int {
	if len(v.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range v.Dims {
		n *= d
	}
	return n
}

func (v *Var) IsEmpty() bool {
	return v.NumElements() == 0
}

// Kind returns the kind of the Real payload.
func (v *Var) Kind() dtype.Kind {
	if v.Logical {
		return dtype.Bool
	}
	return v.Class.Kind()
}

// ClassName returns the MATLAB class name, reporting "logical" for logical
// arrays.
func (v *Var) ClassName() string {
	if v.Logical {
		return "logical"
	}
	return v.Class.String()
}

// String returns the text of a char array, in column-major order.
func (v *Var) String() string {
	chars, ok := v.Real.([]Char)
	if v.Class != ClassChar || !ok {
		return ""
	}
	units := make([]uint16, len(chars))
	for i, c := range chars {
		units[i] = uint16(c)
	}
	return string(utf16.Decode(units))
}

// FieldIndex returns the position of a struct field, or -1.
func (v *Var) FieldIndex(name string) int {
	for i, f := range v.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Field returns field name of struct element elem.
func (v *Var) Field(elem int, name string) *Var {
	i := v.FieldIndex(name)
	if i < 0 || elem < 0 || elem >= v.NumElements() {
		return nil
	}
	return v.Values[elem*len(v.Fields)+i]
}

// ShallowDuplicate copies the record header. The payload is shared.
func (v *Var) ShallowDuplicate() *Var {
	if v == nil {
		return nil
	}
	out := *v
	out.Dims = append([]int(nil), v.Dims...)
	out.Fields = append([]string(nil), v.Fields...)
	return &out
}

// DeepDuplicate copies the record and everything it holds.
func (v *Var) DeepDuplicate() *Var {
	if v == nil {
		return nil
	}
	out := v.ShallowDuplicate()
	out.Real = dtype.Clone(v.Real)
	out.Imag = dtype.Clone(v.Imag)
	out.Cells = duplicateAll(v.Cells)
	out.Values = duplicateAll(v.Values)
	return out
}

func duplicateAll(vars []*Var) []*Var {
	if vars == nil {
		return nil
	}
	out := make([]*Var, len(vars))
	for i, c := range vars {
		out[i] = c.DeepDuplicate()
	}
	return out
}

// Validate checks that the payload matches the class and dimensions.
func (v *Var) Validate() error {
	if v == nil {
		return ErrInvalid
	}
	if len(v.Dims) < 2 {
		return fmt.Errorf("%w: %q has %d dimensions, need at least 2", ErrInvalid, v.Name, len(v.Dims))
	}
	for _, d := range v.Dims {
		if d < 0 {
			return fmt.Errorf("%w: %q has negative dimension %v", ErrInvalid, v.Name, v.Dims)
		}
	}
	n := v.NumElements()

	switch {
	case v.Class.Numeric() || v.Class == ClassChar:
		if v.Logical && v.Class != ClassUint8 {
			return fmt.Errorf("%w: logical %q must be stored as uint8", ErrInvalid, v.Name)
		}
		if dtype.Of(v.Real) != v.Kind() && !(n == 0 && v.Real == nil) {
			return fmt.Errorf("%w: %q of class %s holds %T", ErrInvalid, v.Name, v.ClassName(), v.Real)
		}
		if dtype.Len(v.Real) != n {
			return fmt.Errorf("%w: %q has %d elements for dimensions %v", ErrInvalid, v.Name, dtype.Len(v.Real), v.Dims)
		}
		if v.Complex {
			if v.Logical || v.Class == ClassChar {
				return fmt.Errorf("%w: %s %q cannot be complex", ErrInvalid, v.ClassName(), v.Name)
			}
			if dtype.Of(v.Imag) != dtype.Of(v.Real) || dtype.Len(v.Imag) != n {
				return fmt.Errorf("%w: %q imaginary part does not match the real part", ErrInvalid, v.Name)
			}
		}
	case v.Class == ClassCell:
		if len(v.Cells) != n {
			return fmt.Errorf("%w: cell %q has %d elements for dimensions %v", ErrInvalid, v.Name, len(v.Cells), v.Dims)
		}
		for i, c := range v.Cells {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("cell %q element %d: %w", v.Name, i, err)
			}
		}
	case v.Class == ClassStruct:
		seen := make(map[string]bool, len(v.Fields))
		for _, f := range v.Fields {
			if f == "" || seen[f] {
				return fmt.Errorf("%w: struct %q has empty or repeated field %q", ErrInvalid, v.Name, f)
			}
			seen[f] = true
		}
		if len(v.Values) != n*len(v.Fields) {
			return fmt.Errorf("%w: struct %q has %d values for %d elements and %d fields",
				ErrInvalid, v.Name, len(v.Values), n, len(v.Fields))
		}
		for i, c := range v.Values {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("struct %q field %q: %w", v.Name, v.Fields[i%len(v.Fields)], err)
			}
		}
	default:
		return fmt.Errorf("%w: class %s is not supported", ErrInvalid, v.Class)
	}
	return nil
}

// NewNumeric builds a real numeric, logical or char array from a typed slice.
func NewNumeric(name string, dims []int, real any) (*Var, error) {
	c, logical := ClassOf(dtype.Of(real))
	if c == ClassEmpty && !logical {
		return nil, fmt.Errorf("%w: unsupported element type %T", ErrInvalid, real)
	}
	v := &Var{Name: name, Class: c, Dims: append([]int(nil), dims...), Logical: logical, Real: real}
	return v, v.Validate()
}

// NewComplex builds a complex numeric array.
func NewComplex(name string, dims []int, real, imag any) (*Var, error) {
	v, err := NewNumeric(name, dims, real)
	if err != nil {
		return nil, err
	}
	v.Complex = true
	v.Imag = imag
	return v, v.Validate()
}

// NewChar builds a 1xN char array holding s.
func NewChar(name, s string) *Var {
	units := utf16.Encode([]rune(s))
	chars := make([]Char, len(units))
	for i, u := range units {
		chars[i] = Char(u)
	}
	return &Var{Name: name, Class: ClassChar, Dims: []int{1, len(chars)}, Real: chars}
}

// NewCell builds a cell array. Missing elements are filled with empty doubles.
func NewCell(name string, dims []int, cells []*Var) (*Var, error) {
	v := &Var{Name: name, Class: ClassCell, Dims: append([]int(nil), dims...)}
	n := v.NumElements()
	if len(cells) > n {
		return nil, fmt.Errorf("%w: %d cells for dimensions %v", ErrInvalid, len(cells), dims)
	}
	v.Cells = make([]*Var, n)
	copy(v.Cells, cells)
	for i := range v.Cells {
		if v.Cells[i] == nil {
			v.Cells[i] = NewEmpty("")
		}
	}
	return v, v.Validate()
}

// NewStruct builds a struct array with the given fields. values may be nil,
// in which case every field holds an empty double.
func NewStruct(name string, dims []int, fields []string, values []*Var) (*Var, error) {
	v := &Var{Name: name, Class: ClassStruct, Dims: append([]int(nil), dims...), Fields: append([]string(nil), fields...)}
	if values == nil {
		values = make([]*Var, v.NumElements()*len(fields))
		for i := range values {
			values[i] = NewEmpty(fields[i%len(fields)])
		}
	}
	v.Values = values
	return v, v.Validate()
}

// NewEmpty returns a 0x0 double.
func NewEmpty(name string) *Var {
	return &Var{Name: name, Class: ClassDouble, Dims: []int{0, 0}, Real: []float64{}}
}
