package matio

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/matvar"
)

// newArray builds a record for data of type T.
func newArray[T ElementType](name string, dims []int, data []T) (*matvar.Var, error) {
	if data == nil {
		data = []T{}
	}
	return matvar.NewNumeric(name, dims, data)
}

func values[T ElementType](v Variable) []T {
	data, _ := v.rec.Real.([]T)
	return data
}

// MultiDimensionalArray is an N-dimensional array of T stored column-major.
type MultiDimensionalArray[T ElementType] struct {
	Variable
}

// NewMultiDimensionalArray returns an array with the given dimensions. A nil
// data slice is zero-filled.
func NewMultiDimensionalArray[T ElementType](name string, dims []int, data []T) (MultiDimensionalArray[T], error) {
	if data == nil {
		n := 1
		for _, d := range dims {
			n *= d
		}
		if n < 0 {
			n = 0
		}
		data = make([]T, n)
	}
	rec, err := newArray(name, dims, data)
	if err != nil {
		err = ErrorInvalidInput("NewMultiDimensionalArray", err.Error())
		logViewError("NewMultiDimensionalArray", "%v", err)
		return MultiDimensionalArray[T]{}, err
	}
	return MultiDimensionalArray[T]{Variable{rec}}, nil
}

// AsMultiDimensionalArray views v as an array of T. The view is invalid
// unless v holds real T data.
func AsMultiDimensionalArray[T ElementType](v Variable) MultiDimensionalArray[T] {
	if !checkNumeric[T]("AsMultiDimensionalArray", v) {
		return MultiDimensionalArray[T]{}
	}
	return MultiDimensionalArray[T]{v}
}

// Data returns the backing slice. Writes to it change the variable.
func (a MultiDimensionalArray[T]) Data() []T {
	if !a.IsValid() {
		return nil
	}
	return values[T](a.Variable)
}

// At returns the element at the column-major subscripts idx, or the zero
// value if idx is out of range.
func (a MultiDimensionalArray[T]) At(idx ...int) T {
	var zero T
	if !a.IsValid() {
		return zero
	}
	i, err := rawIndex(a.rec.Dims, idx)
	if err != nil {
		logViewError("MultiDimensionalArray.At", "%q: %v", a.rec.Name, err)
		return zero
	}
	return a.Data()[i]
}

// Set stores value at the subscripts idx.
func (a MultiDimensionalArray[T]) Set(idx []int, value T) error {
	if !a.IsValid() {
		return ErrorInvalidInput("MultiDimensionalArray.Set", "the variable is not valid")
	}
	i, err := rawIndex(a.rec.Dims, idx)
	if err != nil {
		return ErrorInvalidInput("MultiDimensionalArray.Set", err.Error())
	}
	a.Data()[i] = value
	return nil
}

// Vector is a 1xN or Nx1 array of T.
type Vector[T ElementType] struct {
	Variable
}

// NewVector returns an Nx1 vector holding a copy of data.
func NewVector[T ElementType](name string, data []T) Vector[T] {
	rec, _ := newArray(name, []int{len(data), 1}, append([]T{}, data...))
	return Vector[T]{Variable{rec}}
}

// AsVector views v as a vector of T. The view is invalid unless v holds real
// T data with one dimension of 1.
func AsVector[T ElementType](v Variable) Vector[T] {
	if !checkNumeric[T]("AsVector", v) {
		return Vector[T]{}
	}
	if !isVector(v.rec.Dims) {
		logViewError("AsVector", "%q has dimensions %v", v.rec.Name, v.rec.Dims)
		return Vector[T]{}
	}
	return Vector[T]{v}
}

func (x Vector[T]) Len() int {
	return x.NumElements()
}

// Data returns the backing slice. Writes to it change the variable.
func (x Vector[T]) Data() []T {
	if !x.IsValid() {
		return nil
	}
	return values[T](x.Variable)
}

// At returns element i, or the zero value if i is out of range.
func (x Vector[T]) At(i int) T {
	var zero T
	data := x.Data()
	if i < 0 || i >= len(data) {
		if x.IsValid() {
			logViewError("Vector.At", "%q: index %d out of range [0,%d)", x.rec.Name, i, len(data))
		}
		return zero
	}
	return data[i]
}

// Set stores value at index i.
func (x Vector[T]) Set(i int, value T) error {
	data := x.Data()
	if i < 0 || i >= len(data) {
		return ErrorInvalidInput("Vector.Set", fmt.Sprintf("index %d out of range [0,%d)", i, len(data)))
	}
	data[i] = value
	return nil
}

// Element is a single value of type T.
type Element[T ElementType] struct {
	Variable
}

// NewElement returns a 1x1 variable holding value.
func NewElement[T ElementType](name string, value T) Element[T] {
	rec, _ := newArray(name, []int{1, 1}, []T{value})
	return Element[T]{Variable{rec}}
}

// AsElement views v as a single T. The view is invalid unless v holds
// exactly one real T.
func AsElement[T ElementType](v Variable) Element[T] {
	if !checkNumeric[T]("AsElement", v) {
		return Element[T]{}
	}
	if v.rec.NumElements() != 1 {
		logViewError("AsElement", "%q has %d elements", v.rec.Name, v.rec.NumElements())
		return Element[T]{}
	}
	return Element[T]{v}
}

// Value returns the element, or the zero value when invalid.
func (e Element[T]) Value() T {
	var zero T
	if !e.IsValid() {
		return zero
	}
	return values[T](e.Variable)[0]
}

// Set replaces the element.
func (e Element[T]) Set(value T) error {
	if !e.IsValid() {
		return ErrorInvalidInput("Element.Set", "the variable is not valid")
	}
	values[T](e.Variable)[0] = value
	return nil
}

// String is a 1xN char array.
type String struct {
	Variable
}

// NewString returns a 1xN char array holding s.
func NewString(name, s string) String {
	return String{Variable{matvar.NewChar(name, s)}}
}

// AsString views v as a string. The view is invalid unless v is a 1xN char
// array.
func (v Variable) AsString() String {
	if !checkNumeric[Char]("AsString", v) {
		return String{}
	}
	if len(v.rec.Dims) != 2 || v.rec.Dims[0] != 1 {
		logViewError("AsString", "%q has dimensions %v", v.rec.Name, v.rec.Dims)
		return String{}
	}
	return String{v}
}

// Value returns the text, or "" when invalid.
func (s String) Value() string {
	if !s.IsValid() {
		return ""
	}
	return s.rec.String()
}

// Set replaces the text, resizing the array.
func (s String) Set(text string) error {
	if !s.IsValid() {
		return ErrorInvalidInput("String.Set", "the variable is not valid")
	}
	c := matvar.NewChar(s.rec.Name, text)
	s.rec.Dims, s.rec.Real = c.Dims, c.Real
	return nil
}

// CellArray is an N-dimensional array of variables.
type CellArray struct {
	Variable
}

// NewCellArray returns a cell array holding copies of elems in column-major
// order. Missing trailing elements are empty doubles.
func NewCellArray(name string, dims []int, elems []Variable) (CellArray, error) {
	cells := make([]*matvar.Var, len(elems))
	for i, e := range elems {
		if !e.IsValid() {
			err := ErrorInvalidInput("NewCellArray", fmt.Sprintf("element %d is not valid", i))
			logViewError("NewCellArray", "%v", err)
			return CellArray{}, err
		}
		cells[i] = slotCopy(e, "")
	}
	rec, err := matvar.NewCell(name, dims, cells)
	if err != nil {
		err = ErrorInvalidInput("NewCellArray", err.Error())
		logViewError("NewCellArray", "%v", err)
		return CellArray{}, err
	}
	return CellArray{Variable{rec}}, nil
}

// slotCopy deep-copies e under the name its new slot dictates.
func slotCopy(e Variable, name string) *matvar.Var {
	c := e.rec.DeepDuplicate()
	c.Name = name
	return c
}

// AsCellArray views v as a cell array.
func (v Variable) AsCellArray() CellArray {
	if !v.IsValid() || v.rec.Class != matvar.ClassCell {
		logViewError("AsCellArray", "%q is a %s, not a cell array", v.Name(), v.ClassName())
		return CellArray{}
	}
	return CellArray{v}
}

// At returns the element at the subscripts idx. It shares the record with
// the array. Out-of-range subscripts give an invalid Variable.
func (c CellArray) At(idx ...int) Variable {
	if !c.IsValid() {
		return Variable{}
	}
	i, err := rawIndex(c.rec.Dims, idx)
	if err != nil {
		logViewError("CellArray.At", "%q: %v", c.rec.Name, err)
		return Variable{}
	}
	return Variable{c.rec.Cells[i]}
}

// Set stores a copy of v at the subscripts idx.
func (c CellArray) Set(idx []int, v Variable) error {
	if !c.IsValid() || !v.IsValid() {
		return ErrorInvalidInput("CellArray.Set", "the variable is not valid")
	}
	i, err := rawIndex(c.rec.Dims, idx)
	if err != nil {
		return ErrorInvalidInput("CellArray.Set", err.Error())
	}
	c.rec.Cells[i] = slotCopy(v, "")
	return nil
}

// Struct is a 1x1 struct with ordered fields.
type Struct struct {
	Variable
}

// NewStruct returns a struct whose fields are copies of fields, named by
// their variable names.
func NewStruct(name string, fields ...Variable) (Struct, error) {
	names := make([]string, len(fields))
	recs := make([]*matvar.Var, len(fields))
	for i, f := range fields {
		if !f.IsValid() {
			err := ErrorInvalidInput("NewStruct", fmt.Sprintf("field %d is not valid", i))
			logViewError("NewStruct", "%v", err)
			return Struct{}, err
		}
		names[i] = f.rec.Name
		recs[i] = slotCopy(f, f.rec.Name)
	}
	rec, err := matvar.NewStruct(name, []int{1, 1}, names, recs)
	if err != nil {
		err = ErrorInvalidInput("NewStruct", err.Error())
		logViewError("NewStruct", "%v", err)
		return Struct{}, err
	}
	return Struct{Variable{rec}}, nil
}

// AsStruct views v as a struct. The view is invalid unless v is a 1x1
// struct.
func (v Variable) AsStruct() Struct {
	if !v.IsValid() || v.rec.Class != matvar.ClassStruct || !isScalar(v.rec.Dims) {
		logViewError("AsStruct", "%q is not a 1x1 struct", v.Name())
		return Struct{}
	}
	return Struct{v}
}

// Fields returns the field names in order.
func (s Struct) Fields() []string {
	if !s.IsValid() {
		return nil
	}
	return append([]string(nil), s.rec.Fields...)
}

func (s Struct) NumFields() int {
	if !s.IsValid() {
		return 0
	}
	return len(s.rec.Fields)
}

func (s Struct) Has(field string) bool {
	return s.IsValid() && s.rec.FieldIndex(field) >= 0
}

// Field returns the named field, sharing its record with the struct.
func (s Struct) Field(name string) Variable {
	if !s.IsValid() {
		return Variable{}
	}
	f := s.rec.Field(0, name)
	if f == nil {
		logViewError("Struct.Field", "%q has no field %q", s.rec.Name, name)
		return Variable{}
	}
	return Variable{f}
}

// Set stores a copy of v in the field named after it, adding the field if
// it does not exist yet.
func (s Struct) Set(v Variable) error {
	if !s.IsValid() || !v.IsValid() {
		return ErrorInvalidInput("Struct.Set", "the variable is not valid")
	}
	name := v.rec.Name
	if name == "" {
		return ErrorInvalidInput("Struct.Set", "field names cannot be empty")
	}
	if i := s.rec.FieldIndex(name); i >= 0 {
		s.rec.Values[i] = slotCopy(v, name)
		return nil
	}
	s.rec.Fields = append(s.rec.Fields, name)
	s.rec.Values = append(s.rec.Values, slotCopy(v, name))
	return nil
}

// StructArray is an N-dimensional array of structs sharing one field list.
type StructArray struct {
	Variable
}

// NewStructArray returns a struct array of the given dimensions. Each element
// must have exactly fields, in order. Missing trailing elements have every
// field set to an empty double.
func NewStructArray(name string, dims []int, fields []string, elems []Struct) (StructArray, error) {
	var vals []*matvar.Var
	for i, e := range elems {
		if !e.IsValid() || !equalFields(e.rec.Fields, fields) {
			err := ErrorInvalidInput("NewStructArray", fmt.Sprintf("element %d does not have fields %v", i, fields))
			logViewError("NewStructArray", "%v", err)
			return StructArray{}, err
		}
		for j, f := range fields {
			vals = append(vals, slotCopy(Variable{e.rec.Values[j]}, f))
		}
	}
	rec := &matvar.Var{Name: name, Class: matvar.ClassStruct, Dims: append([]int(nil), dims...), Fields: append([]string(nil), fields...)}
	for len(vals) < rec.NumElements()*len(fields) {
		vals = append(vals, matvar.NewEmpty(fields[len(vals)%len(fields)]))
	}
	rec.Values = vals
	if err := rec.Validate(); err != nil {
		err = ErrorInvalidInput("NewStructArray", err.Error())
		logViewError("NewStructArray", "%v", err)
		return StructArray{}, err
	}
	return StructArray{Variable{rec}}, nil
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AsStructArray views v as a struct array. Any struct qualifies.
func (v Variable) AsStructArray() StructArray {
	if !v.IsValid() || v.rec.Class != matvar.ClassStruct {
		logViewError("AsStructArray", "%q is a %s, not a struct", v.Name(), v.ClassName())
		return StructArray{}
	}
	return StructArray{v}
}

// Fields returns the field names in order.
func (a StructArray) Fields() []string {
	if !a.IsValid() {
		return nil
	}
	return append([]string(nil), a.rec.Fields...)
}

// At returns the element at the subscripts idx. Its field values are shared
// with the array, so Struct.Set on an existing field changes the array; new
// fields stay local to the element.
func (a StructArray) At(idx ...int) Struct {
	if !a.IsValid() {
		return Struct{}
	}
	i, err := rawIndex(a.rec.Dims, idx)
	if err != nil {
		logViewError("StructArray.At", "%q: %v", a.rec.Name, err)
		return Struct{}
	}
	n := len(a.rec.Fields)
	elem := &matvar.Var{
		Name:   a.rec.Name,
		Class:  matvar.ClassStruct,
		Dims:   []int{1, 1},
		Fields: a.rec.Fields[:n:n],
		Values: a.rec.Values[i*n : (i+1)*n : (i+1)*n],
	}
	return Struct{Variable{elem}}
}

// Set replaces the element at idx with copies of s's fields. s must have the
// array's fields in order.
func (a StructArray) Set(idx []int, s Struct) error {
	if !a.IsValid() || !s.IsValid() {
		return ErrorInvalidInput("StructArray.Set", "the variable is not valid")
	}
	if !equalFields(s.rec.Fields, a.rec.Fields) {
		return ErrorInvalidInput("StructArray.Set", fmt.Sprintf("element fields %v do not match %v", s.rec.Fields, a.rec.Fields))
	}
	i, err := rawIndex(a.rec.Dims, idx)
	if err != nil {
		return ErrorInvalidInput("StructArray.Set", err.Error())
	}
	n := len(a.rec.Fields)
	for j, f := range a.rec.Fields {
		a.rec.Values[i*n+j] = slotCopy(Variable{s.rec.Values[j]}, f)
	}
	return nil
}
