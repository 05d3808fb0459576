package matio

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/robert-malhotra/go-matio/internal/dtype"
	"github.com/robert-malhotra/go-matio/internal/logging"
	"github.com/robert-malhotra/go-matio/internal/matvar"
)

// Char is a MATLAB character, one UTF-16 code unit.
type Char = matvar.Char

// ElementType lists the Go types a typed view can hold. bool stands for
// MATLAB logical.
type ElementType interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64 | bool | Char
}

func kindOf[T ElementType]() dtype.Kind {
	return dtype.Of([]T(nil))
}

// VariableType classifies a variable by the view that fits it.
type VariableType int

const (
	TypeUnsupported VariableType = iota
	TypeElement
	TypeVector
	TypeMultiDimensionalArray
	TypeString
	TypeCellArray
	TypeStruct
	TypeStructArray
)

var variableTypeNames = [...]string{"Unsupported", "Element", "Vector", "MultiDimensionalArray",
	"String", "CellArray", "Struct", "StructArray"}

func (t VariableType) String() string {
	if int(t) < len(variableTypeNames) {
		return variableTypeNames[t]
	}
	return fmt.Sprintf("VariableType(%d)", int(t))
}

// ValueType is the element type of a variable.
type ValueType int

const (
	ValueUnsupported ValueType = iota
	ValueInt8
	ValueUint8
	ValueInt16
	ValueUint16
	ValueInt32
	ValueUint32
	ValueInt64
	ValueUint64
	ValueSingle
	ValueDouble
	ValueLogical
	ValueChar
	// ValueVariable is the element type of cell arrays and structs.
	ValueVariable
)

var valueTypeNames = [...]string{"Unsupported", "Int8", "Uint8", "Int16", "Uint16", "Int32", "Uint32",
	"Int64", "Uint64", "Single", "Double", "Logical", "Char", "Variable"}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

var valueTypes = map[dtype.Kind]ValueType{
	dtype.Int8: ValueInt8, dtype.Uint8: ValueUint8, dtype.Int16: ValueInt16, dtype.Uint16: ValueUint16,
	dtype.Int32: ValueInt32, dtype.Uint32: ValueUint32, dtype.Int64: ValueInt64, dtype.Uint64: ValueUint64,
	dtype.Float32: ValueSingle, dtype.Float64: ValueDouble, dtype.Bool: ValueLogical, dtype.CharKind: ValueChar,
}

// viewLog receives conversion failures, which have no File to log through.
var viewLog atomic.Pointer[logging.Logger]

func init() {
	viewLog.Store(logging.Default())
}

// SetLogOutput redirects the log output of variable conversions and
// constructors. It does not affect File handles; see WithLogOutput.
func SetLogOutput(w io.Writer) {
	viewLog.Store(logging.New(w, w, false))
}

func logViewError(op string, format string, args ...any) {
	viewLog.Load().Error("matio."+op, fmt.Errorf(format, args...))
}

// Variable is a handle to one variable record. Variables taken from a cell
// array or struct share the record with their parent, so changes through
// either are visible in both. The zero Variable is invalid.
type Variable struct {
	rec *matvar.Var
}

// IsValid reports whether the handle refers to a record.
func (v Variable) IsValid() bool {
	return v.rec != nil
}

// Name returns the variable name, or "" when invalid.
func (v Variable) Name() string {
	if !v.IsValid() {
		return ""
	}
	return v.rec.Name
}

// Dimensions returns a copy of the column-major dimensions.
func (v Variable) Dimensions() []int {
	if !v.IsValid() {
		return nil
	}
	return append([]int(nil), v.rec.Dims...)
}

// NumElements returns the product of the dimensions.
func (v Variable) NumElements() int {
	if !v.IsValid() {
		return 0
	}
	return v.rec.NumElements()
}

// ClassName returns the MATLAB class name, such as "double" or "logical".
func (v Variable) ClassName() string {
	if !v.IsValid() {
		return ""
	}
	return v.rec.ClassName()
}

func (v Variable) IsComplex() bool {
	return v.IsValid() && v.rec.Complex
}

func (v Variable) IsGlobal() bool {
	return v.IsValid() && v.rec.Global
}

// ValueType returns the element type.
func (v Variable) ValueType() ValueType {
	if !v.IsValid() {
		return ValueUnsupported
	}
	switch v.rec.Class {
	case matvar.ClassCell, matvar.ClassStruct:
		return ValueVariable
	}
	return valueTypes[v.rec.Kind()]
}

// VariableType returns the view that fits the variable. 1xN char arrays are
// strings, 1x1 structs are structs, and numeric, logical and char arrays are
// elements, vectors or multi-dimensional arrays by shape. Complex arrays
// are unsupported.
func (v Variable) VariableType() VariableType {
	if !v.IsValid() {
		return TypeUnsupported
	}
	r := v.rec
	switch {
	case r.Class == matvar.ClassCell:
		return TypeCellArray
	case r.Class == matvar.ClassStruct:
		if isScalar(r.Dims) {
			return TypeStruct
		}
		return TypeStructArray
	case r.Complex:
		return TypeUnsupported
	case r.Class == matvar.ClassChar && len(r.Dims) == 2 && r.Dims[0] == 1:
		return TypeString
	case r.Class.Numeric() || r.Class == matvar.ClassChar:
		switch {
		case isScalar(r.Dims):
			return TypeElement
		case isVector(r.Dims):
			return TypeVector
		}
		return TypeMultiDimensionalArray
	}
	return TypeUnsupported
}

func isScalar(dims []int) bool {
	return len(dims) == 2 && dims[0] == 1 && dims[1] == 1
}

func isVector(dims []int) bool {
	return len(dims) == 2 && (dims[0] == 1 || dims[1] == 1)
}

// Renamed returns a handle to a copy of the record header under a new
// name. The data is shared.
func (v Variable) Renamed(name string) Variable {
	if !v.IsValid() {
		return v
	}
	out := v.rec.ShallowDuplicate()
	out.Name = name
	return Variable{rec: out}
}

// DeepCopy returns an independent copy of the variable.
func (v Variable) DeepCopy() Variable {
	if !v.IsValid() {
		return v
	}
	return Variable{rec: v.rec.DeepDuplicate()}
}

// rawIndex turns column-major subscripts into a linear index.
func rawIndex(dims []int, idx []int) (int, error) {
	if len(idx) != len(dims) {
		return 0, fmt.Errorf("%d subscripts for %d dimensions", len(idx), len(dims))
	}
	pos, stride := 0, 1
	for i, d := range dims {
		if idx[i] < 0 || idx[i] >= d {
			return 0, fmt.Errorf("subscript %d is %d, dimension is %d", i, idx[i], d)
		}
		pos += idx[i] * stride
		stride *= d
	}
	return pos, nil
}

// checkNumeric reports whether v can be viewed as data of type T.
func checkNumeric[T ElementType](op string, v Variable) bool {
	if !v.IsValid() {
		logViewError(op, "the variable is not valid")
		return false
	}
	if v.rec.Complex {
		logViewError(op, "%q is complex", v.rec.Name)
		return false
	}
	if !(v.rec.Class.Numeric() || v.rec.Class == matvar.ClassChar) || v.rec.Kind() != kindOf[T]() {
		logViewError(op, "%q holds %s data, not %s", v.rec.Name, v.rec.ClassName(), kindOf[T]())
		return false
	}
	return true
}
