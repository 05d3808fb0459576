package matvar

import (
	"errors"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-matio/internal/dtype"
)

func TestParseClass(t *testing.T) {
	tests := []struct {
		name    string
		class   Class
		logical bool
	}{
		{"double", ClassDouble, false},
		{"int32", ClassInt32, false},
		{"char", ClassChar, false},
		{"cell", ClassCell, false},
		{"struct", ClassStruct, false},
		{"logical", ClassUint8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, logical, err := ParseClass(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if c != tt.class || logical != tt.logical {
				t.Errorf("got %s logical=%v", c, logical)
			}
		})
	}
	if _, _, err := ParseClass("table"); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestClassOf(t *testing.T) {
	for _, c := range []Class{ClassDouble, ClassSingle, ClassInt8, ClassUint8, ClassInt16, ClassUint16,
		ClassInt32, ClassUint32, ClassInt64, ClassUint64, ClassChar} {
		back, logical := ClassOf(c.Kind())
		if back != c || logical {
			t.Errorf("%s came back as %s", c, back)
		}
	}
	if c, logical := ClassOf(dtype.Bool); c != ClassUint8 || !logical {
		t.Errorf("bool maps to %s logical=%v", c, logical)
	}
}

func TestNewNumericValidates(t *testing.T) {
	v, err := NewNumeric("m", []int{2, 3}, []int16{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if v.Class != ClassInt16 || v.NumElements() != 6 {
		t.Errorf("got class %s with %d elements", v.Class, v.NumElements())
	}

	if _, err := NewNumeric("m", []int{2, 2}, []int16{1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, err := NewNumeric("m", []int{3}, []int16{1, 2, 3}); err == nil {
		t.Error("expected error for a single dimension")
	}
	if _, err := NewNumeric("m", []int{1, 1}, []string{"x"}); err == nil {
		t.Error("expected error for unsupported element type")
	}

	b, err := NewNumeric("flag", []int{1, 2}, []bool{true, false})
	if err != nil {
		t.Fatal(err)
	}
	if !b.Logical || b.ClassName() != "logical" {
		t.Errorf("bool slice gives %s", b.ClassName())
	}
}

func TestComplex(t *testing.T) {
	if _, err := NewComplex("z", []int{1, 2}, []float64{1, 2}, []float64{3, 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewComplex("z", []int{1, 2}, []float64{1, 2}, []float32{3, 4}); err == nil {
		t.Error("expected error for mismatched imaginary type")
	}
	if _, err := NewComplex("z", []int{1, 1}, []bool{true}, []bool{false}); err == nil {
		t.Error("expected error for complex logical")
	}
}

func TestCharRoundTrip(t *testing.T) {
	for _, s := range []string{"", "test", "héllo", "a😀b"} {
		v := NewChar("s", s)
		if err := v.Validate(); err != nil {
			t.Fatal(err)
		}
		if got := v.String(); got != s {
			t.Errorf("expected %q, got %q", s, got)
		}
	}
	if n := NewChar("s", "a😀").Dims[1]; n != 3 {
		t.Errorf("surrogate pair should take two code units, got %d", n)
	}
}

func TestCellAndStruct(t *testing.T) {
	c, err := NewCell("c", []int{1, 3}, []*Var{NewChar("", "x")})
	if err != nil {
		t.Fatal(err)
	}
	if c.Cells[2].Class != ClassDouble || !c.Cells[2].IsEmpty() {
		t.Error("missing cells should be empty doubles")
	}

	s, err := NewStruct("s", []int{1, 2}, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Values) != 4 {
		t.Fatalf("expected 4 values, got %d", len(s.Values))
	}
	s.Values[3] = NewChar("b", "second")
	if got := s.Field(1, "b").String(); got != "second" {
		t.Errorf("Field(1, b) = %q", got)
	}
	if s.Field(2, "a") != nil || s.Field(0, "zz") != nil {
		t.Error("out of range lookups should be nil")
	}

	if _, err := NewStruct("s", []int{1, 1}, []string{"a", "a"}, nil); err == nil {
		t.Error("expected error for repeated field")
	}
}

func TestDuplicate(t *testing.T) {
	inner, _ := NewNumeric("x", []int{1, 2}, []float64{1, 2})
	outer, _ := NewCell("c", []int{1, 1}, []*Var{inner})

	shallow := outer.ShallowDuplicate()
	shallow.Name = "renamed"
	shallow.Dims[0] = 9
	if outer.Name != "c" || outer.Dims[0] != 1 {
		t.Error("shallow duplicate shares the header")
	}
	if shallow.Cells[0] != inner {
		t.Error("shallow duplicate should share cells")
	}

	deep := outer.DeepDuplicate()
	deep.Cells[0].Real.([]float64)[0] = 42
	if inner.Real.([]float64)[0] != 1 {
		t.Error("deep duplicate shares payload")
	}
	if !reflect.DeepEqual(outer.Cells[0].Dims, deep.Cells[0].Dims) {
		t.Error("deep duplicate lost dimensions")
	}

	var nilVar *Var
	if nilVar.DeepDuplicate() != nil || nilVar.ShallowDuplicate() != nil {
		t.Error("duplicating nil should give nil")
	}
	if !errors.Is(nilVar.Validate(), ErrInvalid) {
		t.Error("nil record should be invalid")
	}
}

func TestCheckName(t *testing.T) {
	long := "a"
	for len(long) < MaxNameLength {
		long += "b"
	}
	for name, ok := range map[string]bool{
		"x":        true,
		"X_1":      true,
		long:       true,
		long + "c": false,
		"":         false,
		"1x":       false,
		"_x":       false,
		"a-b":      false,
		"a.b":      false,
		"#refs#":   false,
	} {
		err := CheckName(name)
		if ok != (err == nil) {
			t.Errorf("CheckName(%q) = %v", name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalid) {
			t.Errorf("CheckName(%q) = %v, want ErrInvalid", name, err)
		}
	}
}

func TestElementCount(t *testing.T) {
	tests := []struct {
		dims  []int
		limit int
		want  int
		ok    bool
	}{
		{[]int{2, 3}, 6, 6, true},
		{[]int{2, 3}, 5, 0, false},
		{[]int{0, 1 << 40}, 0, 0, true},
		{[]int{-1, 2}, 10, 0, false},
		{[]int{1<<31 - 1, 1<<31 - 1, 1<<31 - 1}, 1 << 20, 0, false},
		{nil, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := ElementCount(tt.dims, tt.limit)
		if tt.ok != (err == nil) || got != tt.want {
			t.Errorf("ElementCount(%v, %d) = %d, %v", tt.dims, tt.limit, got, err)
		}
	}
}
