package dtype

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-matio/internal/message"
)

func TestFromHDF5(t *testing.T) {
	tests := []struct {
		name     string
		dt       *message.Datatype
		expected Kind
	}{
		{"int8", &message.Datatype{Class: message.ClassFixedPoint, Size: 1, Signed: true}, Int8},
		{"uint8", &message.Datatype{Class: message.ClassFixedPoint, Size: 1}, Uint8},
		{"int16", &message.Datatype{Class: message.ClassFixedPoint, Size: 2, Signed: true}, Int16},
		{"uint16", &message.Datatype{Class: message.ClassFixedPoint, Size: 2}, Uint16},
		{"int32", &message.Datatype{Class: message.ClassFixedPoint, Size: 4, Signed: true}, Int32},
		{"uint64", &message.Datatype{Class: message.ClassFixedPoint, Size: 8}, Uint64},
		{"float32", &message.Datatype{Class: message.ClassFloatPoint, Size: 4}, Float32},
		{"float64", &message.Datatype{Class: message.ClassFloatPoint, Size: 8}, Float64},
		{"enum", &message.Datatype{Class: message.ClassEnum, Size: 1,
			Base: &message.Datatype{Class: message.ClassFixedPoint, Size: 1}}, Uint8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromHDF5(tt.dt)
			if err != nil {
				t.Fatalf("FromHDF5 failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}

	if _, err := FromHDF5(message.NewString(4, message.PadNullTerm)); err == nil {
		t.Error("expected error for string datatype")
	}
}

func TestToHDF5(t *testing.T) {
	for _, k := range []Kind{Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64, Float32, Float64, CharKind} {
		dt, err := ToHDF5(k)
		if err != nil {
			t.Fatalf("ToHDF5(%s): %v", k, err)
		}
		back, err := FromHDF5(dt)
		if err != nil {
			t.Fatalf("FromHDF5(%s): %v", k, err)
		}
		want := k
		if k == CharKind {
			want = Uint16
		}
		if back != want {
			t.Errorf("%s came back as %s", k, back)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		slice any
	}{
		{"int8", []int8{-1, 0, 127}},
		{"uint16", []uint16{1, 65535}},
		{"int32", []int32{-2147483648, 7}},
		{"uint64", []uint64{1 << 63}},
		{"float32", []float32{1.5, -2.25}},
		{"float64", []float64{3.141592653589793, -0}},
		{"bool", []bool{true, false, true}},
		{"char", []Char{'h', 'i', 0x263A}},
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, tt := range tests {
			t.Run(tt.name+"/"+order.String(), func(t *testing.T) {
				raw, err := Encode(tt.slice, order)
				if err != nil {
					t.Fatal(err)
				}
				k := Of(tt.slice)
				if len(raw) != Len(tt.slice)*k.Size() {
					t.Errorf("encoded %d bytes", len(raw))
				}
				got, err := Decode(k, order, raw)
				if err != nil {
					t.Fatal(err)
				}
				if !reflect.DeepEqual(got, tt.slice) {
					t.Errorf("expected %v, got %v", tt.slice, got)
				}
			})
		}
	}
}

func TestDecodeBigEndian(t *testing.T) {
	got, err := Decode(Int16, binary.BigEndian, []byte{0xFF, 0xFE, 0x00, 0x05})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int16{-2, 5}) {
		t.Errorf("got %v", got)
	}
	if _, err := Decode(Int32, binary.LittleEndian, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for partial element")
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		src      any
		to       Kind
		expected any
	}{
		{"uint8 to double", []uint8{1, 2, 255}, Float64, []float64{1, 2, 255}},
		{"double to int32", []float64{1, -2}, Int32, []int32{1, -2}},
		{"bool to uint8", []bool{true, false}, Uint8, []uint8{1, 0}},
		{"uint8 to bool", []uint8{0, 3}, Bool, []bool{false, true}},
		{"uint16 to char", []uint16{'a', 'b'}, CharKind, []Char{'a', 'b'}},
		{"same kind", []int64{9}, Int64, []int64{9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.src, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}

	if _, err := Convert("nope", Int8); err == nil {
		t.Error("expected error for non-slice input")
	}
}

func TestCloneIndependent(t *testing.T) {
	src := []float64{1, 2}
	c := Clone(src).([]float64)
	c[0] = 9
	if src[0] != 1 {
		t.Error("clone shares storage with source")
	}
	if Clone(nil) != nil {
		t.Error("clone of nil should be nil")
	}
	if Make(Invalid, 3) != nil || Len(nil) != 0 {
		t.Error("invalid kind should produce nil")
	}
	if Bool.String() != "bool" || Kind(99).String() != "kind(99)" {
		t.Errorf("names = %s %s", Bool, Kind(99))
	}
}
