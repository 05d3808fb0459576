package dtype

import "fmt"

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Convert returns src converted element-wise to kind k, using Go conversion
// rules. Booleans convert to 0/1 and from non-zero. A slice already of kind
// k is returned as is.
func Convert(src any, k Kind) (any, error) {
	if Of(src) == Invalid {
		return nil, fmt.Errorf("cannot convert %T", src)
	}
	if Of(src) == k {
		return src, nil
	}
	switch k {
	case Int8:
		return to[int8](src), nil
	case Uint8:
		return to[uint8](src), nil
	case Int16:
		return to[int16](src), nil
	case Uint16:
		return to[uint16](src), nil
	case Int32:
		return to[int32](src), nil
	case Uint32:
		return to[uint32](src), nil
	case Int64:
		return to[int64](src), nil
	case Uint64:
		return to[uint64](src), nil
	case Float32:
		return to[float32](src), nil
	case Float64:
		return to[float64](src), nil
	case CharKind:
		return to[Char](src), nil
	case Bool:
		return toBool(src), nil
	}
	return nil, fmt.Errorf("cannot convert to %s", k)
}

func to[D number](src any) []D {
	switch s := src.(type) {
	case []int8:
		return cast[D](s)
	case []uint8:
		return cast[D](s)
	case []int16:
		return cast[D](s)
	case []uint16:
		return cast[D](s)
	case []int32:
		return cast[D](s)
	case []uint32:
		return cast[D](s)
	case []int64:
		return cast[D](s)
	case []uint64:
		return cast[D](s)
	case []float32:
		return cast[D](s)
	case []float64:
		return cast[D](s)
	case []Char:
		return cast[D](s)
	case []bool:
		out := make([]D, len(s))
		for i, v := range s {
			if v {
				out[i] = 1
			}
		}
		return out
	}
	return nil
}

func cast[D, S number](src []S) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = D(v)
	}
	return out
}

func toBool(src any) []bool {
	if b, ok := src.([]bool); ok {
		return b
	}
	f := to[float64](src)
	out := make([]bool, len(f))
	for i, v := range f {
		out[i] = v != 0
	}
	return out
}
