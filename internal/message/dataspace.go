package message

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
)

// DataspaceKind distinguishes scalar, simple and null dataspaces.
type DataspaceKind uint8

const (
	DataspaceScalar DataspaceKind = 0
	DataspaceSimple DataspaceKind = 1
	DataspaceNull   DataspaceKind = 2
)

// Dataspace gives the shape of a dataset or attribute in HDF5 (row-major)
// order.
type Dataspace struct {
	Kind       DataspaceKind
	Dimensions []uint64
	MaxDims    []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the element count; 1 for scalars and 0 for null spaces.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dimensions {
		n *= d
	}
	return n
}

func parseDataspace(data []byte, cfg binary.Config) (*Dataspace, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dataspace message too short: %d bytes", len(data))
	}
	version, rank, flags := data[0], int(data[1]), data[2]
	ds := &Dataspace{Kind: DataspaceSimple}

	r := reader(data, cfg)
	switch version {
	case 1:
		r.Skip(8)
		if rank == 0 {
			ds.Kind = DataspaceScalar
		}
	case 2:
		ds.Kind = DataspaceKind(data[3])
		r.Skip(4)
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", version)
	}

	var err error
	if ds.Dimensions, err = readLengths(r, rank); err != nil {
		return nil, fmt.Errorf("dataspace dimensions: %w", err)
	}
	if flags&0x01 != 0 {
		if ds.MaxDims, err = readLengths(r, rank); err != nil {
			return nil, fmt.Errorf("dataspace max dimensions: %w", err)
		}
	}
	return ds, nil
}

func readLengths(r *binary.Reader, n int) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]uint64, n)
	for i := range out {
		v, err := r.ReadLength()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Encode writes a version 2 dataspace without maximum dimensions.
func (m *Dataspace) Encode(w *binary.Writer) error {
	rank := len(m.Dimensions)
	if m.Kind != DataspaceSimple {
		rank = 0
	}
	if err := w.WriteBytes([]byte{2, uint8(rank), 0, uint8(m.Kind)}); err != nil {
		return err
	}
	for i := 0; i < rank; i++ {
		if err := w.WriteLength(m.Dimensions[i]); err != nil {
			return err
		}
	}
	return nil
}

// NewScalarDataspace returns a single-element dataspace.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Kind: DataspaceScalar}
}

// NewSimpleDataspace returns a dataspace with the given row-major dimensions.
func NewSimpleDataspace(dims ...uint64) *Dataspace {
	return &Dataspace{Kind: DataspaceSimple, Dimensions: append([]uint64(nil), dims...)}
}
