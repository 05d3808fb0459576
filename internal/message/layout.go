package message

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
)

// DataLayout says where and how the raw data of a dataset is stored.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Address is the data address for contiguous storage and the chunk
	// B-tree address for chunked storage.
	Address uint64

	// Size is the contiguous data size. Zero when the version does not
	// record it.
	Size uint64

	// CompactData holds the raw data of compact storage.
	CompactData []byte

	// ChunkDims are the chunk dimensions, without the element size.
	ChunkDims   []uint32
	ElementSize uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func parseDataLayout(data []byte, cfg binary.Config) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("layout message too short: %d bytes", len(data))
	}
	switch data[0] {
	case 1, 2:
		return parseLayoutV1V2(data, cfg)
	case 3, 4:
		return parseLayoutV3V4(data, cfg)
	}
	return nil, fmt.Errorf("unsupported layout version %d", data[0])
}

// Versions 1 and 2: version, rank, class, 5 reserved bytes, an address for
// non-compact storage, rank 4-byte dimensions, then for compact storage a
// 4-byte size and the data.
func parseLayoutV1V2(data []byte, cfg binary.Config) (*DataLayout, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("layout message too short: %d bytes", len(data))
	}
	m := &DataLayout{Version: data[0], Class: LayoutClass(data[2])}
	rank := int(data[1])

	r := reader(data, cfg).At(8)
	var err error
	if m.Class != LayoutCompact {
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, fmt.Errorf("layout address: %w", err)
		}
	}
	dims := make([]uint32, rank)
	for i := range dims {
		if dims[i], err = r.ReadUint32(); err != nil {
			return nil, fmt.Errorf("layout dimensions: %w", err)
		}
	}

	switch m.Class {
	case LayoutCompact:
		size, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("compact size: %w", err)
		}
		if m.CompactData, err = r.ReadBytes(int(size)); err != nil {
			return nil, fmt.Errorf("compact data: %w", err)
		}
		m.Size = uint64(size)
	case LayoutChunked:
		if rank < 1 {
			return nil, fmt.Errorf("chunked layout without dimensions")
		}
		m.ChunkDims = dims[:rank-1]
		m.ElementSize = dims[rank-1]
	}
	return m, nil
}

func parseLayoutV3V4(data []byte, cfg binary.Config) (*DataLayout, error) {
	m := &DataLayout{Version: data[0], Class: LayoutClass(data[1])}
	r := reader(data, cfg).At(2)

	switch m.Class {
	case LayoutCompact:
		size, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("compact size: %w", err)
		}
		if m.CompactData, err = r.ReadBytes(int(size)); err != nil {
			return nil, fmt.Errorf("compact data: %w", err)
		}
		m.Size = uint64(size)

	case LayoutContiguous:
		var err error
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, fmt.Errorf("contiguous address: %w", err)
		}
		if m.Size, err = r.ReadLength(); err != nil {
			return nil, fmt.Errorf("contiguous size: %w", err)
		}

	case LayoutChunked:
		if m.Version == 4 {
			return nil, fmt.Errorf("version 4 chunk indexes are not supported")
		}
		rank, err := r.ReadUint8()
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("chunked layout rank: %v", err)
		}
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, fmt.Errorf("chunk index address: %w", err)
		}
		dims := make([]uint32, rank)
		for i := range dims {
			if dims[i], err = r.ReadUint32(); err != nil {
				return nil, fmt.Errorf("chunk dimensions: %w", err)
			}
		}
		m.ChunkDims = dims[:rank-1]
		m.ElementSize = dims[rank-1]

	default:
		return nil, fmt.Errorf("unsupported layout class %d", m.Class)
	}
	return m, nil
}

// Encode writes a version 3 compact or contiguous layout.
func (m *DataLayout) Encode(w *binary.Writer) error {
	if err := w.WriteBytes([]byte{3, uint8(m.Class)}); err != nil {
		return err
	}
	switch m.Class {
	case LayoutCompact:
		if len(m.CompactData) > 0xFFFF {
			return fmt.Errorf("compact data of %d bytes exceeds 64 KiB", len(m.CompactData))
		}
		if err := w.WriteUint16(uint16(len(m.CompactData))); err != nil {
			return err
		}
		return w.WriteBytes(m.CompactData)
	case LayoutContiguous:
		if err := w.WriteOffset(m.Address); err != nil {
			return err
		}
		return w.WriteLength(m.Size)
	}
	return fmt.Errorf("cannot encode layout class %d", m.Class)
}

// NewCompactLayout stores data inside the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data, Size: uint64(len(data))}
}

// NewContiguousLayout points at size bytes stored at addr.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}
