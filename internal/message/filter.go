package message

import (
	"encoding/binary"
	"fmt"
)

// Filter identifiers registered with HDF5.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Name       string
	Flags      uint16
	ClientData []uint32
}

// Optional reports whether a reader may skip the filter when it is missing.
func (f FilterInfo) Optional() bool {
	return f.Flags&0x01 != 0
}

// FilterPipeline lists the filters applied to chunked data, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func parseFilterPipeline(data []byte) (*FilterPipeline, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("filter pipeline message too short")
	}
	m := &FilterPipeline{Version: data[0]}
	count := int(data[1])

	var pos int
	switch m.Version {
	case 1:
		pos = 8
	case 2:
		pos = 2
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
	}

	le := binary.LittleEndian
	need := func(n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("filter pipeline truncated at byte %d", pos)
		}
		return nil
	}

	for i := 0; i < count; i++ {
		var f FilterInfo
		if err := need(2); err != nil {
			return nil, err
		}
		f.ID = le.Uint16(data[pos:])
		pos += 2

		nameLen := 0
		if m.Version == 1 || f.ID >= 256 {
			if err := need(2); err != nil {
				return nil, err
			}
			nameLen = int(le.Uint16(data[pos:]))
			pos += 2
		}
		if err := need(4); err != nil {
			return nil, err
		}
		f.Flags = le.Uint16(data[pos:])
		nvals := int(le.Uint16(data[pos+2:]))
		pos += 4

		if nameLen > 0 {
			if err := need(nameLen); err != nil {
				return nil, err
			}
			f.Name = cstring(data[pos : pos+nameLen])
			if m.Version == 1 {
				nameLen = pad8(nameLen)
			}
			pos += nameLen
		}

		if err := need(4 * nvals); err != nil {
			return nil, err
		}
		for j := 0; j < nvals; j++ {
			f.ClientData = append(f.ClientData, le.Uint32(data[pos:]))
			pos += 4
		}
		if m.Version == 1 && nvals%2 == 1 {
			pos += 4
		}
		m.Filters = append(m.Filters, f)
	}
	return m, nil
}
