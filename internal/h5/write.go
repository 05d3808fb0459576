package h5

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/heap"
	"github.com/robert-malhotra/go-matio/internal/message"
	"github.com/robert-malhotra/go-matio/internal/object"
)

// writeObject appends an object header and returns its address and size.
func (f *File) writeObject(msgs []message.Encoder) (uint64, uint64, error) {
	if f.w == nil {
		return 0, 0, ErrReadOnly
	}
	data, err := object.Encode(f.Config(), msgs...)
	if err != nil {
		return 0, 0, err
	}
	addr := f.alloc.Alloc(uint64(len(data)))
	if err := f.w.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, 0, err
	}
	return addr, uint64(len(data)), nil
}

// WriteDataset appends a contiguous dataset holding raw and returns its
// header address. dims are in storage order; no dims means a scalar.
func (f *File) WriteDataset(dt *message.Datatype, dims []uint64, raw []byte, attrs ...*message.Attribute) (uint64, error) {
	if f.w == nil {
		return 0, ErrReadOnly
	}
	space := message.NewScalarDataspace()
	if len(dims) > 0 {
		space = message.NewSimpleDataspace(dims...)
	}
	if want := space.NumElements() * uint64(dt.Size); uint64(len(raw)) != want {
		return 0, fmt.Errorf("dataset data is %d bytes, dimensions %v need %d", len(raw), dims, want)
	}

	dataAddr := binary.Undefined(f.Config().OffsetSize)
	if len(raw) > 0 {
		dataAddr = f.alloc.Alloc(uint64(len(raw)))
		if err := f.w.At(int64(dataAddr)).WriteBytes(raw); err != nil {
			return 0, fmt.Errorf("writing dataset data: %w", err)
		}
	}
	lay := message.NewContiguousLayout(dataAddr, uint64(len(raw)))
	addr, _, err := f.writeObject(object.DatasetMessages(space, dt, lay, attrs...))
	if err != nil {
		return 0, fmt.Errorf("writing dataset header: %w", err)
	}
	return addr, nil
}

// WriteGroup appends a group holding links and returns its header address.
// The group is not tracked; link it from a tracked group to reach it.
func (f *File) WriteGroup(links []Link, attrs ...*message.Attribute) (uint64, error) {
	seen := make(map[string]bool, len(links))
	msgs := make([]*message.Link, len(links))
	for i, l := range links {
		if seen[l.Name] {
			return 0, fmt.Errorf("%w: %q", ErrExists, l.Name)
		}
		seen[l.Name] = true
		msgs[i] = message.NewHardLink(l.Name, l.Address)
	}
	addr, _, err := f.writeObject(object.GroupMessages(msgs, attrs...))
	return addr, err
}

// VarLenAttribute stores items in a new global heap collection and returns
// a one-dimensional attribute of variable-length sequences of base.
func (f *File) VarLenAttribute(name string, base *message.Datatype, items [][]byte) (*message.Attribute, error) {
	if f.w == nil {
		return nil, ErrReadOnly
	}
	cfg := f.Config()
	var hw heap.Writer
	ids := make([]uint32, len(items))
	for i, it := range items {
		ids[i] = hw.Add(it)
	}
	coll, err := hw.Encode(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding global heap: %w", err)
	}
	addr := f.alloc.Alloc(uint64(len(coll)))
	if err := f.w.At(int64(addr)).WriteBytes(coll); err != nil {
		return nil, fmt.Errorf("writing global heap: %w", err)
	}

	bw, buf := binary.NewBufferWriter(cfg)
	for i, it := range items {
		if err := bw.WriteUint32(uint32(len(it) / int(base.Size))); err != nil {
			return nil, err
		}
		if err := heap.EncodeID(bw, heap.ID{Collection: addr, Index: ids[i]}); err != nil {
			return nil, err
		}
	}
	return message.NewAttribute(name,
		message.NewVarLenSequence(base, cfg.OffsetSize),
		message.NewSimpleDataspace(uint64(len(items))),
		buf.Bytes()), nil
}

// StringAttribute returns a scalar fixed-length ASCII attribute.
func StringAttribute(name, value string) *message.Attribute {
	return message.NewAttribute(name,
		message.NewString(uint32(len(value)), message.PadNullTerm),
		message.NewScalarDataspace(),
		[]byte(value))
}

// IntAttribute returns a scalar little-endian integer attribute of size bytes.
func IntAttribute(name string, value int64, size int, signed bool) *message.Attribute {
	data := make([]byte, size)
	binary.EncodeUint(binary.DefaultConfig().ByteOrder, data, uint64(value))
	return message.NewAttribute(name,
		message.NewFixedPoint(uint32(size), signed),
		message.NewScalarDataspace(),
		data)
}
