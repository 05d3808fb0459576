package h5

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/heap"
	"github.com/robert-malhotra/go-matio/internal/layout"
	"github.com/robert-malhotra/go-matio/internal/message"
	"github.com/robert-malhotra/go-matio/internal/object"
)

// Object is a group or dataset header.
type Object struct {
	file    *File
	Address uint64
	Header  *object.Header
}

// Object reads the object header at addr.
func (f *File) Object(addr uint64) (*Object, error) {
	h, err := object.Read(f.r, addr)
	if err != nil {
		return nil, err
	}
	return &Object{file: f, Address: addr, Header: h}, nil
}

func (o *Object) IsGroup() bool {
	return o.Header.IsGroup()
}

// Group opens the object as a group. The result is not tracked for writing.
func (o *Object) Group() (*Group, error) {
	return o.file.openGroup(o.Address, nil, "")
}

func (o *Object) Attribute(name string) *message.Attribute {
	return o.Header.Attribute(name)
}

// StringAttribute returns a fixed or variable-length string attribute.
// Trailing padding is removed.
func (o *Object) StringAttribute(name string) (string, bool, error) {
	a := o.Header.Attribute(name)
	if a == nil {
		return "", false, nil
	}
	switch {
	case a.Datatype.Class == message.ClassString:
		return trimString(a.Data), true, nil
	case a.Datatype.Class == message.ClassVarLen && a.Datatype.VarLenString:
		items, err := o.file.ReadVarLen(a.Datatype, a.Data, 1)
		if err != nil {
			return "", true, fmt.Errorf("attribute %q: %w", name, err)
		}
		return trimString(items[0]), true, nil
	}
	return "", true, fmt.Errorf("attribute %q is not a string", name)
}

func trimString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

// UintAttribute returns the first element of an integer attribute.
func (o *Object) UintAttribute(name string) (uint64, bool, error) {
	a := o.Header.Attribute(name)
	if a == nil {
		return 0, false, nil
	}
	dt := a.Datatype
	if dt.Class != message.ClassFixedPoint || dt.Size == 0 || len(a.Data) < int(dt.Size) {
		return 0, true, fmt.Errorf("attribute %q is not an integer", name)
	}
	return binary.DecodeUint(dt.Order(), a.Data[:dt.Size]), true, nil
}

// Datatype returns the dataset's element type, or nil for groups.
func (o *Object) Datatype() *message.Datatype {
	return o.Header.Datatype()
}

// Dims returns the dataset's dimensions in storage order. Scalars have none.
func (o *Object) Dims() []uint64 {
	if ds := o.Header.Dataspace(); ds != nil {
		return ds.Dimensions
	}
	return nil
}

// Read returns the dataset's raw elements.
func (o *Object) Read() ([]byte, error) {
	if o.Header.Dataspace() == nil || o.Header.Datatype() == nil {
		return nil, ErrNotDataset
	}
	return layout.Read(o.file.r, layout.Dataset{
		Space:    o.Header.Dataspace(),
		Type:     o.Header.Datatype(),
		Layout:   o.Header.DataLayout(),
		Pipeline: o.Header.FilterPipeline(),
	})
}

// ReadVarLen resolves n variable-length elements of type dt stored in data.
func (f *File) ReadVarLen(dt *message.Datatype, data []byte, n int) ([][]byte, error) {
	cfg := f.Config()
	width := 4 + cfg.OffsetSize + 4
	if dt.Class != message.ClassVarLen {
		return nil, fmt.Errorf("datatype class %d is not variable-length", dt.Class)
	}
	if n < 0 || n > len(data)/width {
		return nil, fmt.Errorf("variable-length data holds %d bytes, need %d", len(data), n*width)
	}
	elem := 1
	if dt.Base != nil && !dt.VarLenString {
		elem = int(dt.Base.Size)
	}

	out := make([][]byte, n)
	for i := range out {
		rec := data[i*width : (i+1)*width]
		count := int(binary.DecodeUint(cfg.ByteOrder, rec[:4]))
		id, err := heap.DecodeID(rec[4:], cfg.OffsetSize)
		if err != nil {
			return nil, err
		}
		if count == 0 || id.Collection == 0 {
			out[i] = []byte{}
			continue
		}
		c, err := f.collection(id.Collection)
		if err != nil {
			return nil, err
		}
		obj, err := c.Object(id.Index)
		if err != nil {
			return nil, err
		}
		if want := count * elem; want <= len(obj) {
			obj = obj[:want]
		}
		out[i] = obj
	}
	return out, nil
}

// DecodeReferences splits object reference data into addresses.
func (f *File) DecodeReferences(data []byte) []uint64 {
	size := f.Config().OffsetSize
	out := make([]uint64, len(data)/size)
	for i := range out {
		out[i] = binary.DecodeUint(f.Config().ByteOrder, data[i*size:(i+1)*size])
	}
	return out
}

// EncodeReferences stores addresses as object reference data.
func (f *File) EncodeReferences(addrs []uint64) []byte {
	size := f.Config().OffsetSize
	out := make([]byte, len(addrs)*size)
	for i, a := range addrs {
		binary.EncodeUint(f.Config().ByteOrder, out[i*size:(i+1)*size], a)
	}
	return out
}
