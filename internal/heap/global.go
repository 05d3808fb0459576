package heap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
)

var globalHeapSignature = []byte("GCOL")

// MinCollectionSize is the smallest collection the HDF5 library reads.
const MinCollectionSize = 4096

// ID locates one object in a global heap collection.
type ID struct {
	Collection uint64
	Index      uint32
}

// Collection is a loaded global heap collection.
type Collection struct {
	Address uint64
	objects map[uint16][]byte
}

// ReadCollection loads the collection at address.
//
//	"GCOL", version (1), reserved (3), collection size (L), then objects:
//	index (2), reference count (2), reserved (4), size (L), data padded to 8.
//
// Index 0 marks the free space at the end of the collection.
func ReadCollection(r *binpkg.Reader, address uint64) (*Collection, error) {
	hr := r.At(int64(address))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", address, err)
	}
	if !bytes.Equal(head[:4], globalHeapSignature) {
		return nil, fmt.Errorf("global heap at %d: bad signature %q", address, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("global heap at %d: unsupported version %d", address, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", address, err)
	}
	hsz := uint64(8 + r.LengthSize())
	if size < hsz {
		return nil, fmt.Errorf("global heap at %d: collection size %d too small", address, size)
	}
	body, err := r.At(int64(address + hsz)).ReadBytes(int(size - hsz))
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", address, err)
	}

	c := &Collection{Address: address, objects: make(map[uint16][]byte)}
	ohsz := 8 + r.LengthSize()
	for pos := 0; pos+ohsz <= len(body); {
		index := binary.LittleEndian.Uint16(body[pos:])
		if index == 0 {
			break
		}
		n := int(binpkg.DecodeUint(binary.LittleEndian, body[pos+8:pos+ohsz]))
		pos += ohsz
		if pos+n > len(body) {
			return nil, fmt.Errorf("global heap at %d: object %d overruns the collection", address, index)
		}
		c.objects[index] = body[pos : pos+n]
		pos += (n + 7) &^ 7
	}
	return c, nil
}

// Object returns a copy of the object with the given index.
func (c *Collection) Object(index uint32) ([]byte, error) {
	data, ok := c.objects[uint16(index)]
	if !ok || index > 0xFFFF {
		return nil, fmt.Errorf("global heap at %d: no object %d", c.Address, index)
	}
	return append([]byte(nil), data...), nil
}

// Writer collects objects for a single new collection.
type Writer struct {
	objects [][]byte
}

// Add queues data and returns its 1-based index.
func (w *Writer) Add(data []byte) uint32 {
	w.objects = append(w.objects, data)
	return uint32(len(w.objects))
}

// Encode lays out the collection. The result is at least MinCollectionSize
// bytes, with the unused tail described by a free-space object.
func (w *Writer) Encode(cfg binpkg.Config) ([]byte, error) {
	bw, buf := binpkg.NewBufferWriter(cfg)
	if err := bw.WriteBytes(globalHeapSignature); err != nil {
		return nil, err
	}
	if err := bw.WriteBytes([]byte{1, 0, 0, 0}); err != nil {
		return nil, err
	}
	sizePos := bw.Pos()
	if err := bw.WriteLength(0); err != nil {
		return nil, err
	}

	for i, obj := range w.objects {
		if err := writeObject(bw, uint16(i+1), 1, obj); err != nil {
			return nil, fmt.Errorf("object %d: %w", i+1, err)
		}
	}

	ohsz := int64(8 + cfg.LengthSize)
	used := bw.Pos()
	size := used + ohsz
	if size < MinCollectionSize {
		size = MinCollectionSize
	}
	// Object 0 describes the free space; its size covers its own header.
	if err := bw.WriteZeros(8); err != nil {
		return nil, err
	}
	if err := bw.WriteLength(uint64(size - used)); err != nil {
		return nil, err
	}
	if err := bw.WriteZeros(int(size - bw.Pos())); err != nil {
		return nil, err
	}
	if err := bw.At(sizePos).WriteLength(uint64(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeObject writes one heap object: index, reference count, reserved
// bytes, size, then data padded to 8 bytes.
func writeObject(bw *binpkg.Writer, index, refs uint16, data []byte) error {
	if err := bw.WriteUint16(index); err != nil {
		return err
	}
	if err := bw.WriteUint16(refs); err != nil {
		return err
	}
	if err := bw.WriteZeros(4); err != nil {
		return err
	}
	if err := bw.WriteLength(uint64(len(data))); err != nil {
		return err
	}
	if err := bw.WriteBytes(data); err != nil {
		return err
	}
	return bw.WritePadding(8)
}

// EncodeID writes a heap ID: collection address (O) then index (4).
func EncodeID(w *binpkg.Writer, id ID) error {
	if err := w.WriteOffset(id.Collection); err != nil {
		return err
	}
	return w.WriteUint32(id.Index)
}

// DecodeID parses a heap ID from raw bytes.
func DecodeID(data []byte, offsetSize int) (ID, error) {
	if len(data) < offsetSize+4 {
		return ID{}, fmt.Errorf("global heap ID needs %d bytes, have %d", offsetSize+4, len(data))
	}
	return ID{
		Collection: binpkg.DecodeUint(binary.LittleEndian, data[:offsetSize]),
		Index:      binary.LittleEndian.Uint32(data[offsetSize:]),
	}, nil
}
