// Package heap reads HDF5 local heaps, which hold the link names of
// old-style groups, and reads and writes global heap collections, which hold
// variable-length data such as MATLAB struct field names.
package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
)

var localHeapSignature = []byte("HEAP")

// LocalHeap is a loaded local heap data segment.
type LocalHeap struct {
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap loads the local heap at address.
//
//	"HEAP", version (0), reserved (3), data segment size (L),
//	free list head offset (L), data segment address (O)
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, err)
	}
	if !bytes.Equal(head[:4], localHeapSignature) {
		return nil, fmt.Errorf("local heap at %d: bad signature %q", address, head[:4])
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("local heap at %d: unsupported version %d", address, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, err)
	}
	hr.Skip(int64(hr.LengthSize()))
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, err)
	}

	h := &LocalHeap{DataAddress: dataAddr}
	if h.data, err = r.At(int64(dataAddr)).ReadBytes(int(size)); err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return h, nil
}

// String returns the NUL-terminated string at offset.
func (h *LocalHeap) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.data)) {
		return "", fmt.Errorf("local heap offset %d out of range (%d bytes)", offset, len(h.data))
	}
	rest := h.data[offset:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	return string(rest), nil
}
