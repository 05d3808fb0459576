// Package layout reads the raw data of an HDF5 dataset from compact,
// contiguous or version 1 B-tree chunked storage.
package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/btree"
	"github.com/robert-malhotra/go-matio/internal/filter"
	"github.com/robert-malhotra/go-matio/internal/message"
)

// Dataset bundles the messages that describe where a dataset's data lives.
type Dataset struct {
	Space    *message.Dataspace
	Type     *message.Datatype
	Layout   *message.DataLayout
	Pipeline *message.FilterPipeline
}

// MaxSize bounds the bytes a single dataset may decode to.
const MaxSize = 1 << 34

// Size returns the expected number of bytes of data. It fails when the
// dataspace describes more than MaxSize bytes.
func (d Dataset) Size() (uint64, error) {
	n := uint64(d.Type.Size)
	if d.Space.Kind == message.DataspaceNull {
		return 0, nil
	}
	for _, dim := range d.Space.Dimensions {
		hi, lo := bits.Mul64(n, dim)
		if hi != 0 || lo > MaxSize {
			return 0, fmt.Errorf("dataspace %v of %d-byte elements exceeds %d bytes", d.Space.Dimensions, d.Type.Size, uint64(MaxSize))
		}
		n = lo
	}
	return n, nil
}

// Read returns the dataset's elements in row-major order. Storage that was
// never allocated reads as zeros.
func Read(r *binary.Reader, d Dataset) ([]byte, error) {
	if d.Space == nil || d.Type == nil || d.Layout == nil {
		return nil, fmt.Errorf("dataset is missing its dataspace, datatype or layout")
	}
	size, err := d.Size()
	if err != nil {
		return nil, err
	}

	switch d.Layout.Class {
	case message.LayoutCompact:
		if uint64(len(d.Layout.CompactData)) < size {
			return nil, fmt.Errorf("compact data holds %d bytes, need %d", len(d.Layout.CompactData), size)
		}
		return d.Layout.CompactData[:size], nil

	case message.LayoutContiguous:
		if size == 0 || r.IsUndefinedOffset(d.Layout.Address) {
			return make([]byte, size), nil
		}
		data, err := r.At(int64(d.Layout.Address)).ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("contiguous data at %d: %w", d.Layout.Address, err)
		}
		return data, nil

	case message.LayoutChunked:
		return readChunked(r, d, size)
	}
	return nil, fmt.Errorf("unsupported layout class %d", d.Layout.Class)
}

func readChunked(r *binary.Reader, d Dataset, size uint64) ([]byte, error) {
	out := make([]byte, size)
	if size == 0 || r.IsUndefinedOffset(d.Layout.Address) {
		return out, nil
	}
	dims := d.Space.Dimensions
	rank := len(dims)
	if len(d.Layout.ChunkDims) != rank {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(d.Layout.ChunkDims), rank)
	}
	elem := int(d.Type.Size)

	pipeline, err := filter.NewPipeline(d.Pipeline, elem)
	if err != nil {
		return nil, err
	}
	chunks, err := btree.ReadChunks(r, d.Layout.Address, rank)
	if err != nil {
		return nil, err
	}

	chunkBytes := elem
	for _, c := range d.Layout.ChunkDims {
		chunkBytes *= int(c)
	}
	for _, c := range chunks {
		raw, err := r.At(int64(c.Address)).ReadBytes(int(c.Size))
		if err != nil {
			return nil, fmt.Errorf("chunk at %d: %w", c.Address, err)
		}
		data, err := pipeline.Decode(raw, c.FilterMask)
		if err != nil {
			return nil, fmt.Errorf("chunk at %v: %w", c.Offset, err)
		}
		if len(data) < chunkBytes {
			return nil, fmt.Errorf("chunk at %v decoded to %d bytes, need %d", c.Offset, len(data), chunkBytes)
		}
		place(out, data, dims, d.Layout.ChunkDims, c.Offset, elem)
	}
	return out, nil
}

// place copies a full chunk into out, clipping at the dataset edges.
func place(out, chunk []byte, dims []uint64, chunkDims []uint32, offset []uint64, elem int) {
	rank := len(dims)
	if rank == 0 {
		copy(out, chunk[:elem])
		return
	}

	// rows are runs along the fastest (last) dimension
	last := rank - 1
	if offset[last] >= dims[last] {
		return
	}
	rowLen := int(min(uint64(chunkDims[last]), dims[last]-offset[last])) * elem

	idx := make([]uint64, rank) // position inside the chunk
	for {
		inside := true
		dst := uint64(0)
		src := uint64(0)
		for k := 0; k < rank; k++ {
			p := offset[k] + idx[k]
			if p >= dims[k] {
				inside = false
				break
			}
			dst = dst*dims[k] + p
			src = src*uint64(chunkDims[k]) + idx[k]
		}
		if inside {
			copy(out[dst*uint64(elem):], chunk[src*uint64(elem):src*uint64(elem)+uint64(rowLen)])
		}

		// advance every dimension but the last
		k := last - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < uint64(chunkDims[k]) {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return
		}
	}
}
