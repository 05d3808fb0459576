// Package btree walks version 1 HDF5 B-trees: group trees, whose leaves
// point at symbol table nodes, and raw data chunk trees.
package btree

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/heap"
)

const (
	nodeGroup = 0
	nodeChunk = 1
)

// maxDepth bounds recursion on corrupt files.
const maxDepth = 64

var (
	treeSignature = []byte("TREE")
	snodSignature = []byte("SNOD")
)

type node struct {
	level   uint8
	entries int
	r       *binary.Reader
}

// readNode parses a node header:
//
//	"TREE", type (1), level (1), entries used (2), left sibling (O), right sibling (O)
//
// and returns a reader positioned at the first key.
func readNode(r *binary.Reader, address uint64, kind uint8) (*node, error) {
	nr := r.At(int64(address))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("b-tree node at %d: %w", address, err)
	}
	if !bytes.Equal(head[:4], treeSignature) {
		return nil, fmt.Errorf("b-tree node at %d: bad signature %q", address, head[:4])
	}
	if head[4] != kind {
		return nil, fmt.Errorf("b-tree node at %d: type %d, want %d", address, head[4], kind)
	}
	nr.Skip(int64(2 * nr.OffsetSize()))
	return &node{
		level:   head[5],
		entries: int(head[6]) | int(head[7])<<8,
		r:       nr,
	}, nil
}

// Link type of a symbol table entry.
const (
	LinkHard = 0
	LinkSoft = 1
)

// GroupEntry is one member of an old-style group.
type GroupEntry struct {
	Name     string
	Address  uint64
	LinkType int
	Target   string
}

// ReadGroup returns the entries of an old-style group in B-tree order,
// which is name order.
func ReadGroup(r *binary.Reader, address uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	return readGroupNode(r, address, names, 0)
}

func readGroupNode(r *binary.Reader, address uint64, names *heap.LocalHeap, depth int) ([]GroupEntry, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("b-tree at %d: too deep", address)
	}
	n, err := readNode(r, address, nodeGroup)
	if err != nil {
		return nil, err
	}

	var out []GroupEntry
	// keys and children alternate; group keys are heap offsets (L)
	for i := 0; i < n.entries; i++ {
		n.r.Skip(int64(n.r.LengthSize()))
		child, err := n.r.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("b-tree node at %d: %w", address, err)
		}
		var entries []GroupEntry
		if n.level == 0 {
			entries, err = readSymbolNode(r, child, names)
		} else {
			entries, err = readGroupNode(r, child, names, depth+1)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// readSymbolNode parses a symbol table node:
//
//	"SNOD", version (1), reserved (1), symbol count (2), entries
//
// Each entry is a name offset (O), an object header address (O), a cache
// type (4), reserved (4) and a 16-byte scratch pad.
func readSymbolNode(r *binary.Reader, address uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(address))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", address, err)
	}
	if !bytes.Equal(head[:4], snodSignature) {
		return nil, fmt.Errorf("symbol node at %d: bad signature %q", address, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("symbol node at %d: unsupported version %d", address, head[4])
	}
	count := int(head[6]) | int(head[7])<<8

	out := make([]GroupEntry, 0, count)
	for i := 0; i < count; i++ {
		nameOff, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("symbol node at %d: %w", address, err)
		}
		addr, _ := nr.ReadOffset()
		cache, _ := nr.ReadUint32()
		nr.Skip(4)
		scratch, err := nr.ReadBytes(16)
		if err != nil {
			return nil, fmt.Errorf("symbol node at %d: %w", address, err)
		}

		name, err := names.String(nameOff)
		if err != nil {
			return nil, fmt.Errorf("symbol node at %d: %w", address, err)
		}
		e := GroupEntry{Name: name, Address: addr}
		if cache == 2 {
			e.LinkType = LinkSoft
			off := uint64(scratch[0]) | uint64(scratch[1])<<8 | uint64(scratch[2])<<16 | uint64(scratch[3])<<24
			if e.Target, err = names.String(off); err != nil {
				return nil, fmt.Errorf("soft link %q: %w", name, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Chunk locates one stored chunk of a dataset.
type Chunk struct {
	// Offset is the chunk's first element in dataset coordinates.
	Offset     []uint64
	Size       uint32
	FilterMask uint32
	Address    uint64
}

// ReadChunks returns every chunk of a chunked dataset of the given rank.
//
// Chunk keys are a size (4), a filter mask (4) and rank+1 8-byte offsets,
// the last of which is always zero.
func ReadChunks(r *binary.Reader, address uint64, rank int) ([]Chunk, error) {
	return readChunkNode(r, address, rank, 0)
}

func readChunkNode(r *binary.Reader, address uint64, rank, depth int) ([]Chunk, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("b-tree at %d: too deep", address)
	}
	n, err := readNode(r, address, nodeChunk)
	if err != nil {
		return nil, err
	}

	var out []Chunk
	for i := 0; i < n.entries; i++ {
		size, err := n.r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("chunk key at %d: %w", address, err)
		}
		mask, _ := n.r.ReadUint32()
		offset := make([]uint64, rank+1)
		for d := range offset {
			if offset[d], err = n.r.ReadUint64(); err != nil {
				return nil, fmt.Errorf("chunk key at %d: %w", address, err)
			}
		}
		child, err := n.r.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("chunk pointer at %d: %w", address, err)
		}

		if n.level > 0 {
			sub, err := readChunkNode(r, child, rank, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		if n.r.IsUndefinedOffset(child) {
			continue
		}
		out = append(out, Chunk{Offset: offset[:rank], Size: size, FilterMask: mask, Address: child})
	}
	return out, nil
}
