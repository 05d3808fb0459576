// Package h5 is a small HDF5 container API: open or create a file, walk its
// groups, read datasets and attributes, and append new objects.
//
// Files may carry a user block in front of the superblock; every address is
// relative to the superblock. Writes never modify existing objects. New
// objects go at the end of file and changed group headers are rewritten there
// too, after which Flush points the superblock at the new root.
package h5

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/robert-malhotra/go-matio/internal/alloc"
	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/heap"
	"github.com/robert-malhotra/go-matio/internal/superblock"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrNotGroup    = errors.New("object is not a group")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrExists      = errors.New("link already exists")
	ErrReadOnly    = errors.New("file is not writable")
	ErrUnsupported = errors.New("unsupported feature")
)

// Storage is what a writable file needs from its backing store.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

// File is an open HDF5 container.
type File struct {
	sb   *superblock.Superblock
	r    *binary.Reader
	w    *binary.Writer
	root *Group

	alloc *alloc.Allocator

	// collections caches global heap collections by address.
	collections map[uint64]*heap.Collection
}

// Open opens a container for reading.
func Open(r io.ReaderAt) (*File, error) {
	return open(r, nil)
}

// OpenWritable opens a container for reading and appending.
func OpenWritable(s Storage) (*File, error) {
	return open(s, s)
}

func open(r io.ReaderAt, w io.WriterAt) (*File, error) {
	sb, err := superblock.Read(r)
	if err != nil {
		return nil, err
	}
	f := newFile(sb, r, w)
	if w != nil {
		f.alloc = alloc.New(sb.EOFAddress)
	}
	root, err := f.openGroup(sb.RootGroupAddress, nil, "")
	if err != nil {
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	f.root = root
	return f, nil
}

// Create writes an empty container whose superblock starts at userblock.
// The bytes before it belong to the caller.
func Create(s Storage, userblock int64) (*File, error) {
	if userblock != 0 && (userblock < 512 || userblock&(userblock-1) != 0) {
		return nil, fmt.Errorf("user block size %d must be 0 or a power of two of at least 512", userblock)
	}
	sb := superblock.New()
	sb.Location = userblock
	sb.BaseAddress = uint64(userblock)
	f := newFile(sb, s, s)
	f.alloc = alloc.New(uint64(sb.Size()))
	f.root = &Group{file: f, dirty: true}
	if err := f.Flush(); err != nil {
		return nil, err
	}
	return f, nil
}

func newFile(sb *superblock.Superblock, r io.ReaderAt, w io.WriterAt) *File {
	cfg := sb.Config()
	f := &File{
		sb:          sb,
		r:           binary.NewReader(io.NewSectionReader(r, sb.Location, math.MaxInt64-sb.Location), cfg),
		collections: make(map[uint64]*heap.Collection),
	}
	if w != nil {
		f.w = binary.NewWriter(io.NewOffsetWriter(w, sb.Location), cfg)
	}
	return f
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Writable reports whether the file accepts new objects.
func (f *File) Writable() bool {
	return f.w != nil
}

// Config returns the file's offset and length sizes.
func (f *File) Config() binary.Config {
	return f.sb.Config()
}

// Stats reports space handed out by this session.
func (f *File) Stats() alloc.Stats {
	if f.alloc == nil {
		return alloc.Stats{}
	}
	return f.alloc.Stats()
}

// Flush rewrites every changed group and then the superblock.
func (f *File) Flush() error {
	if f.w == nil {
		return ErrReadOnly
	}
	if _, err := f.root.flush(); err != nil {
		return err
	}
	f.sb.RootGroupAddress = f.root.addr
	f.sb.EOFAddress = f.alloc.EOF()
	if err := f.sb.Write(f.w.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// collection returns the global heap collection at addr.
func (f *File) collection(addr uint64) (*heap.Collection, error) {
	if c, ok := f.collections[addr]; ok {
		return c, nil
	}
	c, err := heap.ReadCollection(f.r, addr)
	if err != nil {
		return nil, err
	}
	f.collections[addr] = c
	return c, nil
}
