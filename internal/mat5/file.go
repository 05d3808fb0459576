package mat5

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-matio/internal/matvar"
)

// Storage is what a writable file needs from its backing store.
type Storage interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
}

// entry locates one top-level element.
type entry struct {
	name   string
	offset int64
	size   int64
}

// File is an open Level 5 MAT-file.
type File struct {
	r      io.ReaderAt
	w      Storage
	header Header
	// entries holds supported variables, skipped the rest, both in file order.
	entries []entry
	skipped []entry
	end     int64
}

// Open reads the header and the variable directory of a file of size bytes.
func Open(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r}
	if err := f.scan(size); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenWritable opens a file for reading and appending.
func OpenWritable(s Storage, size int64) (*File, error) {
	f, err := Open(s, size)
	if err != nil {
		return nil, err
	}
	if f.header.Order != binary.LittleEndian {
		return nil, fmt.Errorf("%w: appending to a big-endian file", ErrUnsupported)
	}
	f.w = s
	return f, nil
}

// Create writes a header holding text and returns an empty file.
func Create(s Storage, text string) (*File, error) {
	hdr := EncodeHeader(text, Version5)
	if err := s.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := s.WriteAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	h, _ := DecodeHeader(hdr)
	return &File{r: s, w: s, header: h, end: HeaderSize}, nil
}

func (f *File) scan(size int64) error {
	buf := make([]byte, HeaderSize)
	if _, err := f.r.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrNotMAT5, err)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return err
	}
	if h.Version != Version5 {
		return fmt.Errorf("%w: version 0x%04x", ErrNotMAT5, h.Version)
	}
	f.header = h

	off := int64(HeaderSize)
	tag := make([]byte, 8)
	for off+8 <= size {
		if _, err := f.r.ReadAt(tag, off); err != nil {
			return fmt.Errorf("element tag at %d: %w", off, err)
		}
		typ := h.Order.Uint32(tag)
		n := int64(h.Order.Uint32(tag[4:]))
		if typ>>16 != 0 {
			n = 0
		}
		e := entry{offset: off, size: 8 + n}
		if off+e.size > size {
			return fmt.Errorf("element at %d runs past end of file", off)
		}
		if typ == miMATRIX || typ == miCOMPRESSED {
			name, ok, err := f.peekName(e)
			if err != nil {
				return fmt.Errorf("element at %d: %w", off, err)
			}
			e.name = name
			if ok {
				f.entries = append(f.entries, e)
			} else {
				f.skipped = append(f.skipped, e)
			}
		}
		off += e.size
	}
	f.end = off
	return nil
}

// peekName returns an element's variable name and whether its class can be
// read.
func (f *File) peekName(e entry) (string, bool, error) {
	payload, err := f.payload(e)
	if err != nil {
		return "", false, err
	}
	if len(payload) == 0 {
		return "", false, nil
	}
	h, err := decodeMatrixHeader(payload, f.header.Order)
	if err != nil {
		return "", false, err
	}
	supported := h.class.Numeric() || h.class == matvar.ClassChar ||
		h.class == matvar.ClassCell || h.class == matvar.ClassStruct
	return h.name, supported, nil
}

func (f *File) payload(e entry) ([]byte, error) {
	raw := make([]byte, e.size)
	if _, err := f.r.ReadAt(raw, e.offset); err != nil {
		return nil, err
	}
	el, _, err := readElement(raw, f.header.Order)
	if err != nil {
		return nil, err
	}
	return unwrap(el, f.header.Order)
}

// Header returns the descriptive text of the header.
func (f *File) Header() string {
	return f.header.Text
}

// Names returns the readable variables in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.entries))
	for i, e := range f.entries {
		names[i] = e.name
	}
	return names
}

func (f *File) find(name string) (int, bool) {
	for i, e := range f.entries {
		if e.name == name {
			return i, true
		}
	}
	return -1, false
}

// taken reports whether any element, readable or skipped, is named name.
func (f *File) taken(name string) bool {
	if _, ok := f.find(name); ok {
		return true
	}
	for _, e := range f.skipped {
		if e.name == name {
			return true
		}
	}
	return false
}

// Read decodes the named variable.
func (f *File) Read(name string) (*matvar.Var, error) {
	i, ok := f.find(name)
	if !ok {
		for _, e := range f.skipped {
			if e.name == name {
				return nil, fmt.Errorf("%w: variable %q has an unsupported class", ErrUnsupported, name)
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	payload, err := f.payload(f.entries[i])
	if err != nil {
		return nil, err
	}
	return decodeMatrix(payload, f.header.Order, 0)
}

// Write appends v as an uncompressed element.
func (f *File) Write(v *matvar.Var) error {
	if f.w == nil {
		return ErrReadOnly
	}
	if err := matvar.CheckName(v.Name); err != nil {
		return err
	}
	if f.taken(v.Name) {
		return fmt.Errorf("%w: %q", ErrExists, v.Name)
	}
	el, err := EncodeMatrix(v, v.Name)
	if err != nil {
		return err
	}
	if _, err := f.w.WriteAt(el, f.end); err != nil {
		return err
	}
	f.entries = append(f.entries, entry{name: v.Name, offset: f.end, size: int64(len(el))})
	f.end += int64(len(el))
	return nil
}

// Remove deletes the named variable by moving the elements after it down
// and truncating the file.
func (f *File) Remove(name string) error {
	if f.w == nil {
		return ErrReadOnly
	}
	i, ok := f.find(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	e := f.entries[i]
	tail := make([]byte, f.end-(e.offset+e.size))
	if len(tail) > 0 {
		if _, err := f.r.ReadAt(tail, e.offset+e.size); err != nil {
			return err
		}
		if _, err := f.w.WriteAt(tail, e.offset); err != nil {
			return err
		}
	}
	if err := f.w.Truncate(f.end - e.size); err != nil {
		return err
	}

	f.entries = append(f.entries[:i], f.entries[i+1:]...)
	for _, list := range [][]entry{f.entries, f.skipped} {
		for j := range list {
			if list[j].offset > e.offset {
				list[j].offset -= e.size
			}
		}
	}
	f.end -= e.size
	return nil
}
