// Package mat73 reads and writes MAT-files version 7.3, which are HDF5
// containers behind a 512-byte user block holding a Level 5 style header.
//
// Each variable is a link in the root group. Numeric, char and logical arrays
// are datasets with their dimensions reversed, tagged with MATLAB_class.
// Cells are datasets of object references into the hidden "#refs#" group.
// Structs are groups whose MATLAB_fields attribute lists the field order.
package mat73

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/robert-malhotra/go-matio/internal/h5"
	"github.com/robert-malhotra/go-matio/internal/mat5"
)

// UserBlockSize is the space in front of the HDF5 superblock.
const UserBlockSize = 512

const refsGroup = "#refs#"

var (
	ErrNotMAT73    = errors.New("not a MAT-file version 7.3")
	ErrNotFound    = errors.New("variable not found")
	ErrExists      = errors.New("variable already exists")
	ErrUnsupported = errors.New("unsupported")
)

// File is an open version 7.3 MAT-file.
type File struct {
	h5     *h5.File
	header string
	refs   *h5.Group
	// nextRef numbers generated reference names.
	nextRef int
}

func readHeader(r io.ReaderAt) (string, error) {
	b := make([]byte, mat5.HeaderSize)
	if _, err := r.ReadAt(b, 0); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMAT73, err)
	}
	h, err := mat5.DecodeHeader(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMAT73, err)
	}
	if h.Version != mat5.Version73 {
		return "", fmt.Errorf("%w: version 0x%04x", ErrNotMAT73, h.Version)
	}
	return h.Text, nil
}

// Open opens a file for reading.
func Open(r io.ReaderAt) (*File, error) {
	text, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	hf, err := h5.Open(r)
	if err != nil {
		return nil, err
	}
	return &File{h5: hf, header: text}, nil
}

// OpenWritable opens a file for reading and appending.
func OpenWritable(s h5.Storage) (*File, error) {
	text, err := readHeader(s)
	if err != nil {
		return nil, err
	}
	hf, err := h5.OpenWritable(s)
	if err != nil {
		return nil, err
	}
	return &File{h5: hf, header: text}, nil
}

// Create writes the header and an empty HDF5 container.
func Create(s h5.Storage, text string) (*File, error) {
	block := make([]byte, UserBlockSize)
	copy(block, mat5.EncodeHeader(text, mat5.Version73))
	if _, err := s.WriteAt(block, 0); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	hf, err := h5.Create(s, UserBlockSize)
	if err != nil {
		return nil, err
	}
	h, _ := mat5.DecodeHeader(block)
	return &File{h5: hf, header: h.Text}, nil
}

// Header returns the descriptive text of the header.
func (f *File) Header() string {
	return f.header
}

// Names returns the readable variables in link order. Hidden "#"-prefixed
// links and objects of unsupported classes are left out.
func (f *File) Names() []string {
	var names []string
	for _, l := range f.h5.Root().Links() {
		if strings.HasPrefix(l.Name, "#") {
			continue
		}
		if obj, err := f.h5.Object(l.Address); err == nil && supported(obj) {
			names = append(names, l.Name)
		}
	}
	return names
}

// Remove unlinks the named variable. Objects it referenced stay in "#refs#".
func (f *File) Remove(name string) error {
	if strings.HasPrefix(name, "#") || !f.h5.Root().Has(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := f.h5.Root().RemoveLink(name); err != nil {
		return err
	}
	return f.h5.Flush()
}

// refsGroup returns the reference group, creating it on first use.
func (f *File) refsGroup() (*h5.Group, error) {
	if f.refs != nil {
		return f.refs, nil
	}
	root := f.h5.Root()
	var err error
	if root.Has(refsGroup) {
		f.refs, err = root.Subgroup(refsGroup)
	} else {
		f.refs, err = root.CreateGroup(refsGroup)
	}
	return f.refs, err
}

// addRef links addr into "#refs#" under a fresh name.
func (f *File) addRef(addr uint64) error {
	g, err := f.refsGroup()
	if err != nil {
		return err
	}
	for {
		name := refName(f.nextRef)
		f.nextRef++
		if !g.Has(name) {
			return g.AddLink(name, addr)
		}
	}
}

// refName spells n in bijective base 26: a..z, aa, ab, ...
func refName(n int) string {
	var b []byte
	for n++; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('a' + (n-1)%26)}, b...)
	}
	return string(b)
}
