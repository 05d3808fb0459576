// Package matfile opens MAT-files of any version behind one Container
// interface. Files live on a go-billy filesystem.
package matfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/h5"
	"github.com/robert-malhotra/go-matio/internal/mat4"
	"github.com/robert-malhotra/go-matio/internal/mat5"
	"github.com/robert-malhotra/go-matio/internal/mat73"
	"github.com/robert-malhotra/go-matio/internal/matvar"
)

// Version is an on-disk layout.
type Version int

const (
	VersionUnknown Version = iota
	Version4
	Version5
	Version73
)

func (v Version) String() string {
	switch v {
	case Version4:
		return "MAT4"
	case Version5:
		return "MAT5"
	case Version73:
		return "MAT7.3"
	}
	return "unknown"
}

// Error classes shared by every version. Codec errors are wrapped with one
// of these.
var (
	ErrFormat      = errors.New("not a MAT-file")
	ErrNotFound    = errors.New("variable not found")
	ErrExists      = errors.New("variable already exists")
	ErrReadOnly    = errors.New("file is not writable")
	ErrUnsupported = errors.New("unsupported")
	ErrInvalid     = errors.New("invalid variable")
)

// Container is one open MAT-file.
type Container interface {
	// Names lists the readable variables in file order.
	Names() []string
	Read(name string) (*matvar.Var, error)
	// Write appends v uncompressed. Names must be unique.
	Write(v *matvar.Var) error
	Remove(name string) error
	// Header returns the descriptive header text. Level 4 files have none.
	Header() (string, error)
	Version() Version
	Close() error
}

// codec is what the version packages have in common.
type codec interface {
	Names() []string
	Read(name string) (*matvar.Var, error)
	Write(v *matvar.Var) error
	Remove(name string) error
}

type container struct {
	file    billy.File
	version Version
	codec   codec
	header  string
}

// storage gives a billy file the positional writes the codecs need.
type storage struct {
	billy.File
	w *binary.SeekableWriterAt
}

func newStorage(f billy.File) *storage {
	return &storage{File: f, w: binary.NewSeekableWriterAt(f)}
}

func (s *storage) WriteAt(p []byte, off int64) (int, error) {
	return s.w.WriteAt(p, off)
}

// Open opens path and detects its version from the first bytes.
func Open(fs billy.Filesystem, path string, writable bool) (Container, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	var f billy.File
	if writable {
		f, err = fs.OpenFile(path, os.O_RDWR, 0)
	} else {
		f, err = fs.Open(path)
	}
	if err != nil {
		return nil, err
	}
	c, err := open(newStorage(f), info.Size(), writable)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func open(s *storage, size int64, writable bool) (*container, error) {
	c := &container{file: s.File}
	head := make([]byte, mat5.HeaderSize)
	n, err := s.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]

	c.version = sniff(head)
	switch c.version {
	case Version5:
		var f *mat5.File
		if writable {
			f, err = mat5.OpenWritable(s, size)
		} else {
			f, err = mat5.Open(s, size)
		}
		if err == nil {
			c.codec, c.header = f, f.Header()
		}
	case Version73:
		var f *mat73.File
		if writable {
			f, err = mat73.OpenWritable(s)
		} else {
			f, err = mat73.Open(s)
		}
		if err == nil {
			c.codec, c.header = f, f.Header()
		}
	case Version4:
		var f *mat4.File
		if writable {
			f, err = mat4.OpenWritable(s, size)
		} else {
			f, err = mat4.Open(s, size)
		}
		if err == nil {
			c.codec = f
		}
	default:
		return nil, ErrFormat
	}
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// sniff picks the layout: a Level 5 style header names 5 or 7.3, and
// anything else must start with a Level 4 record. An empty file is an empty
// Level 4 file.
func sniff(head []byte) Version {
	if h, err := mat5.DecodeHeader(head); err == nil {
		switch h.Version {
		case mat5.Version5:
			return Version5
		case mat5.Version73:
			return Version73
		}
	}
	if len(head) == 0 || mat4.Sniff(head) {
		return Version4
	}
	return VersionUnknown
}

// Create truncates or creates path and writes an empty container. An empty
// header is replaced by DefaultHeader.
func Create(fs billy.Filesystem, path string, version Version, header string) (Container, error) {
	if version < Version4 || version > Version73 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, version)
	}
	if header == "" {
		header = DefaultHeader(version, time.Now())
	}
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	s := newStorage(f)
	c := &container{file: f, version: version}
	switch version {
	case Version4:
		c.codec, err = mat4.Create(s)
	case Version5:
		var m *mat5.File
		if m, err = mat5.Create(s, header); err == nil {
			c.codec, c.header = m, m.Header()
		}
	case Version73:
		var m *mat73.File
		if m, err = mat73.Create(s, header); err == nil {
			c.codec, c.header = m, m.Header()
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, classify(err))
	}
	return c, nil
}

// headerTextSize is the room for descriptive text in a MAT-file header.
const headerTextSize = 116

// DefaultHeader returns the header text written when the caller gives none.
func DefaultHeader(version Version, now time.Time) string {
	return defaultHeader(version, runtime.GOOS, now)
}

func defaultHeader(version Version, platform string, now time.Time) string {
	prefix, suffix := "MATLAB 5.0 MAT-file", ""
	if version == Version73 {
		prefix, suffix = "MATLAB 7.3 MAT-file", " HDF5 schema 1.00 ."
	}
	h := fmt.Sprintf("%s, Platform: %s, Created by: go-matio, Created on: %s",
		prefix, platform, now.Format("Mon Jan _2 15:04:05 2006"))
	// The schema suffix identifies 7.3 files and must survive truncation.
	if room := headerTextSize - len(suffix); len(h) > room {
		h = h[:room]
	}
	return h + suffix
}

func (c *container) Names() []string {
	return c.codec.Names()
}

func (c *container) Read(name string) (*matvar.Var, error) {
	v, err := c.codec.Read(name)
	return v, classify(err)
}

func (c *container) Write(v *matvar.Var) error {
	return classify(c.codec.Write(v))
}

func (c *container) Remove(name string) error {
	return classify(c.codec.Remove(name))
}

func (c *container) Header() (string, error) {
	if c.version == Version4 {
		return "", fmt.Errorf("%w: Level 4 files have no header", ErrUnsupported)
	}
	return c.header, nil
}

func (c *container) Version() Version {
	return c.version
}

func (c *container) Close() error {
	return c.file.Close()
}

var classes = []struct {
	class   error
	members []error
}{
	{ErrNotFound, []error{mat4.ErrNotFound, mat5.ErrNotFound, mat73.ErrNotFound, h5.ErrNotFound}},
	{ErrExists, []error{mat4.ErrExists, mat5.ErrExists, mat73.ErrExists, h5.ErrExists}},
	{ErrReadOnly, []error{mat4.ErrReadOnly, mat5.ErrReadOnly, h5.ErrReadOnly}},
	{ErrUnsupported, []error{mat4.ErrUnsupported, mat5.ErrUnsupported, mat73.ErrUnsupported, h5.ErrUnsupported}},
	{ErrInvalid, []error{matvar.ErrInvalid}},
	{ErrFormat, []error{mat4.ErrNotMAT4, mat5.ErrNotMAT5, mat73.ErrNotMAT73}},
}

// classify wraps a codec error with its shared class.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range classes {
		for _, m := range c.members {
			if errors.Is(err, m) {
				return fmt.Errorf("%w: %w", c.class, err)
			}
		}
	}
	return err
}
