// Package matio reads and writes MATLAB MAT-files.
//
// A File holds one open container and the names it listed when it was
// opened. Variables come back as Variable handles that can be viewed as
// elements, vectors, arrays, strings, cell arrays and structs. Level 4,
// Level 5 and the HDF5-based 7.3 layout are supported.
//
// Every failure is returned as a coded error (see the Code constants) and is
// also logged as "[ERROR][matio.File.<op>] message".
package matio

import (
	"context"
	"fmt"

	"github.com/serum-errors/go-serum"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robert-malhotra/go-matio/internal/logging"
	"github.com/robert-malhotra/go-matio/internal/matfile"
)

// FileMode is the access mode of an open file.
type FileMode int

const (
	ReadOnly FileMode = iota
	ReadAndWrite
)

func (m FileMode) String() string {
	if m == ReadAndWrite {
		return "ReadAndWrite"
	}
	return "ReadOnly"
}

// FileVersion is the on-disk layout of a file.
type FileVersion int

const (
	Undefined FileVersion = iota
	MAT4
	MAT5
	MAT73
	// Default lets Create pick the layout, which is MAT5.
	Default
)

func (v FileVersion) String() string {
	switch v {
	case MAT4:
		return "MAT4"
	case MAT5:
		return "MAT5"
	case MAT73:
		return "MAT7.3"
	case Default:
		return "Default"
	}
	return "Undefined"
}

// ParseFileVersion accepts the names printed by FileVersion.String, their
// lower-case forms, and the bare numbers 4, 5 and 7.3.
func ParseFileVersion(s string) (FileVersion, error) {
	switch s {
	case "MAT4", "mat4", "4":
		return MAT4, nil
	case "MAT5", "mat5", "5":
		return MAT5, nil
	case "MAT7.3", "mat7.3", "MAT73", "mat73", "7.3":
		return MAT73, nil
	case "Default", "default":
		return Default, nil
	}
	return Undefined, fmt.Errorf("unknown file version %q", s)
}

var versions = map[matfile.Version]FileVersion{
	matfile.Version4:  MAT4,
	matfile.Version5:  MAT5,
	matfile.Version73: MAT73,
}

// File is a handle to one MAT-file. The zero value is not usable; start
// from New, OpenFile or Create. A File is not safe for concurrent use.
type File struct {
	opts *options
	log  *logging.Logger

	c     matfile.Container
	name  string
	mode  FileMode
	names []string
}

// New returns a closed handle.
func New(opts ...Option) *File {
	o := buildOptions(opts)
	return &File{opts: o, log: o.logger()}
}

// OpenFile returns a handle and opens name with it. The handle is never
// nil; on failure it is closed.
func OpenFile(name string, mode FileMode, opts ...Option) (*File, error) {
	f := New(opts...)
	return f, f.Open(name, mode)
}

func (f *File) start(op string) trace.Span {
	_, span := f.opts.tracer.Start(context.Background(), "matio.File."+op)
	return span
}

// fail logs err, records it on span and returns it.
func (f *File) fail(span trace.Span, op string, err error) error {
	f.log.Error("matio.File."+op, err)
	span.SetAttributes(attribute.String("matio.error.code", serum.Code(err)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Open releases the held container, if any, and opens name. On failure the
// handle is left closed in ReadOnly mode.
func (f *File) Open(name string, mode FileMode) error {
	span := f.start("open")
	defer span.End()
	span.SetAttributes(attribute.String("matio.path", name), attribute.String("matio.mode", mode.String()))

	f.release()
	c, err := matfile.Open(f.opts.fs, name, mode == ReadAndWrite)
	if err != nil {
		return f.fail(span, "open", errorFromContainer("open", name, "", err))
	}
	f.c, f.name, f.mode = c, name, mode
	f.names = c.Names()
	f.log.Debug("matio", "opened %s (%s, %s) with %d variables", name, f.Version(), mode, len(f.names))
	return nil
}

// Create makes a new file of the given version, truncating any existing
// one, and returns it open for reading and writing. An empty header is
// replaced by a default one. Undefined is rejected before anything touches
// the filesystem; the returned handle is then closed. The handle is never
// nil.
func Create(name string, version FileVersion, header string, opts ...Option) (*File, error) {
	f := New(opts...)
	span := f.start("Create")
	defer span.End()
	span.SetAttributes(attribute.String("matio.path", name), attribute.String("matio.version", version.String()))

	var v matfile.Version
	switch version {
	case MAT4:
		v = matfile.Version4
	case MAT5, Default:
		v = matfile.Version5
	case MAT73:
		v = matfile.Version73
	default:
		return f, f.fail(span, "Create", ErrorInvalidInput("Create", "cannot use Undefined as the file version"))
	}
	c, err := matfile.Create(f.opts.fs, name, v, header)
	if err != nil {
		return f, f.fail(span, "Create", errorFromContainer("Create", name, "", err))
	}
	f.c, f.name, f.mode = c, name, ReadAndWrite
	f.names = []string{}
	return f, nil
}

// Delete removes the file at name.
func Delete(name string, opts ...Option) error {
	f := New(opts...)
	span := f.start("Delete")
	defer span.End()
	span.SetAttributes(attribute.String("matio.path", name))

	if err := f.opts.fs.Remove(name); err != nil {
		return f.fail(span, "Delete", ErrorIo("Delete", name, err))
	}
	return nil
}

// IsOpen reports whether the handle holds a container.
func (f *File) IsOpen() bool {
	return f.c != nil
}

// Name returns the path the file was opened with, or "" when closed.
func (f *File) Name() string {
	if !f.IsOpen() {
		return ""
	}
	return f.name
}

// Header returns the header text. Closed files and Level 4 files, which
// have no header, return "".
func (f *File) Header() string {
	if !f.IsOpen() {
		return ""
	}
	h, err := f.c.Header()
	if err != nil {
		span := f.start("header")
		defer span.End()
		f.fail(span, "header", ErrorUnsupported("header", "the header is not available for "+f.Version().String()+" files"))
		return ""
	}
	return h
}

// Version returns the file's layout, or Undefined when closed.
func (f *File) Version() FileVersion {
	if !f.IsOpen() {
		return Undefined
	}
	return versions[f.c.Version()]
}

// Mode returns the access mode. A closed handle reports ReadOnly.
func (f *File) Mode() FileMode {
	return f.mode
}

// VariableNames returns the names listed when the file was opened or
// created. Variables written since are not included.
func (f *File) VariableNames() []string {
	return append([]string{}, f.names...)
}

// Has reports whether the open container holds name right now.
func (f *File) Has(name string) bool {
	if !f.IsOpen() {
		return false
	}
	for _, n := range f.c.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Read loads the named variable from the container. On failure the returned
// Variable is invalid.
func (f *File) Read(name string) (Variable, error) {
	span := f.start("read")
	defer span.End()
	span.SetAttributes(attribute.String("matio.variable", name))

	if !f.IsOpen() {
		return Variable{}, f.fail(span, "read", ErrorNotOpen("read"))
	}
	rec, err := f.c.Read(name)
	if err != nil {
		return Variable{}, f.fail(span, "read", errorFromContainer("read", f.name, name, err))
	}
	return Variable{rec: rec}, nil
}

// Write stores v uncompressed. The file must be open for writing and the
// name must not be taken.
func (f *File) Write(v Variable) error {
	span := f.start("write")
	defer span.End()

	switch {
	case !f.IsOpen():
		return f.fail(span, "write", ErrorNotOpen("write"))
	case f.mode != ReadAndWrite:
		return f.fail(span, "write", ErrorReadOnly("write", f.name))
	case !v.IsValid():
		return f.fail(span, "write", ErrorInvalidInput("write", "the input variable is not valid"))
	}
	span.SetAttributes(attribute.String("matio.variable", v.Name()))
	if err := f.c.Write(v.rec.ShallowDuplicate()); err != nil {
		return f.fail(span, "write", errorFromContainer("write", f.name, v.Name(), err))
	}
	f.log.Debug("matio", "wrote %s to %s", v.Name(), f.name)
	return nil
}

// Remove deletes the named variable from the container.
func (f *File) Remove(name string) error {
	span := f.start("remove")
	defer span.End()
	span.SetAttributes(attribute.String("matio.variable", name))

	switch {
	case !f.IsOpen():
		return f.fail(span, "remove", ErrorNotOpen("remove"))
	case f.mode != ReadAndWrite:
		return f.fail(span, "remove", ErrorReadOnly("remove", f.name))
	}
	if err := f.c.Remove(name); err != nil {
		return f.fail(span, "remove", errorFromContainer("remove", f.name, name, err))
	}
	return nil
}

// Close releases the container. Closing a closed handle does nothing.
func (f *File) Close() error {
	span := f.start("close")
	defer span.End()
	name := f.name
	if err := f.release(); err != nil {
		return f.fail(span, "close", ErrorIo("close", name, err))
	}
	return nil
}

// release closes the container and resets the handle to its closed state.
func (f *File) release() error {
	var err error
	if f.c != nil {
		err = f.c.Close()
	}
	f.c, f.name, f.mode, f.names = nil, "", ReadOnly, nil
	return err
}
