// Package mat4 reads and writes Level 4 MAT-files: a plain sequence of
// two-dimensional matrices, each behind a 20-byte record header.
package mat4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-matio/internal/dtype"
	"github.com/robert-malhotra/go-matio/internal/matvar"
)

var (
	ErrNotMAT4     = errors.New("not a Level 4 MAT-file")
	ErrNotFound    = errors.New("variable not found")
	ErrUnsupported = errors.New("unsupported")
	ErrExists      = errors.New("variable already exists")
	ErrReadOnly    = errors.New("file is not writable")
)

const recordHeaderSize = 20

// Matrix types (the T digit).
const (
	typeFull   = 0
	typeText   = 1
	typeSparse = 2
)

// precisions maps the P digit to the stored element kind.
var precisions = [...]dtype.Kind{dtype.Float64, dtype.Float32, dtype.Int32, dtype.Int16, dtype.Uint16, dtype.Uint8}

var precisionClasses = [...]matvar.Class{matvar.ClassDouble, matvar.ClassSingle, matvar.ClassInt32,
	matvar.ClassInt16, matvar.ClassUint16, matvar.ClassUint8}

// Storage is what a writable file needs from its backing store.
type Storage interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
}

type record struct {
	order     binary.ByteOrder
	precision int
	typ       int
	rows      int
	cols      int
	complex   bool
	name      string
	offset    int64
	dataStart int64
	size      int64
}

// decodeRecordHeader parses a record header, trying little-endian first.
func decodeRecordHeader(b []byte) (*record, error) {
	if len(b) < recordHeaderSize {
		return nil, fmt.Errorf("%w: record header is %d bytes", ErrNotMAT4, len(b))
	}
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t := int32(order.Uint32(b))
		if t < 0 || t >= 5000 {
			continue
		}
		m, o, p, typ := t/1000, t/100%10, t/10%10, t%10
		if o != 0 || p > 5 || typ > 2 {
			continue
		}
		if (m == 0) != (order == binary.LittleEndian) || m > 1 {
			continue
		}
		r := &record{
			order:     order,
			precision: int(p),
			typ:       int(typ),
			rows:      int(int32(order.Uint32(b[4:]))),
			cols:      int(int32(order.Uint32(b[8:]))),
			complex:   order.Uint32(b[12:]) != 0,
		}
		namlen := int32(order.Uint32(b[16:]))
		if r.rows < 0 || r.cols < 0 || namlen < 1 {
			return nil, fmt.Errorf("%w: bad record dimensions", ErrNotMAT4)
		}
		r.dataStart = int64(namlen)
		return r, nil
	}
	return nil, fmt.Errorf("%w: unrecognised record type", ErrNotMAT4)
}

// dataSize returns the bytes of real plus imaginary data.
func (r *record) dataSize() int64 {
	n := int64(r.rows) * int64(r.cols) * int64(precisions[r.precision].Size())
	if r.complex {
		n *= 2
	}
	return n
}

// Sniff reports whether b starts with a valid Level 4 record header.
func Sniff(b []byte) bool {
	_, err := decodeRecordHeader(b)
	return err == nil
}

// File is an open Level 4 MAT-file.
type File struct {
	r       io.ReaderAt
	w       Storage
	records []*record
	end     int64
}

// Open scans the records of a file of size bytes. An empty file is an empty
// container.
func Open(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r}
	hdr := make([]byte, recordHeaderSize)
	for off := int64(0); off < size; {
		if _, err := r.ReadAt(hdr, off); err != nil {
			return nil, fmt.Errorf("%w: record at %d: %v", ErrNotMAT4, off, err)
		}
		rec, err := decodeRecordHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("record at %d: %w", off, err)
		}
		name := make([]byte, rec.dataStart)
		if _, err := r.ReadAt(name, off+recordHeaderSize); err != nil {
			return nil, fmt.Errorf("record name at %d: %w", off, err)
		}
		if i := indexZero(name); i >= 0 {
			name = name[:i]
		}
		rec.name = string(name)
		rec.offset = off
		rec.dataStart += off + recordHeaderSize
		rec.size = rec.dataStart - off + rec.dataSize()
		if off+rec.size > size {
			return nil, fmt.Errorf("%w: record %q runs past end of file", ErrNotMAT4, rec.name)
		}
		f.records = append(f.records, rec)
		off += rec.size
		f.end = off
	}
	return f, nil
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// OpenWritable opens a file for reading and appending.
func OpenWritable(s Storage, size int64) (*File, error) {
	f, err := Open(s, size)
	if err != nil {
		return nil, err
	}
	for _, rec := range f.records {
		if rec.order != binary.LittleEndian {
			return nil, fmt.Errorf("%w: appending to a big-endian file", ErrUnsupported)
		}
	}
	f.w = s
	return f, nil
}

// Create truncates s and returns an empty file.
func Create(s Storage) (*File, error) {
	if err := s.Truncate(0); err != nil {
		return nil, err
	}
	return &File{r: s, w: s}, nil
}

// Names returns the variable names in file order. Sparse matrices are
// skipped.
func (f *File) Names() []string {
	var names []string
	for _, rec := range f.records {
		if rec.typ != typeSparse {
			names = append(names, rec.name)
		}
	}
	return names
}

func (f *File) find(name string) (int, bool) {
	for i, rec := range f.records {
		if rec.name == name {
			return i, true
		}
	}
	return -1, false
}

// Read decodes the named matrix.
func (f *File) Read(name string) (*matvar.Var, error) {
	i, ok := f.find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	rec := f.records[i]
	if rec.typ == typeSparse {
		return nil, fmt.Errorf("%w: sparse matrix %q", ErrUnsupported, name)
	}
	raw := make([]byte, rec.dataSize())
	if _, err := f.r.ReadAt(raw, rec.dataStart); err != nil {
		return nil, fmt.Errorf("reading %q: %w", name, err)
	}

	kind := precisions[rec.precision]
	v := &matvar.Var{Name: name, Class: precisionClasses[rec.precision], Dims: []int{rec.rows, rec.cols}}
	target := kind
	if rec.typ == typeText {
		v.Class, target = matvar.ClassChar, dtype.CharKind
	}
	half := len(raw)
	if rec.complex {
		half /= 2
		v.Complex = rec.typ != typeText
	}
	var err error
	if v.Real, err = decode(kind, target, rec.order, raw[:half]); err != nil {
		return nil, fmt.Errorf("%q: %w", name, err)
	}
	if v.Complex {
		if v.Imag, err = decode(kind, target, rec.order, raw[half:]); err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
	}
	return v, v.Validate()
}

func decode(stored, target dtype.Kind, order binary.ByteOrder, raw []byte) (any, error) {
	vals, err := dtype.Decode(stored, order, raw)
	if err != nil {
		return nil, err
	}
	return dtype.Convert(vals, target)
}

// Write appends v in little-endian form. Only two-dimensional numeric and
// char matrices of the classes Level 4 can store are accepted.
func (f *File) Write(v *matvar.Var) error {
	if f.w == nil {
		return ErrReadOnly
	}
	if err := matvar.CheckName(v.Name); err != nil {
		return err
	}
	if _, ok := f.find(v.Name); ok {
		return fmt.Errorf("%w: %q", ErrExists, v.Name)
	}
	rec, err := encode(v)
	if err != nil {
		return err
	}
	if _, err := f.w.WriteAt(rec, f.end); err != nil {
		return err
	}
	// Reparse so the directory entry matches what is on disk.
	parsed, err := decodeRecordHeader(rec)
	if err != nil {
		return err
	}
	parsed.name = v.Name
	parsed.offset = f.end
	parsed.dataStart += f.end + recordHeaderSize
	parsed.size = int64(len(rec))
	f.records = append(f.records, parsed)
	f.end += int64(len(rec))
	return nil
}

func encode(v *matvar.Var) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(v.Dims) != 2 {
		return nil, fmt.Errorf("%w: %q has %d dimensions, Level 4 stores only 2", ErrUnsupported, v.Name, len(v.Dims))
	}
	precision, typ := -1, typeFull
	if v.Class == matvar.ClassChar {
		precision, typ = 0, typeText
	} else if !v.Logical {
		for p, c := range precisionClasses {
			if c == v.Class {
				precision = p
			}
		}
	}
	if precision < 0 {
		return nil, fmt.Errorf("%w: Level 4 cannot store class %s", ErrUnsupported, v.ClassName())
	}

	kind := precisions[precision]
	out := binary.LittleEndian.AppendUint32(nil, uint32(precision*10+typ))
	out = binary.LittleEndian.AppendUint32(out, uint32(v.Dims[0]))
	out = binary.LittleEndian.AppendUint32(out, uint32(v.Dims[1]))
	imagf := uint32(0)
	if v.Complex {
		imagf = 1
	}
	out = binary.LittleEndian.AppendUint32(out, imagf)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(v.Name)+1))
	out = append(append(out, v.Name...), 0)

	for _, part := range []any{v.Real, v.Imag} {
		if part == nil {
			continue
		}
		vals, err := dtype.Convert(part, kind)
		if err != nil {
			return nil, err
		}
		raw, err := dtype.Encode(vals, binary.LittleEndian)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
		if !v.Complex {
			break
		}
	}
	return out, nil
}

// Remove deletes the named matrix and closes the gap it leaves.
func (f *File) Remove(name string) error {
	if f.w == nil {
		return ErrReadOnly
	}
	i, ok := f.find(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	rec := f.records[i]
	tail := make([]byte, f.end-(rec.offset+rec.size))
	if len(tail) > 0 {
		if _, err := f.r.ReadAt(tail, rec.offset+rec.size); err != nil {
			return err
		}
		if _, err := f.w.WriteAt(tail, rec.offset); err != nil {
			return err
		}
	}
	if err := f.w.Truncate(f.end - rec.size); err != nil {
		return err
	}
	f.records = append(f.records[:i], f.records[i+1:]...)
	for _, r := range f.records[i:] {
		r.offset -= rec.size
		r.dataStart -= rec.size
	}
	f.end -= rec.size
	return nil
}
