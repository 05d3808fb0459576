package mat5

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-matio/internal/matvar"
)

type memFile struct {
	b []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *memFile) Truncate(size int64) error {
	if int(size) <= len(m.b) {
		m.b = m.b[:size]
	} else {
		m.b = append(m.b, make([]byte, int(size)-len(m.b))...)
	}
	return nil
}

func reopen(t *testing.T, m *memFile) *File {
	t.Helper()
	f, err := OpenWritable(m, int64(len(m.b)))
	require.NoError(t, err)
	return f
}

func mustNumeric(t *testing.T, name string, dims []int, data any) *matvar.Var {
	t.Helper()
	v, err := matvar.NewNumeric(name, dims, data)
	require.NoError(t, err)
	return v
}

func TestHeader(t *testing.T) {
	b := EncodeHeader("MATLAB 5.0 MAT-file, test", Version5)
	require.Len(t, b, HeaderSize)

	h, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, "MATLAB 5.0 MAT-file, test", h.Text)
	assert.Equal(t, uint16(Version5), h.Version)
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), h.Order)

	be := append([]byte(nil), b...)
	binary.BigEndian.PutUint16(be[124:], Version5)
	copy(be[126:], "MI")
	h, err = DecodeHeader(be)
	require.NoError(t, err)
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), h.Order)
	assert.Equal(t, uint16(Version5), h.Version)

	copy(be[126:], "XX")
	_, err = DecodeHeader(be)
	assert.ErrorIs(t, err, ErrNotMAT5)
}

func TestRoundTrip(t *testing.T) {
	cplx, err := matvar.NewComplex("z", []int{1, 2}, []float64{1, 2}, []float64{-1, 0.5})
	require.NoError(t, err)
	cell, err := matvar.NewCell("c", []int{1, 3}, []*matvar.Var{
		mustNumeric(t, "", []int{1, 1}, []int32{1}),
		matvar.NewChar("", "a"),
		mustNumeric(t, "", []int{1, 1}, []float64{3.14}),
	})
	require.NoError(t, err)
	st, err := matvar.NewStruct("s", []int{1, 2}, []string{"a", "a_field_name_longer_than_thirty_two"}, []*matvar.Var{
		mustNumeric(t, "a", []int{1, 1}, []uint8{1}),
		matvar.NewChar("a_field_name_longer_than_thirty_two", "x"),
		mustNumeric(t, "a", []int{1, 1}, []uint8{2}),
		matvar.NewEmpty("a_field_name_longer_than_thirty_two"),
	})
	require.NoError(t, err)

	vars := []*matvar.Var{
		mustNumeric(t, "matrix", []int{3, 3, 3}, make([]float64, 27)),
		mustNumeric(t, "int", []int{1, 1}, []int32{5}),
		mustNumeric(t, "u64", []int{1, 2}, []uint64{1 << 60, 2}),
		mustNumeric(t, "single", []int{2, 1}, []float32{1.5, -2}),
		mustNumeric(t, "flags", []int{1, 3}, []bool{true, false, true}),
		matvar.NewChar("string", "héllo"),
		matvar.NewEmpty("empty"),
		cplx, cell, st,
	}
	for i := range vars[0].Real.([]float64) {
		vars[0].Real.([]float64)[i] = float64(i)
	}
	vars[1].Global = true

	m := &memFile{}
	f, err := Create(m, "MATLAB 5.0 MAT-file, round trip")
	require.NoError(t, err)
	for _, v := range vars {
		require.NoError(t, f.Write(v), v.Name)
	}
	assert.Error(t, f.Write(vars[0]), "duplicate name")

	g := reopen(t, m)
	assert.Equal(t, "MATLAB 5.0 MAT-file, round trip", g.Header())
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	assert.Equal(t, names, g.Names())

	for _, want := range vars {
		got, err := g.Read(want.Name)
		require.NoError(t, err, want.Name)
		assert.Equal(t, want, got, want.Name)
	}

	_, err = g.Read("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSmallElements(t *testing.T) {
	el := appendElement(nil, miINT32, []byte{5, 0, 0, 0})
	require.Len(t, el, 8)
	got, rest, err := readElement(el, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(miINT32), got.typ)
	assert.Equal(t, []byte{5, 0, 0, 0}, got.data)
	assert.Empty(t, rest)

	el = appendElement(nil, miINT8, []byte("abcdefghi"))
	assert.Len(t, el, 24)
}

func TestReadCompressed(t *testing.T) {
	v := mustNumeric(t, "vector", []int{1, 6}, []float64{1, 2, 3, 4, 5, 6})
	raw, err := EncodeMatrix(v, v.Name)
	require.NoError(t, err)

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, _ = zw.Write(raw)
	require.NoError(t, zw.Close())

	m := &memFile{}
	_, err = Create(m, "compressed")
	require.NoError(t, err)
	el := binary.LittleEndian.AppendUint32(nil, miCOMPRESSED)
	el = binary.LittleEndian.AppendUint32(el, uint32(z.Len()))
	m.b = append(append(m.b, el...), z.Bytes()...)

	f := reopen(t, m)
	assert.Equal(t, []string{"vector"}, f.Names())
	got, err := f.Read("vector")
	require.NoError(t, err)
	assert.Equal(t, v.Real, got.Real)

	// Appending after an unpadded compressed element.
	require.NoError(t, f.Write(matvar.NewChar("after", "ok")))
	f = reopen(t, m)
	assert.Equal(t, []string{"vector", "after"}, f.Names())
}

func TestReadBigEndian(t *testing.T) {
	be := binary.BigEndian
	element := func(out []byte, typ uint32, data []byte) []byte {
		out = be.AppendUint32(out, typ)
		out = be.AppendUint32(out, uint32(len(data)))
		out = append(out, data...)
		return append(out, make([]byte, int(pad8(uint64(len(data))))-len(data))...)
	}
	flags := be.AppendUint32(nil, uint32(matvar.ClassDouble))
	flags = be.AppendUint32(flags, 0)
	body := element(nil, miUINT32, flags)
	body = element(body, miINT32, be.AppendUint32(be.AppendUint32(nil, 1), 2))
	body = element(body, miINT8, []byte("x"))
	// Stored as int16, read back as double.
	body = element(body, miINT16, []byte{0xFF, 0xFE, 0x00, 0x07})
	file := EncodeHeader("big endian", 0)
	be.PutUint16(file[124:], Version5)
	copy(file[126:], "MI")
	file = element(file, miMATRIX, body)

	f, err := Open(bytes.NewReader(file), int64(len(file)))
	require.NoError(t, err)
	got, err := f.Read("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 7}, got.Real)
	assert.Equal(t, []int{1, 2}, got.Dims)

	_, err = OpenWritable(&memFile{b: file}, int64(len(file)))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestUnsupportedClassSkipped(t *testing.T) {
	m := &memFile{}
	f, err := Create(m, "sparse")
	require.NoError(t, err)

	flags := binary.LittleEndian.AppendUint32(nil, uint32(matvar.ClassSparse))
	flags = binary.LittleEndian.AppendUint32(flags, 0)
	body := appendElement(nil, miUINT32, flags)
	body = appendElement(body, miINT32, []byte{1, 0, 0, 0, 1, 0, 0, 0})
	body = appendElement(body, miINT8, []byte("sp"))
	el := binary.LittleEndian.AppendUint32(nil, miMATRIX)
	el = binary.LittleEndian.AppendUint32(el, uint32(len(body)))
	m.b = append(append(m.b, el...), body...)

	f = reopen(t, m)
	require.NoError(t, f.Write(matvar.NewChar("ok", "fine")))
	assert.Equal(t, []string{"ok"}, f.Names())
	_, err = f.Read("sp")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRemove(t *testing.T) {
	m := &memFile{}
	f, err := Create(m, "remove")
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, f.Write(matvar.NewChar(name, "value of "+name)))
	}
	before := len(m.b)

	require.NoError(t, f.Remove("b"))
	assert.Less(t, len(m.b), before)
	assert.ErrorIs(t, f.Remove("b"), ErrNotFound)
	assert.Equal(t, []string{"a", "c"}, f.Names())

	g := reopen(t, m)
	assert.Equal(t, []string{"a", "c"}, g.Names())
	c, err := g.Read("c")
	require.NoError(t, err)
	assert.Equal(t, "value of c", c.String())
}

func TestReadOnly(t *testing.T) {
	m := &memFile{}
	_, err := Create(m, "ro")
	require.NoError(t, err)
	f, err := Open(m, int64(len(m.b)))
	require.NoError(t, err)
	assert.Error(t, f.Write(matvar.NewChar("x", "y")))
	assert.Error(t, f.Remove("x"))
}

// matrixElement builds a top-level miMATRIX element by hand.
func matrixElement(class matvar.Class, dims []int32, name string, rest []byte) []byte {
	flags := binary.LittleEndian.AppendUint32(nil, uint32(class))
	flags = binary.LittleEndian.AppendUint32(flags, 0)
	var rawDims []byte
	for _, d := range dims {
		rawDims = binary.LittleEndian.AppendUint32(rawDims, uint32(d))
	}
	body := appendElement(nil, miUINT32, flags)
	body = appendElement(body, miINT32, rawDims)
	body = appendElement(body, miINT8, []byte(name))
	body = append(body, rest...)
	el := binary.LittleEndian.AppendUint32(nil, miMATRIX)
	el = binary.LittleEndian.AppendUint32(el, uint32(len(body)))
	return append(el, body...)
}

func TestOversizedDimensions(t *testing.T) {
	huge := []int32{1<<31 - 1, 1<<31 - 1, 1<<31 - 1}
	fieldNames := appendElement(nil, miINT32, binary.LittleEndian.AppendUint32(nil, 32))
	fieldNames = appendElement(fieldNames, miINT8, append([]byte("f"), make([]byte, 31)...))

	tests := []struct {
		name string
		el   []byte
	}{
		{"cell", matrixElement(matvar.ClassCell, huge, "c", nil)},
		{"cell_short_payload", matrixElement(matvar.ClassCell, []int32{4, 4}, "c", nil)},
		{"struct", matrixElement(matvar.ClassStruct, huge, "c", fieldNames)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &memFile{b: EncodeHeader("malformed", Version5)}
			m.b = append(m.b, tt.el...)
			f, err := Open(m, int64(len(m.b)))
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, f.Names())

			_, err = f.Read("c")
			assert.ErrorIs(t, err, ErrNotMAT5)
		})
	}
}

func TestWriteNameChecks(t *testing.T) {
	m := &memFile{}
	f, err := Create(m, "names")
	require.NoError(t, err)
	m.b = append(m.b, matrixElement(matvar.ClassSparse, []int32{1, 1}, "sp", nil)...)
	f = reopen(t, m)

	assert.ErrorIs(t, f.Write(matvar.NewChar("sp", "shadow")), ErrExists)
	for _, name := range []string{"", "1x", "a-b", "#refs#", "a/b"} {
		assert.ErrorIs(t, f.Write(matvar.NewChar(name, "x")), matvar.ErrInvalid, name)
	}
	assert.Empty(t, f.Names())
}
