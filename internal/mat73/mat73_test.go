package mat73

import (
	"io"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/robert-malhotra/go-matio/internal/h5"
	"github.com/robert-malhotra/go-matio/internal/mat5"
	"github.com/robert-malhotra/go-matio/internal/matvar"
	"github.com/robert-malhotra/go-matio/internal/message"
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

func numeric(c *qt.C, name string, dims []int, data any) *matvar.Var {
	v, err := matvar.NewNumeric(name, dims, data)
	c.Assert(err, qt.IsNil)
	return v
}

func testVars(c *qt.C) []*matvar.Var {
	matrix := make([]float64, 27)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				matrix[i+3*j+9*k] = float64(i + 3*j + 9*k)
			}
		}
	}
	cplx, err := matvar.NewComplex("z", []int{1, 2}, []float32{1, 2}, []float32{-1, 0.5})
	c.Assert(err, qt.IsNil)

	cells := make([]*matvar.Var, 6)
	cells[4] = matvar.NewChar("", "content")
	cell, err := matvar.NewCell("cellArray", []int{1, 2, 3}, cells)
	c.Assert(err, qt.IsNil)

	inner, err := matvar.NewCell("list", []int{2, 1}, []*matvar.Var{
		numeric(c, "", []int{1, 1}, []uint16{7}),
		matvar.NewChar("", "x"),
	})
	c.Assert(err, qt.IsNil)
	scalar, err := matvar.NewStruct("struct", []int{1, 1}, []string{"a", "b", "list"}, []*matvar.Var{
		numeric(c, "a", []int{1, 1}, []int8{-3}),
		matvar.NewChar("b", "bee"),
		inner,
	})
	c.Assert(err, qt.IsNil)

	nested, err := matvar.NewStruct("y", []int{1, 1}, []string{"deep"}, []*matvar.Var{
		numeric(c, "deep", []int{1, 2}, []float64{1, 2}),
	})
	c.Assert(err, qt.IsNil)
	array, err := matvar.NewStruct("struct_array", []int{1, 2}, []string{"x", "y"}, []*matvar.Var{
		numeric(c, "x", []int{1, 1}, []float64{1}),
		matvar.NewChar("y", "first"),
		numeric(c, "x", []int{1, 1}, []float64{2}),
		nested,
	})
	c.Assert(err, qt.IsNil)

	vars := []*matvar.Var{
		numeric(c, "double", []int{1, 1}, []float64{3.14}),
		numeric(c, "int", []int{1, 1}, []int32{5}),
		numeric(c, "matrix", []int{3, 3, 3}, matrix),
		matvar.NewChar("string", "test"),
		numeric(c, "vector", []int{1, 6}, []float64{1, 2, 3, 4, 5, 6}),
		numeric(c, "flags", []int{1, 3}, []bool{true, false, true}),
		numeric(c, "u64", []int{2, 1}, []uint64{1 << 62, 3}),
		cplx,
		matvar.NewEmpty("empty"),
		matvar.NewChar("blank", ""),
		cell, scalar, array,
	}
	vars[1].Global = true
	return vars
}

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)
	vars := testVars(c)

	m := &memFile{}
	f, err := Create(m, "MATLAB 7.3 MAT-file, round trip")
	c.Assert(err, qt.IsNil)
	for _, v := range vars {
		c.Assert(f.Write(v), qt.IsNil, qt.Commentf("%s", v.Name))
	}
	c.Assert(f.Write(vars[0]), qt.ErrorIs, ErrExists)

	g, err := Open(m)
	c.Assert(err, qt.IsNil)
	c.Assert(g.Header(), qt.Equals, "MATLAB 7.3 MAT-file, round trip")

	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	c.Assert(g.Names(), qt.DeepEquals, names)

	for _, want := range vars {
		c.Run(want.Name, func(c *qt.C) {
			got, err := g.Read(want.Name)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.DeepEquals, want)
		})
	}
}

func TestReadMissing(t *testing.T) {
	c := qt.New(t)
	m := &memFile{}
	f, err := Create(m, "missing")
	c.Assert(err, qt.IsNil)
	c.Assert(f.Names(), qt.HasLen, 0)

	_, err = f.Read("nope")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = f.Read(refsGroup)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestAppendAndRemove(t *testing.T) {
	c := qt.New(t)
	m := &memFile{}
	f, err := Create(m, "append")
	c.Assert(err, qt.IsNil)
	cell, err := matvar.NewCell("c", []int{1, 1}, []*matvar.Var{matvar.NewChar("", "one")})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Write(cell), qt.IsNil)

	// A second session has to continue the reference names.
	g, err := OpenWritable(m)
	c.Assert(err, qt.IsNil)
	cell2, err := matvar.NewCell("d", []int{1, 1}, []*matvar.Var{matvar.NewChar("", "two")})
	c.Assert(err, qt.IsNil)
	c.Assert(g.Write(cell2), qt.IsNil)
	c.Assert(g.Remove("c"), qt.IsNil)
	c.Assert(g.Remove("c"), qt.ErrorIs, ErrNotFound)
	c.Assert(g.Remove(refsGroup), qt.ErrorIs, ErrNotFound)

	h, err := Open(m)
	c.Assert(err, qt.IsNil)
	c.Assert(h.Names(), qt.DeepEquals, []string{"d"})
	d, err := h.Read("d")
	c.Assert(err, qt.IsNil)
	c.Assert(d.Cells[0].String(), qt.Equals, "two")
}

func TestReadOnly(t *testing.T) {
	c := qt.New(t)
	m := &memFile{}
	_, err := Create(m, "ro")
	c.Assert(err, qt.IsNil)

	f, err := Open(m)
	c.Assert(err, qt.IsNil)
	c.Assert(f.Write(matvar.NewChar("x", "y")), qt.ErrorIs, h5.ErrReadOnly)
	c.Assert(f.Remove("x"), qt.ErrorIs, ErrNotFound)
}

func TestUnsupportedClassHidden(t *testing.T) {
	c := qt.New(t)
	m := &memFile{}
	f, err := Create(m, "unsupported")
	c.Assert(err, qt.IsNil)

	class := h5.StringAttribute(attrClass, "function_handle")
	addr, err := f.h5.WriteDataset(class.Datatype, nil, []byte("function_handle"), class)
	c.Assert(err, qt.IsNil)
	c.Assert(f.h5.Root().AddLink("fh", addr), qt.IsNil)
	c.Assert(f.h5.Flush(), qt.IsNil)
	c.Assert(f.Write(matvar.NewChar("ok", "fine")), qt.IsNil)

	c.Assert(f.Names(), qt.DeepEquals, []string{"ok"})
	_, err = f.Read("fh")
	c.Assert(err, qt.ErrorIs, ErrUnsupported)
}

func TestNotMAT73(t *testing.T) {
	c := qt.New(t)
	m := &memFile{b: mat5.EncodeHeader("level 5", mat5.Version5)}
	_, err := Open(m)
	c.Assert(err, qt.ErrorIs, ErrNotMAT73)
	_, err = Open(&memFile{})
	c.Assert(err, qt.ErrorIs, ErrNotMAT73)
}

func TestRefName(t *testing.T) {
	c := qt.New(t)
	for n, want := range map[int]string{0: "a", 25: "z", 26: "aa", 27: "ab", 701: "zz", 702: "aaa"} {
		c.Assert(refName(n), qt.Equals, want)
	}
}

func TestDims(t *testing.T) {
	c := qt.New(t)
	c.Assert(storageDims([]int{1, 2, 3}), qt.DeepEquals, []uint64{3, 2, 1})
	c.Assert(matlabDims([]uint64{3, 2, 1}), qt.DeepEquals, []int{1, 2, 3})
	c.Assert(matlabDims(nil), qt.DeepEquals, []int{1, 1})
	c.Assert(matlabDims([]uint64{4}), qt.DeepEquals, []int{4, 1})
}

func TestMalformedDimensions(t *testing.T) {
	c := qt.New(t)
	m := &memFile{}
	f, err := Create(m, "malformed")
	c.Assert(err, qt.IsNil)

	empty := func(name, class string, dims ...uint64) {
		raw := make([]byte, 0, 8*len(dims))
		for _, d := range dims {
			raw = order.AppendUint64(raw, d)
		}
		addr, err := f.h5.WriteDataset(message.NewFixedPoint(8, false), []uint64{uint64(len(dims))}, raw,
			h5.StringAttribute(attrClass, class), h5.IntAttribute(attrEmpty, 1, 1, false))
		c.Assert(err, qt.IsNil)
		c.Assert(f.h5.Root().AddLink(name, addr), qt.IsNil)
	}
	empty("huge", "cell", 1<<31-1, 1<<31-1, 1<<31-1)
	empty("wide", "double", 0, 1<<40)
	empty("full", "struct", 3, 4)

	target, err := f.encodeRef(matvar.NewChar("", "x"))
	c.Assert(err, qt.IsNil)
	refField := func(n int) h5.Link {
		addrs := make([]uint64, n)
		for i := range addrs {
			addrs[i] = target
		}
		addr, err := f.h5.WriteDataset(f.referenceType(), []uint64{uint64(n), 1}, f.h5.EncodeReferences(addrs))
		c.Assert(err, qt.IsNil)
		return h5.Link{Address: addr}
	}
	a, b := refField(2), refField(1)
	a.Name, b.Name = "a", "b"
	group, err := f.h5.WriteGroup([]h5.Link{a, b}, h5.StringAttribute(attrClass, "struct"))
	c.Assert(err, qt.IsNil)
	c.Assert(f.h5.Root().AddLink("ragged", group), qt.IsNil)
	c.Assert(f.h5.Flush(), qt.IsNil)

	f, err = Open(m)
	c.Assert(err, qt.IsNil)
	for _, name := range []string{"huge", "wide", "full", "ragged"} {
		_, err := f.Read(name)
		c.Assert(err, qt.ErrorIs, ErrNotMAT73, qt.Commentf("%s", name))
	}
}

func TestWriteNameChecks(t *testing.T) {
	c := qt.New(t)
	f, err := Create(&memFile{}, "names")
	c.Assert(err, qt.IsNil)
	for _, name := range []string{"", "#refs#", "1x", "a b", "a/b"} {
		c.Assert(f.Write(matvar.NewChar(name, "x")), qt.ErrorIs, matvar.ErrInvalid, qt.Commentf("%q", name))
	}
	c.Assert(f.Names(), qt.HasLen, 0)
}
