package matio

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/serum-errors/go-serum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testOptions(fs billy.Filesystem, logs io.Writer) []Option {
	return []Option{WithFilesystem(fs), WithLogOutput(logs)}
}

// buildFixture writes the variables of the reference file used across these
// tests.
func buildFixture(t *testing.T, fs billy.Filesystem, name string, version FileVersion) {
	t.Helper()
	f, err := Create(name, version, "", testOptions(fs, io.Discard)...)
	require.NoError(t, err)
	defer f.Close()

	matrix, err := NewMultiDimensionalArray[float64]("matrix", []int{3, 3, 3}, nil)
	require.NoError(t, err)
	for i := range matrix.Data() {
		matrix.Data()[i] = float64(i + 1)
	}

	cellArray, err := NewCellArray("cell_array", []int{1, 3}, []Variable{
		NewElement[float64]("", 1).Variable,
		NewString("", "ciao").Variable,
		NewVector[int32]("", []int32{1, 2, 3}).Variable,
	})
	require.NoError(t, err)

	cellMatrix, err := NewCellArray("cell_matrix", []int{2, 2}, []Variable{
		NewString("", "a").Variable,
		NewElement[float64]("", 2).Variable,
		NewString("", "b").Variable,
		NewElement[float64]("", 4).Variable,
	})
	require.NoError(t, err)

	st, err := NewStruct("struct",
		NewElement[float64]("double_field", 3.14).Variable,
		NewString("string_field", "test").Variable,
	)
	require.NoError(t, err)

	elem, err := NewStruct("", NewString("name", "x").Variable)
	require.NoError(t, err)
	structArray, err := NewStructArray("struct_array", []int{1, 2}, []string{"name"}, []Struct{elem, elem})
	require.NoError(t, err)

	for _, v := range []Variable{
		cellArray.Variable,
		cellMatrix.Variable,
		NewElement[float64]("double", 3.14).Variable,
		NewElement[int32]("int", 5).Variable,
		matrix.Variable,
		NewString("string", "test").Variable,
		st.Variable,
		structArray.Variable,
		NewVector[float64]("vector", []float64{1, 2, 3, 4, 5, 6}).Variable,
	} {
		require.NoError(t, f.Write(v), v.Name())
	}
}

func TestCreateAndDelete(t *testing.T) {
	fs := memfs.New()
	var logs bytes.Buffer
	opts := testOptions(fs, &logs)

	f, err := Create("test.mat", Default, "", opts...)
	require.NoError(t, err)
	assert.True(t, f.IsOpen())
	assert.Equal(t, MAT5, f.Version())
	assert.Equal(t, ReadAndWrite, f.Mode())
	assert.Empty(t, f.VariableNames())
	assert.NotNil(t, f.VariableNames())
	require.NoError(t, f.Close())
	assert.False(t, f.IsOpen())

	require.NoError(t, Delete("test.mat", opts...))
	_, err = fs.Stat("test.mat")
	assert.Error(t, err)

	err = Delete("test.mat", opts...)
	assert.Equal(t, CodeIO, serum.Code(err))
	assert.Contains(t, logs.String(), "[ERROR][matio.File.Delete]")
}

func TestCreateUndefined(t *testing.T) {
	fs := memfs.New()
	var logs bytes.Buffer

	f, err := Create("test.mat", Undefined, "", testOptions(fs, &logs)...)
	assert.Equal(t, CodeInvalidInput, serum.Code(err))
	assert.NotNil(t, f)
	assert.False(t, f.IsOpen())
	_, err = fs.Stat("test.mat")
	assert.Error(t, err, "nothing is written for an undefined version")
	assert.Contains(t, logs.String(), "[ERROR][matio.File.Create]")
}

func TestCreateHeader(t *testing.T) {
	fs := memfs.New()
	for _, version := range []FileVersion{MAT5, MAT73} {
		f, err := Create("h.mat", version, "my header", testOptions(fs, io.Discard)...)
		require.NoError(t, err)
		assert.Equal(t, "my header", f.Header())
		require.NoError(t, f.Close())
	}

	var logs bytes.Buffer
	f, err := Create("h.mat", MAT4, "", testOptions(fs, &logs)...)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "", f.Header())
	assert.Contains(t, logs.String(), "[ERROR][matio.File.header]")
}

func TestOpenMissing(t *testing.T) {
	var logs bytes.Buffer
	f, err := OpenFile("missing.mat", ReadAndWrite, testOptions(memfs.New(), &logs)...)
	assert.Error(t, err)
	assert.False(t, f.IsOpen())
	assert.Equal(t, ReadOnly, f.Mode())
	assert.Equal(t, Undefined, f.Version())
	assert.Equal(t, "", f.Name())
	assert.Empty(t, f.VariableNames())
	assert.Contains(t, logs.String(), "[ERROR][matio.File.open]")
}

func TestOpenFixture(t *testing.T) {
	want := []string{"cell_array", "cell_matrix", "double", "int", "matrix", "string", "struct", "struct_array", "vector"}
	for _, version := range []FileVersion{MAT5, MAT73} {
		t.Run(version.String(), func(t *testing.T) {
			fs := memfs.New()
			buildFixture(t, fs, "input.mat", version)

			f, err := OpenFile("input.mat", ReadOnly, testOptions(fs, io.Discard)...)
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, version, f.Version())
			assert.Equal(t, want, f.VariableNames())

			v, err := f.Read("matrix")
			require.NoError(t, err)
			assert.Equal(t, TypeMultiDimensionalArray, v.VariableType())
			assert.Equal(t, 14.0, AsMultiDimensionalArray[float64](v).At(1, 1, 1))

			v, err = f.Read("struct_array")
			require.NoError(t, err)
			assert.Equal(t, TypeStructArray, v.VariableType())
			assert.Equal(t, "x", v.AsStructArray().At(0, 1).Field("name").AsString().Value())

			v, err = f.Read("cell_matrix")
			require.NoError(t, err)
			assert.Equal(t, 4.0, AsElement[float64](v.AsCellArray().At(1, 1)).Value())
		})
	}
}

func TestReadOnlyWriteLeavesFileUnchanged(t *testing.T) {
	fs := memfs.New()
	buildFixture(t, fs, "input.mat", MAT5)
	before, err := util.ReadFile(fs, "input.mat")
	require.NoError(t, err)

	var logs bytes.Buffer
	f, err := OpenFile("input.mat", ReadOnly, testOptions(fs, &logs)...)
	require.NoError(t, err)
	err = f.Write(NewElement[float64]("extra", 1).Variable)
	assert.Equal(t, CodeReadOnly, serum.Code(err))
	err = f.Remove("double")
	assert.Equal(t, CodeReadOnly, serum.Code(err))
	require.NoError(t, f.Close())

	after, err := util.ReadFile(fs, "input.mat")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Contains(t, logs.String(), "[ERROR][matio.File.write]")
}

func TestClosedHandle(t *testing.T) {
	f := New(WithFilesystem(memfs.New()), WithLogOutput(io.Discard))
	_, err := f.Read("x")
	assert.Equal(t, CodeNotOpen, serum.Code(err))
	assert.Equal(t, CodeNotOpen, serum.Code(f.Write(NewElement[float64]("x", 1).Variable)))
	assert.Equal(t, CodeNotOpen, serum.Code(f.Remove("x")))
	assert.NoError(t, f.Close())
	assert.False(t, f.Has("x"))
}

func TestWriteEachVersion(t *testing.T) {
	for _, version := range []FileVersion{MAT4, MAT5, MAT73} {
		t.Run(version.String(), func(t *testing.T) {
			fs := memfs.New()
			opts := testOptions(fs, io.Discard)

			f, err := Create("out.mat", version, "", opts...)
			require.NoError(t, err)

			matrix, err := NewMultiDimensionalArray[float64]("matrix", []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
			require.NoError(t, err)
			require.NoError(t, f.Write(matrix.Variable))
			require.NoError(t, f.Write(NewString("text", "hello").Variable))
			assert.True(t, f.Has("text"))
			assert.Empty(t, f.VariableNames(), "names are listed once at open")

			err = f.Write(NewString("text", "again").Variable)
			assert.Equal(t, CodeExists, serum.Code(err))
			err = f.Write(Variable{})
			assert.Equal(t, CodeInvalidInput, serum.Code(err))
			for _, name := range []string{"", "1x", "#refs#", "a b"} {
				err = f.Write(NewElement[float64](name, 1).Variable)
				assert.Equal(t, CodeInvalidInput, serum.Code(err), "name %q", name)
			}

			_, err = f.Read("nothing")
			assert.Equal(t, CodeNotFound, serum.Code(err))
			require.NoError(t, f.Close())

			require.NoError(t, f.Open("out.mat", ReadAndWrite))
			assert.ElementsMatch(t, []string{"matrix", "text"}, f.VariableNames())
			v, err := f.Read("matrix")
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3}, v.Dimensions())
			assert.Equal(t, 6.0, AsMultiDimensionalArray[float64](v).At(1, 2))
			v, err = f.Read("text")
			require.NoError(t, err)
			assert.Equal(t, "hello", v.AsString().Value())

			require.NoError(t, f.Remove("text"))
			assert.False(t, f.Has("text"))
			require.NoError(t, f.Close())
		})
	}
}

func TestMAT4RejectsCells(t *testing.T) {
	fs := memfs.New()
	f, err := Create("v4.mat", MAT4, "", testOptions(fs, io.Discard)...)
	require.NoError(t, err)
	defer f.Close()

	cell, err := NewCellArray("c", []int{1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeUnsupported, serum.Code(f.Write(cell.Variable)))
}

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	fs := memfs.New()
	opts := append(testOptions(fs, io.Discard), WithTracer(provider.Tracer(TracerName)))

	f, err := Create("s.mat", MAT5, "", opts...)
	require.NoError(t, err)
	require.NoError(t, f.Write(NewElement[float64]("x", 1).Variable))
	_, err = f.Read("y")
	assert.Error(t, err)
	require.NoError(t, f.Close())

	var names []string
	var failed string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
		if s.Status().Code == codes.Error {
			failed = s.Name()
		}
	}
	assert.Equal(t, []string{"matio.File.Create", "matio.File.write", "matio.File.read", "matio.File.close"}, names)
	assert.Equal(t, "matio.File.read", failed)
}

func TestParseFileVersion(t *testing.T) {
	for in, want := range map[string]FileVersion{"MAT4": MAT4, "5": MAT5, "7.3": MAT73, "mat73": MAT73, "default": Default} {
		got, err := ParseFileVersion(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFileVersion("6")
	assert.Error(t, err)
	assert.Equal(t, "MAT7.3", MAT73.String())
}

func TestIntElementScenario(t *testing.T) {
	fs := memfs.New()
	opts := testOptions(fs, io.Discard)

	f, err := Create("test.mat", Default, "", opts...)
	require.NoError(t, err)
	require.NoError(t, f.Write(NewElement[int32]("int", 5).Variable))
	v, err := f.Read("int")
	require.NoError(t, err)
	assert.Equal(t, int32(5), AsElement[int32](v).Value())
	require.NoError(t, f.Close())

	require.NoError(t, Delete("test.mat", opts...))
	g, err := OpenFile("test.mat", ReadOnly, opts...)
	assert.Error(t, err)
	assert.False(t, g.IsOpen())
}

// roundTrip writes v to a fresh file of the given version and reads it back.
func roundTrip(t *testing.T, version FileVersion, v Variable) Variable {
	t.Helper()
	fs := memfs.New()
	opts := testOptions(fs, io.Discard)
	f, err := Create("rt.mat", version, "", opts...)
	require.NoError(t, err)
	require.NoError(t, f.Write(v))
	require.NoError(t, f.Close())

	require.NoError(t, f.Open("rt.mat", ReadOnly))
	defer f.Close()
	got, err := f.Read(v.Name())
	require.NoError(t, err)
	return got
}

func checkRoundTrip[T ElementType](t *testing.T, version FileVersion, data []T) {
	t.Helper()
	e := roundTrip(t, version, NewElement("e", data[0]).Variable)
	assert.Equal(t, data[0], AsElement[T](e).Value())

	vec := roundTrip(t, version, NewVector("v", data).Variable)
	assert.Equal(t, data, AsVector[T](vec).Data())

	arr, err := NewMultiDimensionalArray("a", []int{len(data), 1, 1}, data)
	require.NoError(t, err)
	if version == MAT4 {
		arr, err = NewMultiDimensionalArray("a", []int{1, len(data)}, data)
		require.NoError(t, err)
	}
	got := roundTrip(t, version, arr.Variable)
	assert.Equal(t, arr.Dimensions(), got.Dimensions())
	assert.Equal(t, data, AsMultiDimensionalArray[T](got).Data())
}

func TestRoundTripElementTypes(t *testing.T) {
	for _, version := range []FileVersion{MAT4, MAT5, MAT73} {
		t.Run(version.String(), func(t *testing.T) {
			checkRoundTrip(t, version, []float64{1.5, -2, 3})
			checkRoundTrip(t, version, []float32{1.5, -2, 3})
			checkRoundTrip(t, version, []int32{-7, 0, 7})
			checkRoundTrip(t, version, []int16{-7, 0, 7})
			checkRoundTrip(t, version, []uint16{1, 2, 65535})
			checkRoundTrip(t, version, []uint8{0, 1, 255})
			checkRoundTrip(t, version, []Char{'a', 'b', 'c'})

			s := roundTrip(t, version, NewString("s", "hello").Variable)
			assert.Equal(t, "hello", s.AsString().Value())
			if version == MAT4 {
				return
			}
			checkRoundTrip(t, version, []int8{-128, 0, 127})
			checkRoundTrip(t, version, []uint32{0, 1, 1 << 31})
			checkRoundTrip(t, version, []int64{-1 << 40, 0, 1 << 40})
			checkRoundTrip(t, version, []uint64{0, 1, 1 << 63})
			checkRoundTrip(t, version, []bool{true, false, true})

			cell, err := NewCellArray("c", []int{1, 2}, []Variable{
				NewString("", "x").Variable,
				NewVector[int16]("", []int16{4, 5}).Variable,
			})
			require.NoError(t, err)
			got := roundTrip(t, version, cell.Variable)
			assert.Equal(t, TypeCellArray, got.VariableType())
			assert.Equal(t, "x", got.AsCellArray().At(0, 0).AsString().Value())
			assert.Equal(t, []int16{4, 5}, AsVector[int16](got.AsCellArray().At(0, 1)).Data())
		})
	}
}
