package binary

import (
	"encoding/binary"
	"io"
	"testing"
)

func TestLookup3Checksum(t *testing.T) {
	tests := []struct {
		input string
		want  uint32
	}{
		{"", 0xdeadbeef},
		{"Four score and seven years ago", 0x17770551},
	}
	for _, tt := range tests {
		if got := Lookup3Checksum([]byte(tt.input)); got != tt.want {
			t.Errorf("Lookup3Checksum(%q) = 0x%08x, want 0x%08x", tt.input, got, tt.want)
		}
	}
}

func TestLookup3ChecksumLengths(t *testing.T) {
	seen := make(map[uint32]int)
	for length := 0; length <= 24; length++ {
		data := make([]byte, length)
		for i := range data {
			data[i] = byte(i)
		}
		seen[Lookup3Checksum(data)] = length
	}
	if len(seen) != 25 {
		t.Errorf("expected 25 distinct checksums, got %d", len(seen))
	}
}

func TestFletcher32(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", nil, 0},
		{"one word", []byte{0x01, 0x02}, 0x01020102},
		{"odd tail", []byte{0x01}, 0x01000100},
		{"two words", []byte{0x00, 0x01, 0x00, 0x02}, 0x00040003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fletcher32(tt.input); got != tt.want {
				t.Errorf("Fletcher32 = 0x%08x, want 0x%08x", got, tt.want)
			}
		})
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		cfg := Config{ByteOrder: order, OffsetSize: 4, LengthSize: 8}
		w, buf := NewBufferWriter(cfg)

		if err := w.WriteUint8(0xAB); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteUint16(0x1234); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteInt32(-7); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteOffset(0xCAFEBABE); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteLength(1 << 40); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteUintN(0x010203, 3); err != nil {
			t.Fatal(err)
		}
		if err := w.WritePadding(8); err != nil {
			t.Fatal(err)
		}
		if buf.Len()%8 != 0 {
			t.Fatalf("buffer length %d not aligned", buf.Len())
		}

		r := NewReader(readerAt(buf.Bytes()), cfg)
		if v, _ := r.ReadUint8(); v != 0xAB {
			t.Errorf("%v: ReadUint8 = %#x", order, v)
		}
		if v, _ := r.ReadUint16(); v != 0x1234 {
			t.Errorf("%v: ReadUint16 = %#x", order, v)
		}
		if v, _ := r.ReadInt32(); v != -7 {
			t.Errorf("%v: ReadInt32 = %d", order, v)
		}
		if v, _ := r.ReadOffset(); v != 0xCAFEBABE {
			t.Errorf("%v: ReadOffset = %#x", order, v)
		}
		if v, _ := r.ReadLength(); v != 1<<40 {
			t.Errorf("%v: ReadLength = %#x", order, v)
		}
		if v, _ := r.ReadUintN(3); v != 0x010203 {
			t.Errorf("%v: ReadUintN(3) = %#x", order, v)
		}
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewBytesReader([]byte{1, 2, 3}, binary.LittleEndian)
	if _, err := r.ReadUint32(); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if r.Pos() != 0 {
		t.Errorf("position advanced on failed read: %d", r.Pos())
	}
}

func TestUndefined(t *testing.T) {
	tests := []struct {
		size int
		want uint64
	}{
		{2, 0xFFFF},
		{4, 0xFFFFFFFF},
		{8, 0xFFFFFFFFFFFFFFFF},
	}
	for _, tt := range tests {
		if got := Undefined(tt.size); got != tt.want {
			t.Errorf("Undefined(%d) = %#x, want %#x", tt.size, got, tt.want)
		}
		r := NewReader(nil, Config{ByteOrder: binary.LittleEndian, OffsetSize: tt.size, LengthSize: 8})
		if !r.IsUndefinedOffset(tt.want) {
			t.Errorf("IsUndefinedOffset(%#x) with size %d = false", tt.want, tt.size)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := Config{ByteOrder: binary.LittleEndian, OffsetSize: 3, LengthSize: 8}
	if err := bad.Validate(); err != ErrInvalidSize {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

type readerAt []byte

func (b readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
