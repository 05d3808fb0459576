package heap

import (
	"bytes"
	"testing"

	"github.com/robert-malhotra/go-matio/internal/binary"
)

func TestCollectionRoundTrip(t *testing.T) {
	cfg := binary.DefaultConfig()
	var w Writer
	a := w.Add([]byte("real"))
	b := w.Add([]byte("imaginary_part"))
	if a != 1 || b != 2 {
		t.Fatalf("indices = %d, %d", a, b)
	}

	raw, err := w.Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != MinCollectionSize {
		t.Errorf("collection size = %d, want %d", len(raw), MinCollectionSize)
	}

	file := append(make([]byte, 100), raw...)
	c, err := ReadCollection(binary.NewReader(bytes.NewReader(file), cfg), 100)
	if err != nil {
		t.Fatalf("ReadCollection: %v", err)
	}
	got, err := c.Object(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "imaginary_part" {
		t.Errorf("object %d = %q", b, got)
	}
	if _, err := c.Object(3); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestLargeCollection(t *testing.T) {
	cfg := binary.DefaultConfig()
	var w Writer
	big := bytes.Repeat([]byte{7}, 5000)
	idx := w.Add(big)

	raw, err := w.Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) <= MinCollectionSize || len(raw)%8 != 0 {
		t.Errorf("collection size = %d", len(raw))
	}
	c, err := ReadCollection(binary.NewReader(bytes.NewReader(raw), cfg), 0)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := c.Object(idx)
	if !bytes.Equal(got, big) {
		t.Error("large object mismatch")
	}
}

func TestHeapID(t *testing.T) {
	cfg := binary.DefaultConfig()
	bw, buf := binary.NewBufferWriter(cfg)
	if err := EncodeID(bw, ID{Collection: 4096, Index: 3}); err != nil {
		t.Fatal(err)
	}
	id, err := DecodeID(buf.Bytes(), 8)
	if err != nil {
		t.Fatal(err)
	}
	if id.Collection != 4096 || id.Index != 3 {
		t.Errorf("id = %+v", id)
	}
	if _, err := DecodeID([]byte{1, 2}, 8); err == nil {
		t.Error("expected error for short ID")
	}
}

func TestLocalHeap(t *testing.T) {
	cfg := binary.DefaultConfig()
	bw, buf := binary.NewBufferWriter(cfg)
	_ = bw.WriteBytes([]byte("HEAP"))
	_ = bw.WriteBytes([]byte{0, 0, 0, 0})
	_ = bw.WriteLength(16)
	_ = bw.WriteLength(binary.Undefined(8))
	_ = bw.WriteOffset(64)
	_ = bw.At(64).WriteBytes([]byte("\x00vector\x00int\x00\x00\x00\x00\x00"))

	h, err := ReadLocalHeap(binary.NewReader(bytes.NewReader(buf.Bytes()), cfg), 0)
	if err != nil {
		t.Fatal(err)
	}
	for off, want := range map[uint64]string{0: "", 1: "vector", 8: "int"} {
		got, err := h.String(off)
		if err != nil || got != want {
			t.Errorf("String(%d) = %q, %v; want %q", off, got, err, want)
		}
	}
	if _, err := h.String(99); err == nil {
		t.Error("expected out of range error")
	}
}

func TestFreeSpaceObject(t *testing.T) {
	cfg := binary.DefaultConfig()
	var w Writer
	w.Add([]byte("abc"))
	raw, err := w.Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	// Header is 16 bytes, the object 16 more plus "abc" padded to 8.
	free := raw[40:]
	if idx := free[0]; idx != 0 {
		t.Errorf("free-space index = %d", idx)
	}
	if got := cfg.ByteOrder.Uint64(free[8:16]); got != uint64(len(raw)-40) {
		t.Errorf("free-space size = %d, want %d", got, len(raw)-40)
	}
	if got := cfg.ByteOrder.Uint64(raw[8:16]); got != uint64(len(raw)) {
		t.Errorf("collection size field = %d, want %d", got, len(raw))
	}
}
