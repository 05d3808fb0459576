package binary

import (
	"encoding/binary"
	"io"
)

// Writer encodes values into an io.WriterAt at an advancing position.
type Writer struct {
	w   io.WriterAt
	cfg Config
	pos int64
}

// NewWriter creates a writer positioned at offset 0.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg}
}

// At returns a writer over the same sink positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, cfg: w.cfg, pos: offset}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes data at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	return err
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	w.cfg.ByteOrder.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	w.cfg.ByteOrder.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// WriteInt32 writes a signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	buf := make([]byte, 8)
	w.cfg.ByteOrder.PutUint64(buf, v)
	return w.WriteBytes(buf)
}

// WriteUintN writes v as an unsigned integer n bytes wide.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	EncodeUint(w.cfg.ByteOrder, buf, v)
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address using the configured offset size.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.OffsetSize)
}

// WriteLength writes a length using the configured length size.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.LengthSize)
}

// UndefinedOffset returns the all-ones address for the offset size.
func (w *Writer) UndefinedOffset() uint64 {
	return Undefined(w.cfg.OffsetSize)
}

// WriteUndefinedOffset writes the all-ones address.
func (w *Writer) WriteUndefinedOffset() error {
	return w.WriteOffset(w.UndefinedOffset())
}

// WritePadding writes zeros up to the next multiple of alignment.
func (w *Writer) WritePadding(alignment int64) error {
	if alignment <= 1 {
		return nil
	}
	if rem := w.pos % alignment; rem != 0 {
		return w.WriteZeros(int(alignment - rem))
	}
	return nil
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// OffsetSize returns the configured offset size in bytes.
func (w *Writer) OffsetSize() int {
	return w.cfg.OffsetSize
}

// LengthSize returns the configured length size in bytes.
func (w *Writer) LengthSize() int {
	return w.cfg.LengthSize
}

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.cfg.ByteOrder
}

// Config returns the writer configuration.
func (w *Writer) Config() Config {
	return w.cfg
}

// EncodeUint stores v into buf using len(buf) bytes.
func EncodeUint(order binary.ByteOrder, buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = uint8(v)
		return
	case 2:
		order.PutUint16(buf, uint16(v))
		return
	case 4:
		order.PutUint32(buf, uint32(v))
		return
	case 8:
		order.PutUint64(buf, v)
		return
	}
	n := len(buf)
	for i := 0; i < n; i++ {
		b := byte(v >> (8 * uint(i)))
		if order == binary.BigEndian {
			buf[n-1-i] = b
		} else {
			buf[i] = b
		}
	}
}

// Buffer is a growable in-memory io.WriterAt. Metadata blocks are assembled
// in a Buffer before checksumming and writing them out in one piece.
type Buffer struct {
	buf []byte
}

// WriteAt implements io.WriterAt.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(b.buf) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// ReadAt implements io.ReaderAt over the bytes written so far.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes written so far, including gaps.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// NewBufferWriter returns a Writer over a fresh Buffer.
func NewBufferWriter(cfg Config) (*Writer, *Buffer) {
	b := &Buffer{}
	return NewWriter(b, cfg), b
}

// SeekableWriterAt adapts an io.WriteSeeker to io.WriterAt. It is not safe
// for concurrent use because WriteAt moves the shared file position.
type SeekableWriterAt struct {
	ws io.WriteSeeker
}

// NewSeekableWriterAt wraps ws.
func NewSeekableWriterAt(ws io.WriteSeeker) *SeekableWriterAt {
	return &SeekableWriterAt{ws: ws}
}

// WriteAt implements io.WriterAt.
func (s *SeekableWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if _, err := s.ws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return s.ws.Write(p)
}
