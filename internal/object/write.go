package object

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/message"
)

// Encode builds a version 2 object header holding msgs in one chunk. The
// chunk size field excludes the trailing checksum.
func Encode(cfg binary.Config, msgs ...message.Encoder) ([]byte, error) {
	mw, body := binary.NewBufferWriter(cfg)
	for _, m := range msgs {
		data, err := message.Encode(m, cfg)
		if err != nil {
			return nil, err
		}
		if len(data) > 0xFFFF {
			return nil, fmt.Errorf("message 0x%02x is %d bytes, over the 64 KiB limit", uint16(m.Type()), len(data))
		}
		if err := mw.WriteUint8(uint8(m.Type())); err != nil {
			return nil, err
		}
		if err := mw.WriteUint16(uint16(len(data))); err != nil {
			return nil, err
		}
		if err := mw.WriteUint8(0); err != nil {
			return nil, err
		}
		if err := mw.WriteBytes(data); err != nil {
			return nil, err
		}
	}

	size := body.Len()
	width := chunkSizeWidth(uint64(size))
	w, buf := binary.NewBufferWriter(cfg)
	if err := w.WriteBytes(signatureHeader); err != nil {
		return nil, err
	}
	if err := w.WriteBytes([]byte{2, flagsForWidth(width)}); err != nil {
		return nil, err
	}
	if err := w.WriteUintN(uint64(size), width); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(body.Bytes()); err != nil {
		return nil, err
	}
	if err := w.WriteUint32(binary.Lookup3Checksum(buf.Bytes())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes msgs and writes the header at w's position, returning the
// number of bytes written.
func Write(w *binary.Writer, msgs ...message.Encoder) (int64, error) {
	data, err := Encode(w.Config(), msgs...)
	if err != nil {
		return 0, err
	}
	if err := w.WriteBytes(data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func chunkSizeWidth(size uint64) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func flagsForWidth(width int) uint8 {
	switch width {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	return 0
}

// GroupMessages returns the messages of a new-style group holding links.
func GroupMessages(links []*message.Link, attrs ...*message.Attribute) []message.Encoder {
	msgs := []message.Encoder{&message.LinkInfo{}, message.NewCompactGroupInfo()}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}

// DatasetMessages returns the messages of a dataset.
func DatasetMessages(ds *message.Dataspace, dt *message.Datatype, layout *message.DataLayout, attrs ...*message.Attribute) []message.Encoder {
	msgs := []message.Encoder{ds, dt, layout}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}
