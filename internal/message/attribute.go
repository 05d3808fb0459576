package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
)

// Attribute is a small named value attached to an object header.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func parseAttribute(data []byte, cfg binpkg.Config) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short: %d bytes", len(data))
	}
	version := data[0]
	le := binary.LittleEndian
	nameSize := int(le.Uint16(data[2:]))
	typeSize := int(le.Uint16(data[4:]))
	spaceSize := int(le.Uint16(data[6:]))

	pos := 8
	if version == 3 {
		pos = 9
	} else if version != 1 && version != 2 {
		return nil, fmt.Errorf("unsupported attribute version %d", version)
	}
	field := func(n int) ([]byte, error) {
		if pos+n > len(data) {
			return nil, fmt.Errorf("attribute truncated at byte %d", pos)
		}
		b := data[pos : pos+n]
		if version == 1 {
			n = pad8(n)
		}
		pos += n
		return b, nil
	}

	m := &Attribute{}
	name, err := field(nameSize)
	if err != nil {
		return nil, err
	}
	m.Name = cstring(name)

	raw, err := field(typeSize)
	if err != nil {
		return nil, err
	}
	if m.Datatype, err = parseDatatype(raw); err != nil {
		return nil, fmt.Errorf("attribute %q datatype: %w", m.Name, err)
	}

	if raw, err = field(spaceSize); err != nil {
		return nil, err
	}
	if m.Dataspace, err = parseDataspace(raw, cfg); err != nil {
		return nil, fmt.Errorf("attribute %q dataspace: %w", m.Name, err)
	}

	size := int(m.Dataspace.NumElements()) * int(m.Datatype.Size)
	if pos+size > len(data) {
		return nil, fmt.Errorf("attribute %q data truncated", m.Name)
	}
	m.Data = data[pos : pos+size]
	return m, nil
}

// Encode writes a version 3 attribute with an ASCII name.
func (m *Attribute) Encode(w *binpkg.Writer) error {
	dt, err := Encode(m.Datatype, w.Config())
	if err != nil {
		return err
	}
	ds, err := Encode(m.Dataspace, w.Config())
	if err != nil {
		return err
	}
	name := append([]byte(m.Name), 0)

	if err := w.WriteBytes([]byte{3, 0}); err != nil {
		return err
	}
	for _, n := range []int{len(name), len(dt), len(ds)} {
		if err := w.WriteUint16(uint16(n)); err != nil {
			return err
		}
	}
	if err := w.WriteUint8(uint8(CharsetASCII)); err != nil {
		return err
	}
	for _, b := range [][]byte{name, dt, ds, m.Data} {
		if err := w.WriteBytes(b); err != nil {
			return err
		}
	}
	return nil
}

// NewAttribute builds an attribute from its parts.
func NewAttribute(name string, dt *Datatype, ds *Dataspace, data []byte) *Attribute {
	return &Attribute{Name: name, Datatype: dt, Dataspace: ds, Data: data}
}
