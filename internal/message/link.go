package message

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/binary"
)

// LinkType of a link message.
type LinkType uint8

const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// Link names a child of a new-style group.
type Link struct {
	LinkType LinkType
	Name     string

	// Address is the child object header for hard links.
	Address uint64

	// Target is the path of a soft link.
	Target string
}

func (m *Link) Type() Type { return TypeLink }

const (
	linkFlagCreationOrder = 0x04
	linkFlagType          = 0x08
	linkFlagCharset       = 0x10
)

func parseLink(data []byte, cfg binary.Config) (*Link, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("link message too short")
	}
	if data[0] != 1 {
		return nil, fmt.Errorf("unsupported link version %d", data[0])
	}
	flags := data[1]
	r := reader(data, cfg).At(2)
	m := &Link{}

	if flags&linkFlagType != 0 {
		t, err := r.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("link type: %w", err)
		}
		m.LinkType = LinkType(t)
	}
	if flags&linkFlagCreationOrder != 0 {
		r.Skip(8)
	}
	if flags&linkFlagCharset != 0 {
		r.Skip(1)
	}
	nameLen, err := r.ReadUintN(1 << (flags & 0x03))
	if err != nil {
		return nil, fmt.Errorf("link name length: %w", err)
	}
	name, err := r.ReadBytes(int(nameLen))
	if err != nil {
		return nil, fmt.Errorf("link name: %w", err)
	}
	m.Name = string(name)

	switch m.LinkType {
	case LinkHard:
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, fmt.Errorf("link %q address: %w", m.Name, err)
		}
	case LinkSoft:
		n, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("link %q target: %w", m.Name, err)
		}
		target, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("link %q target: %w", m.Name, err)
		}
		m.Target = string(target)
	}
	return m, nil
}

// Encode writes a hard link. The type field is omitted since hard is the
// default.
func (m *Link) Encode(w *binary.Writer) error {
	if m.LinkType != LinkHard {
		return fmt.Errorf("only hard links can be written")
	}
	var flags uint8
	width := 1
	if len(m.Name) > 0xFF {
		flags, width = 1, 2
	}
	if err := w.WriteBytes([]byte{1, flags}); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(len(m.Name)), width); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(m.Name)); err != nil {
		return err
	}
	return w.WriteOffset(m.Address)
}

// NewHardLink links name to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{LinkType: LinkHard, Name: name, Address: addr}
}

// LinkInfo marks a new-style group. Undefined heap and index addresses mean
// all links are stored as Link messages in the header.
type LinkInfo struct {
	Flags              uint8
	FractalHeapAddress uint64
	NameIndexAddress   uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether links live in a fractal heap.
func (m *LinkInfo) Dense(cfg binary.Config) bool {
	return m.FractalHeapAddress != binary.Undefined(cfg.OffsetSize)
}

func parseLinkInfo(data []byte, cfg binary.Config) (*LinkInfo, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("link info message too short")
	}
	m := &LinkInfo{Flags: data[1]}
	r := reader(data, cfg).At(2)
	if m.Flags&0x01 != 0 {
		r.Skip(8)
	}
	var err error
	if m.FractalHeapAddress, err = r.ReadOffset(); err != nil {
		return nil, fmt.Errorf("link info heap address: %w", err)
	}
	if m.NameIndexAddress, err = r.ReadOffset(); err != nil {
		return nil, fmt.Errorf("link info index address: %w", err)
	}
	return m, nil
}

// Encode writes a link info message with compact storage.
func (m *LinkInfo) Encode(w *binary.Writer) error {
	if err := w.WriteBytes([]byte{0, 0}); err != nil {
		return err
	}
	if err := w.WriteUndefinedOffset(); err != nil {
		return err
	}
	return w.WriteUndefinedOffset()
}

// GroupInfo carries the compact/dense thresholds of a new-style group.
type GroupInfo struct {
	MaxCompact uint16
	MinDense   uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

// Encode writes the thresholds.
func (m *GroupInfo) Encode(w *binary.Writer) error {
	if err := w.WriteBytes([]byte{0, 0x01}); err != nil {
		return err
	}
	if err := w.WriteUint16(m.MaxCompact); err != nil {
		return err
	}
	return w.WriteUint16(m.MinDense)
}

// NewCompactGroupInfo keeps every link in the object header.
func NewCompactGroupInfo() *GroupInfo {
	return &GroupInfo{MaxCompact: 0xFFFF, MinDense: 0xFFFE}
}
