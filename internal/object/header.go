// Package object reads and writes HDF5 object headers.
//
// Version 1 headers (the ones MATLAB writes) and version 2 "OHDR" headers are
// both read, including continuation blocks. Only version 2 headers are
// written; each is a single checksummed chunk.
package object

import (
	"errors"

	"github.com/robert-malhotra/go-matio/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

var (
	signatureHeader       = []byte("OHDR")
	signatureContinuation = []byte("OCHK")
)

// Header is a parsed object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	Messages []message.Message
}

// Message returns the first message of the given type, or nil.
func (h *Header) Message(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// Attributes returns the attribute messages in header order.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, msg := range h.Messages {
		if a, ok := msg.(*message.Attribute); ok {
			out = append(out, a)
		}
	}
	return out
}

// Attribute returns the attribute with the given name, or nil.
func (h *Header) Attribute(name string) *message.Attribute {
	for _, a := range h.Attributes() {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Links returns the link messages in header order.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, msg := range h.Messages {
		if l, ok := msg.(*message.Link); ok {
			out = append(out, l)
		}
	}
	return out
}

// Dataspace returns the dataspace message if present.
func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Message(message.TypeDataspace).(*message.Dataspace)
	return m
}

// Datatype returns the datatype message if present.
func (h *Header) Datatype() *message.Datatype {
	m, _ := h.Message(message.TypeDatatype).(*message.Datatype)
	return m
}

// DataLayout returns the data layout message if present.
func (h *Header) DataLayout() *message.DataLayout {
	m, _ := h.Message(message.TypeDataLayout).(*message.DataLayout)
	return m
}

// FilterPipeline returns the filter pipeline message if present.
func (h *Header) FilterPipeline() *message.FilterPipeline {
	m, _ := h.Message(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}

// SymbolTable returns the symbol table message of an old-style group.
func (h *Header) SymbolTable() *message.SymbolTable {
	m, _ := h.Message(message.TypeSymbolTable).(*message.SymbolTable)
	return m
}

// LinkInfo returns the link info message of a new-style group.
func (h *Header) LinkInfo() *message.LinkInfo {
	m, _ := h.Message(message.TypeLinkInfo).(*message.LinkInfo)
	return m
}

// IsGroup reports whether the header describes a group.
func (h *Header) IsGroup() bool {
	return h.SymbolTable() != nil || h.LinkInfo() != nil || (len(h.Links()) > 0 && h.Datatype() == nil)
}
