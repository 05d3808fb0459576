package h5

import (
	"fmt"

	"github.com/robert-malhotra/go-matio/internal/btree"
	"github.com/robert-malhotra/go-matio/internal/heap"
	"github.com/robert-malhotra/go-matio/internal/message"
	"github.com/robert-malhotra/go-matio/internal/object"
)

// Link is a named hard link to an object header.
type Link struct {
	Name    string
	Address uint64
}

// Group is an opened group. Groups reached through Root and Subgroup are
// tracked by the file so that changes to them are written on Flush.
type Group struct {
	file   *File
	parent *Group
	name   string

	addr uint64
	// size is the header size when this session wrote it, else 0.
	size  uint64
	links []Link
	attrs []*message.Attribute

	children map[string]*Group
	dirty    bool
}

func (f *File) openGroup(addr uint64, parent *Group, name string) (*Group, error) {
	h, err := object.Read(f.r, addr)
	if err != nil {
		return nil, err
	}
	if !h.IsGroup() {
		return nil, fmt.Errorf("%w: %q", ErrNotGroup, name)
	}
	links, err := f.groupLinks(h)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}
	return &Group{
		file:   f,
		parent: parent,
		name:   name,
		addr:   addr,
		links:  links,
		attrs:  h.Attributes(),
	}, nil
}

// groupLinks lists the hard links of an old- or new-style group. Soft links
// are skipped.
func (f *File) groupLinks(h *object.Header) ([]Link, error) {
	if st := h.SymbolTable(); st != nil {
		names, err := heap.ReadLocalHeap(f.r, st.LocalHeapAddress)
		if err != nil {
			return nil, err
		}
		entries, err := btree.ReadGroup(f.r, st.BTreeAddress, names)
		if err != nil {
			return nil, err
		}
		var links []Link
		for _, e := range entries {
			if e.LinkType == btree.LinkHard {
				links = append(links, Link{Name: e.Name, Address: e.Address})
			}
		}
		return links, nil
	}

	if li := h.LinkInfo(); li != nil && li.Dense(f.Config()) {
		return nil, fmt.Errorf("%w: dense link storage", ErrUnsupported)
	}
	var links []Link
	for _, l := range h.Links() {
		if l.LinkType == message.LinkHard {
			links = append(links, Link{Name: l.Name, Address: l.Address})
		}
	}
	return links, nil
}

// Name returns the link name the group was opened by, "" for the root.
func (g *Group) Name() string {
	return g.name
}

// Address returns the group's object header address.
func (g *Group) Address() uint64 {
	return g.addr
}

// Links returns the group's links in storage order.
func (g *Group) Links() []Link {
	return append([]Link(nil), g.links...)
}

// Attributes returns the group's attributes.
func (g *Group) Attributes() []*message.Attribute {
	return g.attrs
}

// Lookup returns the address linked under name.
func (g *Group) Lookup(name string) (uint64, error) {
	for _, l := range g.links {
		if l.Name == name {
			return l.Address, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Has reports whether name is linked.
func (g *Group) Has(name string) bool {
	_, err := g.Lookup(name)
	return err == nil
}

// Open reads the object linked under name.
func (g *Group) Open(name string) (*Object, error) {
	addr, err := g.Lookup(name)
	if err != nil {
		return nil, err
	}
	return g.file.Object(addr)
}

// Subgroup opens the group linked under name and tracks it for writing.
func (g *Group) Subgroup(name string) (*Group, error) {
	if c, ok := g.children[name]; ok {
		return c, nil
	}
	addr, err := g.Lookup(name)
	if err != nil {
		return nil, err
	}
	c, err := g.file.openGroup(addr, g, name)
	if err != nil {
		return nil, err
	}
	g.track(c)
	return c, nil
}

// CreateGroup adds an empty group linked under name.
func (g *Group) CreateGroup(name string, attrs ...*message.Attribute) (*Group, error) {
	if err := g.AddLink(name, 0); err != nil {
		return nil, err
	}
	c := &Group{file: g.file, parent: g, name: name, attrs: attrs, dirty: true}
	g.track(c)
	return c, nil
}

func (g *Group) track(c *Group) {
	if g.children == nil {
		g.children = make(map[string]*Group)
	}
	g.children[c.name] = c
}

// AddLink links name to the object at addr. Names must be unique.
func (g *Group) AddLink(name string, addr uint64) error {
	if g.file.w == nil {
		return ErrReadOnly
	}
	if name == "" || name == "." {
		return fmt.Errorf("invalid link name %q", name)
	}
	if g.Has(name) {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	g.links = append(g.links, Link{Name: name, Address: addr})
	g.dirty = true
	return nil
}

// RemoveLink unlinks name. The object itself stays in the file.
func (g *Group) RemoveLink(name string) error {
	if g.file.w == nil {
		return ErrReadOnly
	}
	for i, l := range g.links {
		if l.Name == name {
			g.links = append(g.links[:i:i], g.links[i+1:]...)
			delete(g.children, name)
			g.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// flush writes changed children, then this group if it or any child moved.
// It reports whether the group was rewritten.
func (g *Group) flush() (bool, error) {
	for name, c := range g.children {
		moved, err := c.flush()
		if err != nil {
			return false, err
		}
		if moved {
			for i := range g.links {
				if g.links[i].Name == name {
					g.links[i].Address = c.addr
				}
			}
			g.dirty = true
		}
	}
	if !g.dirty {
		return false, nil
	}

	links := make([]*message.Link, len(g.links))
	for i, l := range g.links {
		links[i] = message.NewHardLink(l.Name, l.Address)
	}
	addr, size, err := g.file.writeObject(object.GroupMessages(links, g.attrs...))
	if err != nil {
		return false, fmt.Errorf("writing group %q: %w", g.name, err)
	}
	g.file.alloc.Release(g.size)
	g.addr, g.size, g.dirty = addr, size, false
	return true, nil
}
