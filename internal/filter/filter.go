// Package filter undoes the HDF5 filters MATLAB applies to chunked
// variables: deflate, shuffle and the Fletcher-32 checksum.
package filter

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
	"github.com/robert-malhotra/go-matio/internal/message"
)

// Filter decodes one pipeline stage.
type Filter interface {
	ID() uint16
	Decode(input []byte) ([]byte, error)
}

var registry = map[uint16]func(cd []uint32, elemSize int) Filter{
	message.FilterDeflate:    func([]uint32, int) Filter { return deflate{} },
	message.FilterShuffle:    func(cd []uint32, size int) Filter { return newShuffle(cd, size) },
	message.FilterFletcher32: func([]uint32, int) Filter { return fletcher32{} },
}

var names = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New returns the decoder for info, or nil for a missing optional filter.
func New(info message.FilterInfo, elemSize int) (Filter, error) {
	ctor, ok := registry[info.ID]
	if ok {
		return ctor(info.ClientData, elemSize), nil
	}
	if info.Optional() {
		return nil, nil
	}
	if name, known := names[info.ID]; known {
		return nil, fmt.Errorf("%s filter (id %d) is not supported", name, info.ID)
	}
	return nil, fmt.Errorf("unsupported filter id %d", info.ID)
}

// Pipeline decodes chunks through a filter pipeline.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds a decoder for fp. A nil fp yields an empty pipeline.
func NewPipeline(fp *message.FilterPipeline, elemSize int) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info, elemSize)
		if err != nil {
			return nil, err
		}
		p.filters = append(p.filters, f)
	}
	return p, nil
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.filters)
}

// Decode runs the stages in reverse order. Bit i of mask skips stage i.
func (p *Pipeline) Decode(input []byte, mask uint32) ([]byte, error) {
	data := input
	for i := len(p.filters) - 1; i >= 0; i-- {
		f := p.filters[i]
		if f == nil || mask&(1<<uint(i)) != 0 {
			continue
		}
		var err error
		if data, err = f.Decode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
	}
	return data, nil
}

type deflate struct{}

func (deflate) ID() uint16 { return message.FilterDeflate }

func (deflate) Decode(input []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

type shuffle struct {
	size int
}

// newShuffle takes the element size from the client data, falling back to
// the dataset's element size.
func newShuffle(cd []uint32, elemSize int) shuffle {
	if len(cd) > 0 && cd[0] > 0 {
		return shuffle{size: int(cd[0])}
	}
	return shuffle{size: elemSize}
}

func (shuffle) ID() uint16 { return message.FilterShuffle }

// Decode regroups byte planes into elements. Trailing bytes that do not
// form a whole element are stored unshuffled.
func (f shuffle) Decode(input []byte) ([]byte, error) {
	if f.size <= 1 || len(input) < f.size {
		return input, nil
	}
	n := len(input) / f.size
	out := make([]byte, len(input))
	for b := 0; b < f.size; b++ {
		plane := input[b*n : (b+1)*n]
		for i, v := range plane {
			out[i*f.size+b] = v
		}
	}
	copy(out[n*f.size:], input[n*f.size:])
	return out, nil
}

type fletcher32 struct{}

func (fletcher32) ID() uint16 { return message.FilterFletcher32 }

// Decode checks and strips the trailing checksum. Files from old library
// versions store it byte-swapped, so both orders are accepted.
func (fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes is too short", len(input))
	}
	n := len(input) - 4
	stored := binary.LittleEndian.Uint32(input[n:])
	sum := binpkg.Fletcher32(input[:n])
	if stored != sum && stored != bits.ReverseBytes32(sum) {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored %#08x, computed %#08x)", stored, sum)
	}
	return input[:n], nil
}
