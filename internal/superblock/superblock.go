package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
)

// Signature is the 8-byte HDF5 format signature.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// Offsets are the candidate superblock locations, in search order.
var Offsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrChecksum           = errors.New("superblock checksum mismatch")
)

// Superblock holds the fields needed to navigate a file.
type Superblock struct {
	Version          uint8
	OffsetSize       uint8
	LengthSize       uint8
	Flags            uint8
	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64

	// RootGroupAddress is the root object header address, relative to
	// Location. Version 0/1 files take it from the root symbol table entry.
	RootGroupAddress uint64

	GroupLeafNodeK     uint16
	GroupInternalNodeK uint16

	// Location is the absolute file offset the superblock was found at.
	Location int64
}

// Read searches the candidate offsets for a superblock and parses it.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, 9)
	for _, off := range Offsets {
		if n, _ := r.ReadAt(sig, off); n < len(sig) {
			break
		}
		if !bytes.Equal(sig[:8], Signature) {
			continue
		}

		var (
			sb  *Superblock
			err error
		)
		switch v := sig[8]; v {
		case 0, 1:
			sb, err = readV0V1(r, off, v)
		case 2, 3:
			sb, err = readV2V3(r, off, v)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		if err != nil {
			return nil, err
		}
		sb.Location = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// Config returns the binary configuration implied by the superblock.
func (sb *Superblock) Config() binpkg.Config {
	cfg := binpkg.DefaultConfig()
	cfg.OffsetSize = int(sb.OffsetSize)
	cfg.LengthSize = int(sb.LengthSize)
	return cfg
}

// Layout of versions 0 and 1, relative to the signature:
//
//	8   version, free-space version, root entry version, reserved,
//	    shared header version, offset size, length size, reserved
//	16  group leaf K (2), group internal K (2), consistency flags (4)
//	24  v1 only: indexed storage K (2), reserved (2)
//	    base, free-space, EOF, driver info addresses
//	    root symbol table entry: name offset, object header address, ...
func readV0V1(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	br := binpkg.NewReader(r, binpkg.DefaultConfig()).At(off + 8)
	head, err := br.ReadBytes(16)
	if err != nil {
		return nil, fmt.Errorf("superblock v%d: %w", version, err)
	}
	sb := &Superblock{
		Version:            version,
		OffsetSize:         head[5],
		LengthSize:         head[6],
		GroupLeafNodeK:     uint16(head[8]) | uint16(head[9])<<8,
		GroupInternalNodeK: uint16(head[10]) | uint16(head[11])<<8,
	}
	if err := sb.Config().Validate(); err != nil {
		return nil, err
	}
	if version == 1 {
		br.Skip(4)
	}
	br = binpkg.NewReader(r, sb.Config()).At(br.Pos())

	var addrs [6]uint64
	for i := range addrs {
		if addrs[i], err = br.ReadOffset(); err != nil {
			return nil, fmt.Errorf("superblock v%d: %w", version, err)
		}
	}
	sb.BaseAddress = addrs[0]
	sb.EOFAddress = addrs[2]
	// addrs[4] is the root entry's link name offset.
	sb.RootGroupAddress = addrs[5]
	return sb, nil
}

// Layout of versions 2 and 3, relative to the signature:
//
//	8   version, offset size, length size, consistency flags
//	12  base, extension, EOF, root object header addresses
//	    lookup3 checksum of everything before it
func readV2V3(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, fmt.Errorf("superblock v%d: %w", version, err)
	}
	sb := &Superblock{
		Version:    version,
		OffsetSize: head[9],
		LengthSize: head[10],
		Flags:      head[11],
	}
	if err := sb.Config().Validate(); err != nil {
		return nil, err
	}

	size := sb.Size()
	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, off); err != nil {
		return nil, fmt.Errorf("superblock v%d: %w", version, err)
	}
	br := binpkg.NewReader(bytes.NewReader(raw), sb.Config()).At(12)
	sb.BaseAddress, _ = br.ReadOffset()
	sb.ExtensionAddress, _ = br.ReadOffset()
	sb.EOFAddress, _ = br.ReadOffset()
	sb.RootGroupAddress, _ = br.ReadOffset()
	stored, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	if binpkg.Lookup3Checksum(raw[:size-4]) != stored {
		return nil, ErrChecksum
	}
	return sb, nil
}
