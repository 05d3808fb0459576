package superblock

import (
	binpkg "github.com/robert-malhotra/go-matio/internal/binary"
)

// New returns a version 2 superblock with 8-byte offsets and lengths.
func New() *Superblock {
	return &Superblock{
		Version:    2,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// Size returns the encoded size of a version 2/3 superblock, checksum included.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}

// Write encodes the superblock at the writer's position. Versions below 2
// are written as version 2; an unset extension address is written undefined.
func (sb *Superblock) Write(w *binpkg.Writer) error {
	bw, buf := binpkg.NewBufferWriter(sb.Config())

	version := sb.Version
	if version < 2 {
		version = 2
	}
	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = bw.UndefinedOffset()
	}
	if err := bw.WriteBytes(Signature); err != nil {
		return err
	}
	if err := bw.WriteBytes([]byte{version, sb.OffsetSize, sb.LengthSize, sb.Flags}); err != nil {
		return err
	}
	for _, addr := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		if err := bw.WriteOffset(addr); err != nil {
			return err
		}
	}
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes())); err != nil {
		return err
	}

	return w.WriteBytes(buf.Bytes())
}
