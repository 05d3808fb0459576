// Package alloc hands out file space for append-only HDF5 updates. New
// objects always go at the end of file; space of objects that a later update
// replaces is only counted, never reused.
package alloc

// Stats summarizes allocator activity.
type Stats struct {
	Allocations uint64
	BytesAlloc  uint64
	BytesStale  uint64
}

// Allocator tracks the end-of-file address. It is not safe for concurrent
// use; a file has a single writer.
type Allocator struct {
	eof   uint64
	stats Stats
}

// New returns an allocator whose first block starts at eof.
func New(eof uint64) *Allocator {
	return &Allocator{eof: eof}
}

// Alloc reserves size bytes at an 8-byte aligned address.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.eof = (a.eof + 7) &^ 7
	addr := a.eof
	a.eof += size
	if size > 0 {
		a.stats.Allocations++
		a.stats.BytesAlloc += size
	}
	return addr
}

// Release records that size bytes are no longer referenced.
func (a *Allocator) Release(size uint64) {
	a.stats.BytesStale += size
}

// EOF returns the end-of-file address.
func (a *Allocator) EOF() uint64 {
	return a.eof
}

// Stats returns a snapshot of the counters.
func (a *Allocator) Stats() Stats {
	return a.stats
}

