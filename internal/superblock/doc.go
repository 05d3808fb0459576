// Package superblock reads and writes the HDF5 superblock.
//
// The superblock may sit at file offset 0, 512, 1024 or 2048. MAT 7.3 files
// put a 512-byte MATLAB header in front of it (the HDF5 "userblock"), so the
// superblock of a MAT file is found at 512. Every address stored in the file
// is relative to the superblock location; callers read and write through a
// view that starts at [Superblock.Location].
//
// Versions 0 and 1 are read; the root group is then described by a symbol
// table entry. Versions 2 and 3 are read and written; they carry a lookup3
// checksum and point straight at the root object header.
package superblock
