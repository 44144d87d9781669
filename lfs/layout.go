// Package lfs is the minimal log-structured filesystem from spec.md
// §4.5 and §6: a flat-ish directory hierarchy of inodes, direct/
// indirect block chains, and directory blocks, laid out on the byte
// address space the FTL package exposes.
package lfs

// On-device layout constants (spec.md §3, §6; original_source/MYFS_IO.h
// for the exact numeric constants the distilled spec only describes in
// words).
const (
	// MaxInodeCount bounds the inode table; inode 0 is reserved for root.
	MaxInodeCount = 255
	// InodeSize is the fixed on-device size of one inode record; an
	// inode occupies exactly one page.
	InodeSize = 4096
	// SuperblockSize is the fixed size of the first page.
	SuperblockSize = 4096
	// DataBlocksOffset is the first page of the data region: the
	// superblock page plus the inode table.
	DataBlocksOffset = 1 + MaxInodeCount

	// DDirect is the number of direct data-block addresses held inline
	// in an inode.
	DDirect = 480
	// IndirectDirect is the number of direct data-block addresses held
	// in one indirect block.
	IndirectDirect = 510
	// MaxEntityNameLen bounds a file or directory's name.
	MaxEntityNameLen = 235
	// DirEntriesPerBlock is the number of (name, inode) pairs one
	// directory block holds.
	DirEntriesPerBlock = 16
	// DirEntityNameLen is the per-entry name field width in a directory
	// block (wider than MaxEntityNameLen to leave room for the
	// tombstone sentinel without truncation).
	DirEntityNameLen = 252

	// RootInodeNo and RootDataBlockNo are reserved for the filesystem
	// root directory.
	RootInodeNo      = 0
	RootDataBlockNo  = 0
	rootName         = "root"
	deletedSentinel  = "<del>"
)

// PathSeparator is the only separator absolute paths use.
const PathSeparator = "/"
