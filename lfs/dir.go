package lfs

import "encoding/binary"

// dirEntry is one (name, inode) pair inside a directory block.
type dirEntry struct {
	Name    string
	InodeNo uint32
}

// dirBlock is one page holding up to DirEntriesPerBlock entries. A
// directory file's data blocks are exclusively directory blocks
// (spec.md §3).
type dirBlock struct {
	Entries [DirEntriesPerBlock]dirEntry
}

const dirEntryWidth = DirEntityNameLen + 4 // name + uint32 inode no = 256

func encodeDirBlock(b *dirBlock) []byte {
	buf := make([]byte, InodeSize)
	for i, e := range b.Entries {
		off := i * dirEntryWidth
		copy(buf[off:off+DirEntityNameLen], e.Name)
		binary.LittleEndian.PutUint32(buf[off+DirEntityNameLen:], e.InodeNo)
	}
	return buf
}

func decodeDirBlock(buf []byte) *dirBlock {
	b := &dirBlock{}
	for i := range b.Entries {
		off := i * dirEntryWidth
		b.Entries[i].Name = cStringFrom(buf[off : off+DirEntityNameLen])
		b.Entries[i].InodeNo = binary.LittleEndian.Uint32(buf[off+DirEntityNameLen:])
	}
	return b
}

// isLive reports whether e is a real (non-empty, non-tombstoned) entry.
func (e dirEntry) isLive() bool {
	return e.Name != "" && e.Name != deletedSentinel
}
