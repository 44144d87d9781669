package lfs

import (
	"encoding/binary"
	"sync"

	"github.com/juju/errors"
)

// Inode is the on-device record for one file or directory (spec.md §3).
// It occupies exactly one page. FileSize is a byte count for regular
// files and an entry count for directories.
type Inode struct {
	InodeNo     uint32
	EntityName  string
	IsDir       bool
	FileSize    uint64
	Direct      [DDirect]uint64
	IndirectPtr uint64

	mu    sync.Mutex
	dirty bool
}

func newInode(no uint32, name string, isDir bool) (*Inode, error) {
	if len(name) > MaxEntityNameLen {
		return nil, errors.Annotatef(ErrNameTooLong, "%q", name)
	}
	return &Inode{InodeNo: no, EntityName: name, IsDir: isDir, dirty: true}, nil
}

// MarkDirty flags the inode for write-back at unmount or explicit flush.
func (n *Inode) MarkDirty() {
	n.mu.Lock()
	n.dirty = true
	n.mu.Unlock()
}

func (n *Inode) clearDirty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	was := n.dirty
	n.dirty = false
	return was
}

func (n *Inode) isDirty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dirty
}

// inodeLayout (all offsets in bytes within the inode's page):
//
//	0   : InodeNo      uint32
//	4   : IsDir         byte (0/1)
//	5   : EntityName    [MaxEntityNameLen]byte, NUL-padded
//	240 : FileSize      uint64
//	248 : IndirectPtr   uint64
//	256 : Direct[480]   uint64 each (3840 bytes) -> ends at 4096
const (
	inodeOffNo       = 0
	inodeOffIsDir    = 4
	inodeOffName     = 5
	inodeOffFileSize = inodeOffName + MaxEntityNameLen // 240
	inodeOffIndirect = inodeOffFileSize + 8            // 248
	inodeOffDirect   = inodeOffIndirect + 8             // 256
)

// encodeInode serializes n into a page-sized buffer.
func encodeInode(n *Inode) []byte {
	buf := make([]byte, InodeSize)
	binary.LittleEndian.PutUint32(buf[inodeOffNo:], n.InodeNo)
	if n.IsDir {
		buf[inodeOffIsDir] = 1
	}
	copy(buf[inodeOffName:inodeOffName+MaxEntityNameLen], n.EntityName)
	binary.LittleEndian.PutUint64(buf[inodeOffFileSize:], n.FileSize)
	binary.LittleEndian.PutUint64(buf[inodeOffIndirect:], n.IndirectPtr)
	for i, v := range n.Direct {
		binary.LittleEndian.PutUint64(buf[inodeOffDirect+i*8:], v)
	}
	return buf
}

// decodeInode parses a page-sized buffer into an Inode.
func decodeInode(buf []byte) *Inode {
	n := &Inode{}
	n.InodeNo = binary.LittleEndian.Uint32(buf[inodeOffNo:])
	n.IsDir = buf[inodeOffIsDir] != 0
	n.EntityName = cStringFrom(buf[inodeOffName : inodeOffName+MaxEntityNameLen])
	n.FileSize = binary.LittleEndian.Uint64(buf[inodeOffFileSize:])
	n.IndirectPtr = binary.LittleEndian.Uint64(buf[inodeOffIndirect:])
	for i := range n.Direct {
		n.Direct[i] = binary.LittleEndian.Uint64(buf[inodeOffDirect+i*8:])
	}
	return n
}

// cStringFrom trims a fixed-width NUL-padded field down to its content.
func cStringFrom(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

// inodeAddr returns the byte address of inode no within the superblock +
// inode-table region (spec.md §4.5's get_path_inode formula).
func inodeAddr(no uint32) uint64 {
	return SuperblockSize + uint64(no)*InodeSize
}
