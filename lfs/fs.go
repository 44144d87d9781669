package lfs

import (
	"sync"

	"github.com/golang/snappy"
	"github.com/hostftl/zns-ftl/ftl"
	"github.com/hostftl/zns-ftl/logger"
	"github.com/juju/errors"
)

// FS is the mounted log-structured filesystem: one superblock, one
// inode table, and the directory tree they describe, all addressed
// through the FTL's byte-addressed Read/Write (spec.md §4.5, §6).
type FS struct {
	f        *ftl.FTL
	pageSize uint64

	mu      sync.Mutex
	sb      *superblock
	inodes  map[uint32]*Inode
	cache   *lookupCache
	mounted bool
}

// Mount reads (or, on a fresh device, formats) the superblock and
// brings up the root directory. pageSize must equal InodeSize: this
// filesystem's on-device records are one device page each.
func Mount(f *ftl.FTL) (*FS, error) {
	geo := f.Geometry()
	if uint64(geo.PageSize) != InodeSize {
		return nil, errors.Errorf("lfs: device page size %d must equal %d", geo.PageSize, InodeSize)
	}
	totalPages := uint64(f.Mapper().NumBlocks()) * uint64(geo.PagesPerZone)
	if totalPages <= DataBlocksOffset {
		return nil, errors.New("lfs: device too small to hold the inode table")
	}
	numDataBlocks := uint32(totalPages - DataBlocksOffset)

	fs := &FS{
		f:        f,
		pageSize: uint64(geo.PageSize),
		inodes:   make(map[uint32]*Inode),
		cache:    newLookupCache(),
	}

	sbBuf := make([]byte, SuperblockSize)
	if err := f.Read(0, sbBuf); err != nil {
		return nil, errors.Annotate(err, "lfs: read superblock")
	}
	sb, err := decodeSuperblock(sbBuf, MaxInodeCount, numDataBlocks)
	if err != nil {
		return nil, errors.Annotate(err, "lfs: decode superblock")
	}
	fs.sb = sb

	if !sb.Persistent {
		if err := fs.format(); err != nil {
			return nil, errors.Annotate(err, "lfs: format")
		}
		logger.Info("lfs: formatted fresh filesystem")
	} else {
		logger.Info("lfs: mounted existing filesystem")
	}
	fs.mounted = true
	return fs, nil
}

// format lays down an empty root directory on a blank device.
func (fs *FS) format() error {
	fs.sb.InodeBitmap.Set(RootInodeNo)
	fs.sb.DataBitmap.Set(RootDataBlockNo)

	root, err := newInode(RootInodeNo, rootName, true)
	if err != nil {
		return err
	}
	root.Direct[0] = dataBlockAddr(RootDataBlockNo)
	fs.inodes[RootInodeNo] = root

	empty := &dirBlock{}
	for i := range empty.Entries {
		empty.Entries[i] = dirEntry{}
	}
	if err := fs.f.Write(blockByteAddr(dataBlockAddr(RootDataBlockNo), fs.pageSize), encodeDirBlock(empty)); err != nil {
		return errors.Annotate(err, "lfs: write root directory block")
	}
	if err := fs.writeInode(root); err != nil {
		return err
	}
	fs.sb.Persistent = true
	return fs.writeSuperblock()
}

func dataBlockAddr(idx uint32) uint64 { return DataBlocksOffset + uint64(idx) }

func blockByteAddr(pageAddr uint64, pageSize uint64) uint64 { return pageAddr * pageSize }

func (fs *FS) writeSuperblock() error {
	buf, err := encodeSuperblock(fs.sb)
	if err != nil {
		return err
	}
	return fs.f.Write(0, buf)
}

func (fs *FS) loadInode(no uint32) (*Inode, error) {
	fs.mu.Lock()
	if n, ok := fs.inodes[no]; ok {
		fs.mu.Unlock()
		return n, nil
	}
	fs.mu.Unlock()

	buf := make([]byte, InodeSize)
	if err := fs.f.Read(inodeAddr(no), buf); err != nil {
		return nil, errors.Annotatef(err, "lfs: read inode %d", no)
	}
	n := decodeInode(buf)

	fs.mu.Lock()
	fs.inodes[no] = n
	fs.mu.Unlock()
	return n, nil
}

func (fs *FS) writeInode(n *Inode) error {
	n.clearDirty()
	return fs.f.Write(inodeAddr(n.InodeNo), encodeInode(n))
}

func (fs *FS) readIndirect(pageAddr uint64) (*indirectBlock, error) {
	buf := make([]byte, InodeSize)
	if err := fs.f.Read(blockByteAddr(pageAddr, fs.pageSize), buf); err != nil {
		return nil, errors.Annotate(err, "lfs: read indirect block")
	}
	return decodeIndirect(buf), nil
}

func (fs *FS) writeIndirect(pageAddr uint64, b *indirectBlock) error {
	b.CurrentAddr = pageAddr
	return fs.f.Write(blockByteAddr(pageAddr, fs.pageSize), encodeIndirect(b))
}

func (fs *FS) allocInode() (uint32, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	idx, ok := fs.sb.InodeBitmap.Alloc()
	if !ok {
		return 0, ErrInodeExhausted
	}
	return idx, nil
}

func (fs *FS) freeInode(no uint32) {
	fs.mu.Lock()
	fs.sb.InodeBitmap.Clear(no)
	delete(fs.inodes, no)
	fs.mu.Unlock()
}

func (fs *FS) allocBlock() (uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	idx, ok := fs.sb.DataBitmap.Alloc()
	if !ok {
		return 0, ErrBlockExhausted
	}
	return dataBlockAddr(idx), nil
}

// blockAddrForOffset resolves the blockIdx'th data block of n, walking
// the indirect chain past DDirect. exists is false for a hole that has
// never been allocated.
func (fs *FS) blockAddrForOffset(n *Inode, blockIdx uint32) (pageAddr uint64, exists bool, err error) {
	if blockIdx < DDirect {
		a := n.Direct[blockIdx]
		return a, a != 0, nil
	}
	remaining := blockIdx - DDirect
	indirectAddr := n.IndirectPtr
	for indirectAddr != 0 {
		ib, err := fs.readIndirect(indirectAddr)
		if err != nil {
			return 0, false, err
		}
		if remaining < IndirectDirect {
			a := ib.Direct[remaining]
			return a, a != 0, nil
		}
		remaining -= IndirectDirect
		indirectAddr = ib.NextIndirect
	}
	return 0, false, nil
}

// ensureBlockAddr resolves the blockIdx'th data block of n, allocating
// the block (and any indirect chain nodes needed to reach it) if it
// does not exist yet.
func (fs *FS) ensureBlockAddr(n *Inode, blockIdx uint32) (uint64, error) {
	if a, ok, err := fs.blockAddrForOffset(n, blockIdx); err != nil {
		return 0, err
	} else if ok {
		return a, nil
	}

	newBlock, err := fs.allocBlock()
	if err != nil {
		return 0, err
	}

	if blockIdx < DDirect {
		n.Direct[blockIdx] = newBlock
		n.MarkDirty()
		return newBlock, nil
	}

	remaining := blockIdx - DDirect
	indirectAddr := n.IndirectPtr
	var prevIB *indirectBlock
	var prevAddr uint64
	for {
		if indirectAddr == 0 {
			newIndirect, err := fs.allocBlock()
			if err != nil {
				return 0, err
			}
			ib := &indirectBlock{}
			if prevIB != nil {
				prevIB.NextIndirect = newIndirect
				if err := fs.writeIndirect(prevAddr, prevIB); err != nil {
					return 0, err
				}
			} else {
				n.IndirectPtr = newIndirect
				n.MarkDirty()
			}
			indirectAddr = newIndirect
			prevIB = ib
			prevAddr = newIndirect
			continue
		}
		ib, err := fs.readIndirect(indirectAddr)
		if err != nil {
			return 0, err
		}
		if remaining < IndirectDirect {
			ib.Direct[remaining] = newBlock
			if err := fs.writeIndirect(indirectAddr, ib); err != nil {
				return 0, err
			}
			return newBlock, nil
		}
		remaining -= IndirectDirect
		if ib.NextIndirect == 0 {
			prevIB, prevAddr = ib, indirectAddr
			indirectAddr = 0
			continue
		}
		indirectAddr = ib.NextIndirect
	}
}

// getPathInode resolves an absolute path to its inode, consulting and
// populating the lookup cache (spec.md §4.5's get_path_inode).
func (fs *FS) getPathInode(path string) (*Inode, error) {
	clean := cleanPath(path)
	if clean == PathSeparator {
		return fs.loadInode(RootInodeNo)
	}
	if n, ok := fs.cache.get(clean); ok {
		return n, nil
	}

	parts := splitNonEmpty(clean)
	cur, err := fs.loadInode(RootInodeNo)
	if err != nil {
		return nil, err
	}
	walked := ""
	for _, name := range parts {
		if !cur.IsDir {
			return nil, ErrNotDir
		}
		childNo, found, err := fs.lookupChild(cur, name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		cur, err = fs.loadInode(childNo)
		if err != nil {
			return nil, err
		}
		walked += PathSeparator + name
		fs.cache.put(walked, cur)
	}
	return cur, nil
}

// lookupChild scans dir's directory blocks for name.
func (fs *FS) lookupChild(dir *Inode, name string) (inodeNo uint32, found bool, err error) {
	numBlocks := (dir.FileSize + DirEntriesPerBlock - 1) / DirEntriesPerBlock
	for b := uint32(0); uint64(b) < numBlocks; b++ {
		addr, ok, err := fs.blockAddrForOffset(dir, b)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		buf := make([]byte, InodeSize)
		if err := fs.f.Read(blockByteAddr(addr, fs.pageSize), buf); err != nil {
			return 0, false, errors.Annotate(err, "lfs: read directory block")
		}
		db := decodeDirBlock(buf)
		for _, e := range db.Entries {
			if e.isLive() && e.Name == name {
				return e.InodeNo, true, nil
			}
		}
	}
	return 0, false, nil
}

// updateParent inserts (or, if del, tombstones) a (name, inodeNo) entry
// in dir's directory blocks, appending a new directory block when every
// existing one is full (spec.md §4.5's update_parent).
func (fs *FS) updateParent(dir *Inode, name string, inodeNo uint32, del bool) error {
	numBlocks := (dir.FileSize + DirEntriesPerBlock - 1) / DirEntriesPerBlock
	if numBlocks == 0 {
		numBlocks = 1
	}
	for b := uint32(0); uint64(b) < numBlocks; b++ {
		addr, err := fs.ensureBlockAddr(dir, b)
		if err != nil {
			return err
		}
		buf := make([]byte, InodeSize)
		if err := fs.f.Read(blockByteAddr(addr, fs.pageSize), buf); err != nil {
			return errors.Annotate(err, "lfs: read directory block")
		}
		db := decodeDirBlock(buf)
		for i := range db.Entries {
			e := &db.Entries[i]
			if del {
				if e.isLive() && e.Name == name {
					e.Name = deletedSentinel
					return fs.writeDirBlock(addr, db, dir)
				}
				continue
			}
			if !e.isLive() {
				e.Name = name
				e.InodeNo = inodeNo
				dir.FileSize++
				dir.MarkDirty()
				return fs.writeDirBlock(addr, db, dir)
			}
		}
	}
	if del {
		return ErrNotFound
	}
	// Every existing block is full: grow by one block and retry.
	nextIdx := uint32(numBlocks)
	addr, err := fs.ensureBlockAddr(dir, nextIdx)
	if err != nil {
		return err
	}
	db := &dirBlock{Entries: [DirEntriesPerBlock]dirEntry{{Name: name, InodeNo: inodeNo}}}
	dir.FileSize++
	dir.MarkDirty()
	return fs.writeDirBlock(addr, db, dir)
}

func (fs *FS) writeDirBlock(addr uint64, db *dirBlock, dir *Inode) error {
	if err := fs.f.Write(blockByteAddr(addr, fs.pageSize), encodeDirBlock(db)); err != nil {
		return errors.Annotate(err, "lfs: write directory block")
	}
	return fs.writeInode(dir)
}

// CreateDir creates an empty directory at path.
func (fs *FS) CreateDir(path string) error {
	return fs.create(path, true)
}

// CreateFile creates an empty regular file at path.
func (fs *FS) CreateFile(path string) error {
	return fs.create(path, false)
}

func (fs *FS) create(path string, isDir bool) error {
	if !fs.mounted {
		return ErrNotMounted
	}
	name := entityName(path)
	if name == "" {
		return errors.Errorf("lfs: %q has no entity name", path)
	}
	parent, err := fs.getPathInode(parentPath(path))
	if err != nil {
		return err
	}
	if !parent.IsDir {
		return ErrNotDir
	}
	if _, found, err := fs.lookupChild(parent, name); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	no, err := fs.allocInode()
	if err != nil {
		return err
	}
	n, err := newInode(no, name, isDir)
	if err != nil {
		fs.freeInode(no)
		return err
	}
	if err := fs.writeInode(n); err != nil {
		fs.freeInode(no)
		return err
	}
	fs.mu.Lock()
	fs.inodes[no] = n
	fs.mu.Unlock()

	if err := fs.updateParent(parent, name, no, false); err != nil {
		fs.freeInode(no)
		return err
	}
	return nil
}

// Delete removes the entry at path. A non-empty directory cannot be
// deleted (spec.md §4.5's edge cases).
func (fs *FS) Delete(path string) error {
	if !fs.mounted {
		return ErrNotMounted
	}
	n, err := fs.getPathInode(path)
	if err != nil {
		return err
	}
	if n.IsDir {
		children, err := fs.ListChildren(path)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return errors.New("lfs: directory not empty")
		}
	}
	parent, err := fs.getPathInode(parentPath(path))
	if err != nil {
		return err
	}
	if err := fs.updateParent(parent, entityName(path), n.InodeNo, true); err != nil {
		return err
	}
	fs.freeInode(n.InodeNo)
	fs.cache.invalidatePrefix(cleanPath(path))
	return nil
}

// Rename moves the entry at oldPath to newPath, which must not already
// exist. Renaming invalidates every cached lookup under the old path.
func (fs *FS) Rename(oldPath, newPath string) error {
	if !fs.mounted {
		return ErrNotMounted
	}
	n, err := fs.getPathInode(oldPath)
	if err != nil {
		return err
	}
	oldParent, err := fs.getPathInode(parentPath(oldPath))
	if err != nil {
		return err
	}
	newParent, err := fs.getPathInode(parentPath(newPath))
	if err != nil {
		return err
	}
	newName := entityName(newPath)
	if _, found, err := fs.lookupChild(newParent, newName); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	if err := fs.updateParent(oldParent, entityName(oldPath), n.InodeNo, true); err != nil {
		return err
	}
	if err := fs.updateParent(newParent, newName, n.InodeNo, false); err != nil {
		return err
	}
	n.EntityName = newName
	n.MarkDirty()
	if err := fs.writeInode(n); err != nil {
		return err
	}
	fs.cache.invalidatePrefix(cleanPath(oldPath))
	return nil
}

// ListChildren returns the live entry names of the directory at path.
func (fs *FS) ListChildren(path string) ([]string, error) {
	dir, err := fs.getPathInode(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir {
		return nil, ErrNotDir
	}
	var out []string
	numBlocks := (dir.FileSize + DirEntriesPerBlock - 1) / DirEntriesPerBlock
	for b := uint32(0); uint64(b) < numBlocks; b++ {
		addr, ok, err := fs.blockAddrForOffset(dir, b)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		buf := make([]byte, InodeSize)
		if err := fs.f.Read(blockByteAddr(addr, fs.pageSize), buf); err != nil {
			return nil, errors.Annotate(err, "lfs: read directory block")
		}
		db := decodeDirBlock(buf)
		for _, e := range db.Entries {
			if e.isLive() {
				out = append(out, e.Name)
			}
		}
	}
	return out, nil
}

// Exists reports whether path resolves to an entry.
func (fs *FS) Exists(path string) bool {
	_, err := fs.getPathInode(path)
	return err == nil
}

// Size returns a regular file's byte size.
func (fs *FS) Size(path string) (uint64, error) {
	n, err := fs.getPathInode(path)
	if err != nil {
		return 0, err
	}
	if n.IsDir {
		return 0, ErrIsDir
	}
	return n.FileSize, nil
}

// Unmount flushes every dirty inode and the superblock, then writes a
// snappy-compressed debugging snapshot to shadowPath if non-empty. The
// snapshot is write-only: nothing ever reads it back at mount (spec.md
// §9's crash-consistency non-goal stands; this is a diagnostics aid
// only).
func (fs *FS) Unmount(shadowPath string) error {
	if !fs.mounted {
		return ErrNotMounted
	}
	fs.mu.Lock()
	dirty := make([]*Inode, 0, len(fs.inodes))
	for _, n := range fs.inodes {
		dirty = append(dirty, n)
	}
	fs.mu.Unlock()

	for _, n := range dirty {
		if !n.isDirty() {
			continue
		}
		if err := fs.writeInode(n); err != nil {
			return errors.Annotatef(err, "lfs: flush inode %d", n.InodeNo)
		}
	}
	if err := fs.writeSuperblock(); err != nil {
		return err
	}

	if shadowPath != "" {
		if err := fs.writeShadowCheckpoint(shadowPath); err != nil {
			logger.Warnf("lfs: shadow checkpoint failed: %v", err)
		}
	}

	fs.mounted = false
	logger.Info("lfs: unmounted")
	return nil
}

func (fs *FS) writeShadowCheckpoint(path string) error {
	raw, err := encodeSuperblock(fs.sb)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, raw)
	return writeShadowFile(path, compressed)
}
