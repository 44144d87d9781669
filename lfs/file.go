package lfs

import (
	"sync"

	"github.com/juju/errors"
)

// writeCoalesceThreshold bounds how much appended data a File buffers
// before forcing a flush to the underlying blocks, trading a little
// memory for fewer small appends to the log zone below.
const writeCoalesceThreshold = 4096 * 200

// File is an open handle on a regular file: sequential/random reads
// plus buffered, coalesced appends (spec.md §4.5, §6's writable-file
// state machine).
type File struct {
	fs    *FS
	inode *Inode

	mu      sync.Mutex
	pending []byte // buffered bytes not yet flushed to blocks
}

// Open resolves path to a regular file and returns a handle on it.
func (fs *FS) Open(path string) (*File, error) {
	if !fs.mounted {
		return nil, ErrNotMounted
	}
	n, err := fs.getPathInode(path)
	if err != nil {
		return nil, err
	}
	if n.IsDir {
		return nil, ErrIsDir
	}
	return &File{fs: fs, inode: n}, nil
}

// Read reads len(buf) bytes starting at offset, short-reading at EOF.
func (f *File) Read(offset uint64, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.flushLocked(); err != nil {
		return 0, err
	}

	size := f.inode.FileSize
	if offset >= size {
		return 0, nil
	}
	if offset+uint64(len(buf)) > size {
		buf = buf[:size-offset]
	}

	pageSize := f.fs.pageSize
	page := make([]byte, pageSize)
	read := uint64(0)
	for read < uint64(len(buf)) {
		abs := offset + read
		blockIdx := uint32(abs / pageSize)
		inPage := abs % pageSize
		addr, ok, err := f.fs.blockAddrForOffset(f.inode, blockIdx)
		if err != nil {
			return int(read), err
		}
		n := pageSize - inPage
		if remaining := uint64(len(buf)) - read; n > remaining {
			n = remaining
		}
		if !ok {
			for i := uint64(0); i < n; i++ {
				buf[read+i] = 0
			}
		} else {
			if err := f.fs.f.Read(blockByteAddr(addr, pageSize), page); err != nil {
				return int(read), errors.Annotate(err, "lfs: read file block")
			}
			copy(buf[read:read+n], page[inPage:inPage+n])
		}
		read += n
	}
	return int(read), nil
}

// PRead is an alias for Read kept for callers modelling a separate
// random-access handle type; both share the same underlying state
// machine once buffered writes are flushed.
func (f *File) PRead(offset uint64, buf []byte) (int, error) { return f.Read(offset, buf) }

// Append buffers data for write at the current end of file, flushing
// to the underlying blocks once the buffer crosses
// writeCoalesceThreshold.
func (f *File) Append(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, data...)
	if len(f.pending) >= writeCoalesceThreshold {
		if err := f.flushLocked(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (f *File) flushLocked() error {
	if len(f.pending) == 0 {
		return nil
	}
	start := f.inode.FileSize
	if err := f.fs.rmwWriteRange(f.inode, start, f.pending); err != nil {
		return err
	}
	f.pending = f.pending[:0]
	return nil
}

// Close flushes any buffered writes. Every writable handle must be
// closed for its data to become visible to other handles.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

// rmwWriteRange writes data into inode's content starting at
// startByte, doing a read-modify-write on any page that is only
// partially covered by data and already holds content there. It
// extends FileSize when the write grows the file.
func (fs *FS) rmwWriteRange(inode *Inode, startByte uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	pageSize := fs.pageSize
	endByte := startByte + uint64(len(data))
	firstBlock := uint32(startByte / pageSize)
	lastBlock := uint32((endByte - 1) / pageSize)

	page := make([]byte, pageSize)
	for blockIdx := firstBlock; blockIdx <= lastBlock; blockIdx++ {
		addr, err := fs.ensureBlockAddr(inode, blockIdx)
		if err != nil {
			return err
		}
		pageFileStart := uint64(blockIdx) * pageSize
		pageFileEnd := pageFileStart + pageSize
		overlapStart := maxU64(startByte, pageFileStart)
		overlapEnd := minU64(endByte, pageFileEnd)
		partial := overlapStart > pageFileStart || overlapEnd < pageFileEnd

		for i := range page {
			page[i] = 0
		}
		if partial && pageFileStart < inode.FileSize {
			if err := fs.f.Read(blockByteAddr(addr, pageSize), page); err != nil {
				return errors.Annotate(err, "lfs: read-modify-write read")
			}
		}
		copy(page[overlapStart-pageFileStart:overlapEnd-pageFileStart], data[overlapStart-startByte:overlapEnd-startByte])
		if err := fs.f.Write(blockByteAddr(addr, pageSize), page); err != nil {
			return errors.Annotate(err, "lfs: read-modify-write write")
		}
	}

	if endByte > inode.FileSize {
		inode.FileSize = endByte
		inode.MarkDirty()
	}
	return fs.writeInode(inode)
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
