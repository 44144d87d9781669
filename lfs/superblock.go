package lfs

import (
	"encoding/binary"

	"github.com/hostftl/zns-ftl/util"
	"github.com/juju/errors"
)

// superblock is the first page of the device (spec.md §3): a
// persistence flag, the two allocator cursors, and the inode/data
// bitmaps. checksum guards the bitmaps against silent corruption
// (SPEC_FULL.md §3's domain addition).
type superblock struct {
	Persistent   bool
	InodePtr     uint32
	DataBlockPtr uint32
	InodeBitmap  *Bitmap
	DataBitmap   *Bitmap
}

const (
	sbOffPersistent    = 0
	sbOffInodePtr      = 1
	sbOffDataBlockPtr  = 5
	sbOffChecksum      = 9
	sbOffInodeBitLen   = 17
	sbOffDataBitLen    = 21
	sbOffBitmapPayload = 25
)

func encodeSuperblock(sb *superblock) ([]byte, error) {
	buf := make([]byte, SuperblockSize)
	if sb.Persistent {
		buf[sbOffPersistent] = 1
	}
	sb.InodePtr = sb.InodeBitmap.Cursor()
	sb.DataBlockPtr = sb.DataBitmap.Cursor()
	binary.LittleEndian.PutUint32(buf[sbOffInodePtr:], sb.InodePtr)
	binary.LittleEndian.PutUint32(buf[sbOffDataBlockPtr:], sb.DataBlockPtr)

	inodeBits := sb.InodeBitmap.Bytes()
	dataBits := sb.DataBitmap.Bytes()
	binary.LittleEndian.PutUint32(buf[sbOffInodeBitLen:], uint32(len(inodeBits)))
	binary.LittleEndian.PutUint32(buf[sbOffDataBitLen:], uint32(len(dataBits)))

	end := sbOffBitmapPayload + len(inodeBits) + len(dataBits)
	if end > SuperblockSize {
		return nil, errors.Errorf("lfs: bitmaps (%d bytes) do not fit in the superblock page", end)
	}
	copy(buf[sbOffBitmapPayload:], inodeBits)
	copy(buf[sbOffBitmapPayload+len(inodeBits):], dataBits)

	checksum := util.HashCode(buf[sbOffBitmapPayload:end])
	binary.LittleEndian.PutUint64(buf[sbOffChecksum:], checksum)
	return buf, nil
}

func decodeSuperblock(buf []byte, numInodes, numDataBlocks uint32) (*superblock, error) {
	sb := &superblock{
		Persistent:   buf[sbOffPersistent] != 0,
		InodePtr:     binary.LittleEndian.Uint32(buf[sbOffInodePtr:]),
		DataBlockPtr: binary.LittleEndian.Uint32(buf[sbOffDataBlockPtr:]),
		InodeBitmap:  NewBitmap(numInodes),
		DataBitmap:   NewBitmap(numDataBlocks),
	}
	if !sb.Persistent {
		return sb, nil
	}

	inodeLen := binary.LittleEndian.Uint32(buf[sbOffInodeBitLen:])
	dataLen := binary.LittleEndian.Uint32(buf[sbOffDataBitLen:])
	storedChecksum := binary.LittleEndian.Uint64(buf[sbOffChecksum:])
	end := sbOffBitmapPayload + int(inodeLen) + int(dataLen)
	if end > SuperblockSize {
		return nil, errors.Errorf("lfs: superblock bitmap lengths are corrupt")
	}
	if got := util.HashCode(buf[sbOffBitmapPayload:end]); got != storedChecksum {
		return nil, errors.Errorf("lfs: superblock checksum mismatch (want %x got %x)", storedChecksum, got)
	}

	sb.InodeBitmap.LoadBytes(buf[sbOffBitmapPayload : sbOffBitmapPayload+int(inodeLen)])
	sb.DataBitmap.LoadBytes(buf[sbOffBitmapPayload+int(inodeLen) : end])
	sb.InodeBitmap.SetCursor(sb.InodePtr)
	sb.DataBitmap.SetCursor(sb.DataBlockPtr)
	return sb, nil
}
