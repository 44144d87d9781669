package lfs

import "encoding/binary"

// indirectBlock is one page extending a file's direct block array: its
// own address, up to IndirectDirect further data-block addresses, and
// the next indirect block in the chain (spec.md §3).
type indirectBlock struct {
	CurrentAddr  uint64
	Direct       [IndirectDirect]uint64
	NextIndirect uint64
}

const (
	indirectOffCurrent = 0
	indirectOffDirect  = 8
	indirectOffNext    = indirectOffDirect + IndirectDirect*8 // 4088
)

func encodeIndirect(b *indirectBlock) []byte {
	buf := make([]byte, InodeSize)
	binary.LittleEndian.PutUint64(buf[indirectOffCurrent:], b.CurrentAddr)
	for i, v := range b.Direct {
		binary.LittleEndian.PutUint64(buf[indirectOffDirect+i*8:], v)
	}
	binary.LittleEndian.PutUint64(buf[indirectOffNext:], b.NextIndirect)
	return buf
}

func decodeIndirect(buf []byte) *indirectBlock {
	b := &indirectBlock{}
	b.CurrentAddr = binary.LittleEndian.Uint64(buf[indirectOffCurrent:])
	for i := range b.Direct {
		b.Direct[i] = binary.LittleEndian.Uint64(buf[indirectOffDirect+i*8:])
	}
	b.NextIndirect = binary.LittleEndian.Uint64(buf[indirectOffNext:])
	return b
}
