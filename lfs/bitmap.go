package lfs

// Bitmap is a round-robin allocator over a fixed number of slots. It
// scans forward from its cursor, wraps once, and fails on a full
// traversal without finding a free slot (spec.md §4.5).
type Bitmap struct {
	bits   []bool
	cursor uint32
}

// NewBitmap creates a bitmap with n slots, all free.
func NewBitmap(n uint32) *Bitmap {
	return &Bitmap{bits: make([]bool, n)}
}

// Len returns the number of slots.
func (b *Bitmap) Len() uint32 { return uint32(len(b.bits)) }

// Set marks slot i used without consulting or moving the cursor — used
// when restoring a bitmap read back from the superblock.
func (b *Bitmap) Set(i uint32) { b.bits[i] = true }

// IsSet reports whether slot i is used.
func (b *Bitmap) IsSet(i uint32) bool { return b.bits[i] }

// Clear frees slot i.
func (b *Bitmap) Clear(i uint32) { b.bits[i] = false }

// Cursor returns the allocator's current scan position. The superblock
// persists this (spec.md §3's InodePtr/DataBlockPtr) so Alloc resumes
// its round-robin scan after a remount instead of restarting at 0.
func (b *Bitmap) Cursor() uint32 { return b.cursor }

// SetCursor restores the allocator's scan position from a persisted
// superblock value. Out-of-range values (a corrupt or stale superblock
// field) are ignored and the cursor keeps its current value.
func (b *Bitmap) SetCursor(c uint32) {
	if c < uint32(len(b.bits)) {
		b.cursor = c
	}
}

// Alloc scans forward from the cursor for a free slot, sets it, advances
// the cursor past it, and returns its index. It wraps exactly once; if
// every slot is seen without finding one free, it returns ok=false and
// the caller maps that to ErrInodeExhausted or ErrBlockExhausted.
func (b *Bitmap) Alloc() (uint32, bool) {
	n := uint32(len(b.bits))
	start := b.cursor
	for i := uint32(0); i < n; i++ {
		idx := (start + i) % n
		if !b.bits[idx] {
			b.bits[idx] = true
			b.cursor = (idx + 1) % n
			return idx, true
		}
	}
	return 0, false
}

// Bytes packs the bitmap into a byte slice, one bit per slot, for
// on-device storage.
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, (len(b.bits)+7)/8)
	for i, set := range b.bits {
		if set {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// LoadBytes restores bitmap state from packed bytes written by Bytes.
func (b *Bitmap) LoadBytes(data []byte) {
	for i := range b.bits {
		b.bits[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
}
