package lfs

import "errors"

// Sentinel errors, compared with errors.Is by callers — the LFS layer's
// own taste in error handling (spec.md §7), distinct from the
// juju/errors and pkg/errors wrapping used in the mapper and device
// layers.
var (
	ErrNotFound       = errors.New("lfs: path not found")
	ErrExists         = errors.New("lfs: entry already exists")
	ErrNotDir         = errors.New("lfs: not a directory")
	ErrIsDir          = errors.New("lfs: is a directory")
	ErrNameTooLong    = errors.New("lfs: entity name too long")
	ErrInodeExhausted = errors.New("lfs: no free inode")
	ErrBlockExhausted = errors.New("lfs: no free data block")
	ErrNotMounted     = errors.New("lfs: filesystem not mounted")
	ErrFileTooLarge   = errors.New("lfs: file exceeds addressable range")
)
