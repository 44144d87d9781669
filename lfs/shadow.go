package lfs

import "os"

// writeShadowFile persists a shadow checkpoint blob to path on the host
// filesystem. It is deliberately a plain host file rather than
// device-addressed storage: the checkpoint exists purely for offline
// inspection after an unmount and must never be mistaken for part of
// the mounted device's address space.
func writeShadowFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
