//go:build unix

package header

import "golang.org/x/sys/unix"

const (
	afInet  uint32 = unix.AF_INET
	afInet6 uint32 = unix.AF_INET6
)
