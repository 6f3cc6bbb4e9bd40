//go:build !unix

package header

const (
	afInet  uint32 = 2
	afInet6 uint32 = 23
)
