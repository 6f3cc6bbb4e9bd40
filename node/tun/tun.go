package tun

import (
	"net/netip"
)

const MTU = 1300

type Tun interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)

	Name() string
	Close() error
	MTU() (int, error)

	// ConfigureIPAddress assigns addr to the interface as a point to point
	// link towards dest and brings it up.
	ConfigureIPAddress(addr netip.Prefix, dest netip.Addr) error
}
