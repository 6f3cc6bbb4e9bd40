//go:build darwin || linux || freebsd || netbsd

package tun

import (
	"net/netip"
	"os"
	"path/filepath"
)

// FileTun is a tun character device that was created outside of this
// process, e.g. /dev/tun0 on FreeBSD. Depending on the driver settings
// every packet may carry a 4 byte address family prefix.
type FileTun struct {
	f   *os.File
	mtu int
}

func OpenFile(path string, mtu int) (Tun, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	if mtu <= 0 {
		mtu = MTU
	}

	return &FileTun{f: f, mtu: mtu}, nil
}

func (t *FileTun) Read(b []byte) (int, error) {
	return t.f.Read(b)
}

func (t *FileTun) Write(b []byte) (int, error) {
	return t.f.Write(b)
}

func (t *FileTun) Name() string {
	return filepath.Base(t.f.Name())
}

func (t *FileTun) Close() error {
	return t.f.Close()
}

func (t *FileTun) MTU() (int, error) {
	return t.mtu, nil
}

func (t *FileTun) ConfigureIPAddress(addr netip.Prefix, dest netip.Addr) error {
	return configure(t.Name(), t.mtu, addr, dest)
}
