//go:build !(darwin || linux || freebsd || netbsd)

package tun

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("tun devices are not supported on " + runtime.GOOS)

func NewTun(mtu int) (Tun, error) {
	return nil, errUnsupported
}

func OpenFile(path string, mtu int) (Tun, error) {
	return nil, errUnsupported
}
