//go:build darwin || linux || freebsd || netbsd

package tun

import (
	"fmt"
	"net"
	"net/netip"
	"os/exec"
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/songgao/water"
	"go4.org/netipx"
)

// Currently, this is used for Mac/Linux Tunnels. Packets are read and
// written without any address family prefix: on Linux the device is opened
// without packet information and on macOS water strips the utun header.
type NixTun struct {
	ifce *water.Interface
	mtu  int
}

func NewTun(mtu int) (Tun, error) {
	ifce, err := water.New(water.Config{DeviceType: water.TUN})
	if err != nil {
		return nil, err
	}

	if mtu <= 0 {
		mtu = MTU
	}

	return &NixTun{ifce: ifce, mtu: mtu}, nil
}

func (n *NixTun) Read(b []byte) (int, error) {
	return n.ifce.Read(b)
}

func (n *NixTun) Write(b []byte) (int, error) {
	return n.ifce.Write(b)
}

func (n *NixTun) Name() string {
	return n.ifce.Name()
}

func (n *NixTun) Close() error {
	return n.ifce.Close()
}

func (n *NixTun) MTU() (int, error) {
	return n.mtu, nil
}

func (n *NixTun) ConfigureIPAddress(addr netip.Prefix, dest netip.Addr) error {
	return configure(n.Name(), n.mtu, addr, dest)
}

func configure(name string, mtu int, addr netip.Prefix, dest netip.Addr) error {
	ipnet := netipx.PrefixIPNet(addr.Masked())
	netmask := net.IP(ipnet.Mask).String()
	m := strconv.Itoa(mtu)

	switch runtime.GOOS {
	case "linux":
		if err := run("/sbin/ip", "link", "set", "dev", name, "mtu", m); err != nil {
			return fmt.Errorf("ip link error: %w", err)
		}
		if err := run("/sbin/ip", "addr", "add", addr.String(), "dev", name); err != nil {
			return fmt.Errorf("ip addr error: %w", err)
		}
		if err := run("/sbin/ip", "link", "set", "dev", name, "up"); err != nil {
			return fmt.Errorf("ip link error: %w", err)
		}
		if !addr.Masked().Contains(dest) {
			if err := run("/sbin/ip", "route", "add", dest.String(), "dev", name); err != nil {
				return fmt.Errorf("route add error: %w", err)
			}
		}
	case "darwin", "freebsd", "netbsd":
		if err := run("/sbin/ifconfig", name, "inet", addr.Addr().String(), dest.String(),
			"netmask", netmask, "mtu", m, "up"); err != nil {
			return fmt.Errorf("ifconfig error %v: %w", name, err)
		}
		if err := run("/sbin/route", "-n", "add", "-net", addr.Masked().String(), dest.String()); err != nil {
			return fmt.Errorf("route add error: %w", err)
		}
	default:
		return fmt.Errorf("no tun support for: %v", runtime.GOOS)
	}

	log.Printf("set tunnel IP successful: %v %v peer %v netmask %v", name, addr.Addr(), dest, netmask)
	return nil
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
