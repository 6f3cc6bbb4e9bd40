package node

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldog20/chattun/adapter"
	"github.com/caldog20/chattun/node/tun"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Transport = TransportTelegram
	cfg.Address = "10.0.0.1"
	cfg.Destination = "10.0.0.2"
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.ReadGroup = "-100"
	cfg.Telegram.WriteGroup = "-200"
	return cfg
}

func newTestNode(t *testing.T, cfg *Config) (*Node, *fakeTun, *fakeAdapter) {
	t.Helper()
	n, err := NewNode(cfg)
	require.NoError(t, err)

	dev, a := newFakeTun(), newFakeAdapter()
	n.newTun = func(*Config) (tun.Tun, error) { return dev, nil }
	n.newAdapter = func(context.Context, *Config) (adapter.PacketAdapter, error) { return a, nil }
	return n, dev, a
}

func TestNodeStartStop(t *testing.T) {
	n, dev, a := newTestNode(t, testConfig())

	require.NoError(t, n.Start(context.Background()))
	assert.True(t, n.Running())
	assert.Error(t, n.Start(context.Background()), "second start")

	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.1/24")}, dev.configured)

	dev.reads <- ipv4Packet
	assert.Eventually(t, func() bool { return len(a.written()) == 1 }, time.Second, 5*time.Millisecond)

	assert.NoError(t, n.Stop())
	assert.False(t, n.Running())
	assert.True(t, isClosed(dev.closed))
	assert.True(t, isClosed(a.closed))

	assert.Error(t, n.Stop(), "already stopped")
}

func TestNodeExistingDeviceIsNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Device = "/dev/tun0"
	cfg.Framing = "af"
	n, dev, _ := newTestNode(t, cfg)

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	assert.Empty(t, dev.configured)
}

func TestNodeWaitReturnsPumpError(t *testing.T) {
	n, _, a := newTestNode(t, testConfig())

	require.NoError(t, n.Start(context.Background()))
	a.readErr <- adapter.ErrDecode

	assert.ErrorIs(t, n.Wait(), adapter.ErrDecode)
	assert.False(t, n.Running())
}

func TestNodeParentContextStopsTunnel(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, n.Start(ctx))
	cancel()

	assert.NoError(t, n.Wait())
}

func TestNodeStartFailures(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig())
	n.newTun = func(*Config) (tun.Tun, error) { return nil, errors.New("permission denied") }

	err := n.Start(context.Background())
	assert.ErrorContains(t, err, "error creating tun device")
	assert.False(t, n.Running())

	n, dev, _ := newTestNode(t, testConfig())
	n.newAdapter = func(context.Context, *Config) (adapter.PacketAdapter, error) {
		return nil, errors.New("unauthorized")
	}

	err = n.Start(context.Background())
	assert.ErrorContains(t, err, "error creating adapter")
	assert.True(t, isClosed(dev.closed), "device is released")

	assert.Error(t, n.Wait(), "never started")
}

func TestNodeStartAddressErrors(t *testing.T) {
	cfg := testConfig()
	n, dev, _ := newTestNode(t, cfg)
	cfg.Address = "10.0.0"

	assert.ErrorContains(t, n.Start(context.Background()), "error parsing address")
	assert.True(t, isClosed(dev.closed), "device is released")
	assert.Empty(t, dev.configured)
	assert.False(t, n.Running())

	cfg = testConfig()
	n, dev, _ = newTestNode(t, cfg)
	cfg.Destination = "not an address"

	assert.ErrorContains(t, n.Start(context.Background()), "error parsing destination address")
	assert.True(t, isClosed(dev.closed), "device is released")
	assert.Empty(t, dev.configured)
}

func TestNewNodeValidates(t *testing.T) {
	cfg := testConfig()
	cfg.Telegram.Token = ""

	_, err := NewNode(cfg)
	assert.ErrorContains(t, err, "invalid config")
}
