package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/caldog20/chattun/adapter"
	"github.com/caldog20/chattun/node/tun"
)

// Node is one tunnel session: a device, an adapter and the pump between
// them.
type Node struct {
	cfg    *Config
	logger *log.Entry

	// Replaced in tests.
	newTun     func(cfg *Config) (tun.Tun, error)
	newAdapter func(ctx context.Context, cfg *Config) (adapter.PacketAdapter, error)

	running   atomic.Bool
	runCancel context.CancelFunc
	done      chan struct{}

	errLock sync.Mutex
	err     error
}

func NewNode(cfg *Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Node{
		cfg:        cfg,
		logger:     log.WithField("transport", cfg.Transport),
		newTun:     openTun,
		newAdapter: newAdapter,
	}, nil
}

func openTun(cfg *Config) (tun.Tun, error) {
	if cfg.Device != "" {
		return tun.OpenFile(cfg.Device, cfg.MTU)
	}
	return tun.NewTun(cfg.MTU)
}

// Start brings up the device and the adapter and starts the pump. It
// returns once the tunnel is running.
func (n *Node) Start(ctx context.Context) error {
	if n.running.Load() {
		return errors.New("node is already running")
	}

	framing, err := ParseFraming(n.cfg.Framing)
	if err != nil {
		return err
	}

	dev, err := n.newTun(n.cfg)
	if err != nil {
		return fmt.Errorf("error creating tun device: %w", err)
	}

	// An existing device is configured by its owner.
	if n.cfg.Device == "" {
		prefix, err := n.cfg.Prefix()
		if err != nil {
			dev.Close()
			return err
		}
		dest, err := n.cfg.DestinationAddr()
		if err != nil {
			dev.Close()
			return err
		}
		if err := dev.ConfigureIPAddress(prefix, dest); err != nil {
			dev.Close()
			return fmt.Errorf("error configuring %s: %w", dev.Name(), err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)

	a, err := n.newAdapter(runCtx, n.cfg)
	if err != nil {
		cancel()
		dev.Close()
		return fmt.Errorf("error creating adapter: %w", err)
	}

	logger := n.logger.WithField("device", dev.Name())
	logger.Infof("tunnel up with mtu %d, codec %s, framing %s", n.cfg.MTU, n.cfg.Codec, framing)

	if n.cfg.Debug {
		go ReportBuffers(runCtx, logger, 10*time.Second)
	}

	n.runCancel = cancel
	n.done = make(chan struct{})
	n.setErr(nil)
	n.running.Store(true)

	pump := NewPump(dev, a, framing, logger)
	go func() {
		defer close(n.done)
		defer n.running.Store(false)
		defer cancel()

		err := pump.Run(runCtx)
		if err != nil {
			logger.Errorf("tunnel stopped: %v", err)
		} else {
			logger.Info("tunnel stopped")
		}
		n.setErr(err)
	}()

	return nil
}

// Stop tears the tunnel down and waits for the pump to exit.
func (n *Node) Stop() error {
	if !n.running.Load() {
		return errors.New("node is already stopped")
	}

	n.runCancel()
	return n.Wait()
}

// Wait blocks until the pump exits and returns its error.
func (n *Node) Wait() error {
	if n.done == nil {
		return errors.New("node was never started")
	}
	<-n.done
	return n.getErr()
}

func (n *Node) Running() bool {
	return n.running.Load()
}

func (n *Node) setErr(err error) {
	n.errLock.Lock()
	n.err = err
	n.errLock.Unlock()
}

func (n *Node) getErr() error {
	n.errLock.Lock()
	defer n.errLock.Unlock()
	return n.err
}
