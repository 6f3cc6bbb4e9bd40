package node

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sync/errgroup"

	"github.com/caldog20/chattun/adapter"
	"github.com/caldog20/chattun/node/tun"
	"github.com/caldog20/chattun/pkg/header"
)

// Framing describes what the device puts around each packet.
type Framing int

const (
	FramingNone Framing = iota
	// FramingAddressFamily is a 4 byte address family prefix on every read
	// and write.
	FramingAddressFamily
)

func ParseFraming(s string) (Framing, error) {
	switch s {
	case "", "none":
		return FramingNone, nil
	case "af":
		return FramingAddressFamily, nil
	default:
		return 0, fmt.Errorf("unknown framing %q", s)
	}
}

func (f Framing) String() string {
	if f == FramingAddressFamily {
		return "af"
	}
	return "none"
}

// Pump copies packets between a tun device and a packet adapter. It owns
// both and closes them when Run returns.
type Pump struct {
	dev     tun.Tun
	adapter adapter.PacketAdapter
	framing Framing
	logger  *log.Entry

	// framed is reused for device writes, only touched by the run loop.
	framed []byte
}

func NewPump(dev tun.Tun, a adapter.PacketAdapter, framing Framing, logger *log.Entry) *Pump {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Pump{
		dev:     dev,
		adapter: a,
		framing: framing,
		logger:  logger,
		framed:  make([]byte, BufferSize),
	}
}

// Run blocks until ctx is done or either side fails. Adapter failures and
// device read failures end the run; device write failures are logged.
func (p *Pump) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	fromDevice := make(chan *PacketBuffer)
	fromAdapter := make(chan []byte)

	eg.Go(func() error {
		return p.ReadTunPackets(egCtx, fromDevice)
	})
	eg.Go(func() error {
		return p.readAdapter(egCtx, fromAdapter)
	})
	eg.Go(func() error {
		return p.loop(egCtx, fromDevice, fromAdapter)
	})
	// Closing both ends unblocks the readers.
	eg.Go(func() error {
		<-egCtx.Done()
		if err := p.adapter.Close(); err != nil {
			p.logger.Warnf("error closing adapter: %v", err)
		}
		if err := p.dev.Close(); err != nil {
			p.logger.Warnf("error closing device: %v", err)
		}
		return nil
	})

	return eg.Wait()
}

func (p *Pump) readAdapter(ctx context.Context, out chan<- []byte) error {
	for {
		packet, err := p.adapter.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error reading from adapter: %w", err)
		}

		select {
		case out <- packet:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Pump) loop(ctx context.Context, fromDevice <-chan *PacketBuffer, fromAdapter <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case packet := <-fromAdapter:
			p.writeDevice(packet)
		case buffer := <-fromDevice:
			err := p.writeAdapter(ctx, buffer.packet)
			PutPacketBuffer(buffer)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (p *Pump) writeAdapter(ctx context.Context, packet []byte) error {
	if p.logger.Logger.IsLevelEnabled(log.DebugLevel) {
		p.logger.Debugf("[outbound] %s", describePacket(packet))
	}

	if err := p.adapter.WritePacket(ctx, packet); err != nil {
		return fmt.Errorf("error writing to adapter: %w", err)
	}
	return nil
}

func (p *Pump) writeDevice(packet []byte) {
	if p.logger.Logger.IsLevelEnabled(log.DebugLevel) {
		p.logger.Debugf("[inbound] %s", describePacket(packet))
	}

	out := packet
	if p.framing == FramingAddressFamily {
		var err error
		out, err = header.AddFamily(p.framed, packet)
		if err != nil {
			p.logger.Warnf("[inbound] dropping packet: %v", err)
			return
		}
	}

	if _, err := p.dev.Write(out); err != nil {
		p.logger.Warnf("error writing to device: %v", err)
	}
}

func describePacket(b []byte) string {
	if len(b) == 0 {
		return "empty packet"
	}

	switch b[0] >> 4 {
	case 4:
		h, err := ipv4.ParseHeader(b)
		if err != nil {
			return fmt.Sprintf("malformed ipv4 packet (%d bytes): %v", len(b), err)
		}
		return fmt.Sprintf("ipv4 %s -> %s proto %d len %d", h.Src, h.Dst, h.Protocol, len(b))
	case 6:
		h, err := ipv6.ParseHeader(b)
		if err != nil {
			return fmt.Sprintf("malformed ipv6 packet (%d bytes): %v", len(b), err)
		}
		return fmt.Sprintf("ipv6 %s -> %s next %d len %d", h.Src, h.Dst, h.NextHeader, len(b))
	default:
		return fmt.Sprintf("non-ip packet (%d bytes)", len(b))
	}
}
