package node

import (
	"context"
	"fmt"

	"github.com/caldog20/chattun/pkg/header"
)

// ReadTunPackets reads packets from the device and hands them to out until
// ctx is done or the device fails. The receiver owns the buffer.
func (p *Pump) ReadTunPackets(ctx context.Context, out chan<- *PacketBuffer) error {
	for {
		buffer := GetPacketBuffer()
		n, err := p.dev.Read(buffer.data)
		if err != nil {
			PutPacketBuffer(buffer)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error reading from device: %w", err)
		}

		buffer.packet = buffer.data[:n]
		if p.framing == FramingAddressFamily {
			buffer.packet, err = header.StripFamily(buffer.packet)
			if err != nil {
				p.logger.Debugf("[outbound] dropping %d byte device read: %v", n, err)
				PutPacketBuffer(buffer)
				continue
			}
		}

		if len(buffer.packet) == 0 {
			PutPacketBuffer(buffer)
			continue
		}

		select {
		case out <- buffer:
		case <-ctx.Done():
			PutPacketBuffer(buffer)
			return nil
		}
	}
}
