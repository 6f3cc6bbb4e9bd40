package node

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/caldog20/chattun/pkg/header"
)

const (
	// BufferSize bounds a device read, including an address family prefix.
	BufferSize = 2500
	MaxMTU     = BufferSize - header.FamilyLen
)

type PacketBuffer struct {
	data   []byte // Raw data read from the tun device
	packet []byte // Network layer packet inside data
}

var (
	PacketBuffers = sync.Pool{New: NewPacketBuffer}
	PBuffersInUse atomic.Int64
)

func NewPacketBuffer() interface{} {
	buffer := new(PacketBuffer)
	buffer.data = make([]byte, BufferSize)
	buffer.packet = nil
	return buffer
}

func GetPacketBuffer() *PacketBuffer {
	PBuffersInUse.Add(1)
	return PacketBuffers.Get().(*PacketBuffer)
}

func PutPacketBuffer(buffer *PacketBuffer) {
	buffer.packet = nil

	PacketBuffers.Put(buffer)
	PBuffersInUse.Add(-1)
}

// ReportBuffers logs the number of buffers in flight until ctx is done.
func ReportBuffers(ctx context.Context, logger *log.Entry, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			logger.Debugf("packet buffers in use: %d", PBuffersInUse.Load())
		}
	}
}
