package adapter

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrDecode is returned when inbound content is missing or cannot be
	// turned back into a packet.
	ErrDecode = errors.New("undecodable inbound content")
	// ErrPacketTooLarge is returned by the sequenced adapter before any
	// network call when a packet does not fit the channel slots.
	ErrPacketTooLarge = errors.New("packet too large for channel slots")
	// ErrPayloadTooLarge is returned by the event stream adapter before any
	// network call when the encoded packet exceeds the message size limit.
	ErrPayloadTooLarge = errors.New("encoded payload exceeds message size limit")
	// ErrSubscriptionClosed is returned once the platform subscription has
	// ended and all queued messages have been read.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// PacketAdapter moves whole packets over a messaging platform. An adapter
// supports one ReadPacket and one WritePacket in flight at the same time.
type PacketAdapter interface {
	// ReadPacket blocks until the next inbound packet is available.
	ReadPacket(ctx context.Context) ([]byte, error)
	// WritePacket returns once the platform accepted the packet.
	WritePacket(ctx context.Context, packet []byte) error
	Close() error
}

// Session identifies one tunnel run against the platform.
type Session struct {
	ID         uuid.UUID
	ReadGroup  string
	WriteGroup string
}

func NewSession(readGroup, writeGroup string) Session {
	return Session{
		ID:         uuid.New(),
		ReadGroup:  readGroup,
		WriteGroup: writeGroup,
	}
}

func (s Session) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"session": s.ID.String(),
		"read":    s.ReadGroup,
		"write":   s.WriteGroup,
	})
}

// Slot names a slowly changing text field of a chat.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecondary
)

func (s Slot) String() string {
	switch s {
	case SlotPrimary:
		return "primary"
	case SlotSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// SlotStore reads and writes slots of a group. GetSlot returns an empty
// string for a slot that is not set.
type SlotStore interface {
	GetSlot(ctx context.Context, group string, slot Slot) (string, error)
	SetSlot(ctx context.Context, group string, slot Slot, value string) error
}

// Message is a chat message pushed by the platform.
type Message struct {
	Author  string
	Content string
}

// MessagePlatform pushes messages of a single channel and publishes new
// ones to it.
type MessagePlatform interface {
	// Identity is the author id used for messages this process publishes.
	Identity() string
	// Subscribe calls deliver for every message in arrival order until ctx
	// is done or the subscription fails.
	Subscribe(ctx context.Context, deliver func(Message)) error
	Publish(ctx context.Context, content string) error
	// MaxMessageLen is the longest message in characters.
	MaxMessageLen() int
}
