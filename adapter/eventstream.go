package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/caldog20/chattun/pkg/codec"
)

const DefaultQueueSize = 512

// QueuePolicy decides what happens to an inbound message when the queue
// is full.
type QueuePolicy int

const (
	// QueueBlock holds the platform's delivery until the pump catches up.
	QueueBlock QueuePolicy = iota
	// QueueDrop discards the message.
	QueueDrop
)

func ParseQueuePolicy(s string) (QueuePolicy, error) {
	switch s {
	case "", "block":
		return QueueBlock, nil
	case "drop":
		return QueueDrop, nil
	default:
		return 0, fmt.Errorf("unknown queue policy %q", s)
	}
}

func (p QueuePolicy) String() string {
	if p == QueueDrop {
		return "drop"
	}
	return "block"
}

type EventStreamOptions struct {
	Codec     codec.Codec
	QueueSize int
	Policy    QueuePolicy
}

// EventStreamAdapter carries one packet per chat message. Ordering comes
// from the platform's delivery order.
type EventStreamAdapter struct {
	platform MessagePlatform
	codec    codec.Codec
	policy   QueuePolicy
	logger   *log.Entry

	inbound chan Message
	dropped atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
	// err is set before done is closed.
	err error

	closeOnce sync.Once
}

// NewEventStreamAdapter starts the platform subscription. It runs until
// Close is called or ctx is done.
func NewEventStreamAdapter(ctx context.Context, platform MessagePlatform, session Session, opts EventStreamOptions) *EventStreamAdapter {
	if opts.Codec == nil {
		opts.Codec = codec.Base116
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	a := &EventStreamAdapter{
		platform: platform,
		codec:    opts.Codec,
		policy:   opts.Policy,
		logger:   session.logger().WithField("adapter", "eventstream"),
		inbound:  make(chan Message, opts.QueueSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go a.subscribe(subCtx)
	return a
}

func (a *EventStreamAdapter) subscribe(ctx context.Context) {
	defer close(a.done)

	err := a.platform.Subscribe(ctx, func(m Message) {
		a.enqueue(ctx, m)
	})
	if err != nil && ctx.Err() == nil {
		a.logger.Errorf("subscription failed: %v", err)
		a.err = fmt.Errorf("subscription: %w", err)
		return
	}
	a.err = ErrSubscriptionClosed
}

func (a *EventStreamAdapter) enqueue(ctx context.Context, m Message) {
	if m.Author == a.platform.Identity() {
		return
	}

	if a.policy == QueueDrop {
		select {
		case a.inbound <- m:
		default:
			n := a.dropped.Add(1)
			a.logger.Warnf("inbound queue full, dropped message (%d total)", n)
		}
		return
	}

	select {
	case a.inbound <- m:
	case <-ctx.Done():
	}
}

// Dropped returns the number of messages discarded because the queue was
// full.
func (a *EventStreamAdapter) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *EventStreamAdapter) ReadPacket(ctx context.Context) ([]byte, error) {
	var m Message

	select {
	case m = <-a.inbound:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		// Messages queued before the subscription ended are still delivered.
		select {
		case m = <-a.inbound:
		default:
			return nil, a.err
		}
	}

	packet, err := a.codec.Decode(m.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: message from %s: %w", ErrDecode, m.Author, err)
	}
	if len(packet) == 0 {
		return nil, fmt.Errorf("%w: empty message from %s", ErrDecode, m.Author)
	}

	return packet, nil
}

func (a *EventStreamAdapter) WritePacket(ctx context.Context, packet []byte) error {
	text := a.codec.Encode(packet)

	if n, limit := utf8.RuneCountInString(text), a.platform.MaxMessageLen(); n > limit {
		return fmt.Errorf("%w: %d bytes encode to %d characters, limit %d", ErrPayloadTooLarge, len(packet), n, limit)
	}

	if err := a.platform.Publish(ctx, text); err != nil {
		return fmt.Errorf("publishing message: %w", err)
	}
	return nil
}

// Close aborts the subscription and waits for it to return.
func (a *EventStreamAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.cancel()
		<-a.done
	})
	return nil
}
