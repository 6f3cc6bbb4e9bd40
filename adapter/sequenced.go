package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/caldog20/chattun/pkg/codec"
	"github.com/caldog20/chattun/pkg/header"
)

const (
	DefaultPollInterval   = time.Second
	DefaultPrimaryLimit   = 204
	DefaultSecondaryLimit = 204
)

// SlotLimits are slot capacities in bytes before encoding. A negative
// Secondary disables spilling.
type SlotLimits struct {
	Primary   int
	Secondary int
}

// MaxFrame is the largest frame (packet plus sequence trailer) the slots
// can carry.
func (l SlotLimits) MaxFrame() int {
	return l.Primary + max(l.Secondary, 0)
}

// MaxPacket is the largest packet WritePacket accepts.
func (l SlotLimits) MaxPacket() int {
	return l.MaxFrame() - header.SeqLen
}

type SequencedOptions struct {
	Codec        codec.Codec
	Limits       SlotLimits
	PollInterval time.Duration
	// Nudge publishes the local read sequence into the secondary slot of
	// the read group before every poll. It overwrites the peer's spilled
	// data, so only enable it when packets never exceed the primary slot.
	Nudge bool
}

func (o *SequencedOptions) setDefaults() {
	if o.Codec == nil {
		o.Codec = codec.Base85
	}
	if o.Limits.Primary <= 0 {
		o.Limits.Primary = DefaultPrimaryLimit
	}
	if o.Limits.Secondary < 0 {
		o.Limits.Secondary = 0
	} else if o.Limits.Secondary == 0 {
		o.Limits.Secondary = DefaultSecondaryLimit
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
}

// SequencedAdapter carries packets in the title-like slots of a chat that
// can only be polled. Each frame ends with a sequence number so the reader
// can tell a new frame from one it already delivered.
type SequencedAdapter struct {
	store   SlotStore
	session Session
	opts    SequencedOptions
	logger  *log.Entry

	// Touched only by the reading caller. started is false until the first
	// frame was delivered, so sequence 0 is accepted once.
	readSeq uint32
	started bool
	// Touched only by the writing caller.
	writeSeq uint32

	// sleep waits between polls. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSequencedAdapter(store SlotStore, session Session, opts SequencedOptions) *SequencedAdapter {
	opts.setDefaults()

	return &SequencedAdapter{
		store:   store,
		session: session,
		opts:    opts,
		logger:  session.logger().WithField("adapter", "sequenced"),
		sleep:   sleepContext,
	}
}

func (a *SequencedAdapter) ReadSequence() uint32 {
	return a.readSeq
}

func (a *SequencedAdapter) WriteSequence() uint32 {
	return a.writeSeq
}

func (a *SequencedAdapter) ReadPacket(ctx context.Context) ([]byte, error) {
	for {
		if a.opts.Nudge {
			a.nudge(ctx)
		}

		frame, err := a.fetchFrame(ctx)
		if err != nil {
			return nil, err
		}

		payload, remote, err := header.SplitSequence(frame)
		if err != nil || len(payload) == 0 {
			return nil, fmt.Errorf("%w: frame of %d bytes", ErrDecode, len(frame))
		}

		if a.started && remote <= a.readSeq {
			if err := a.sleep(ctx, a.opts.PollInterval); err != nil {
				return nil, err
			}
			continue
		}

		a.logger.Debugf("read sequence %d -> %d (%d bytes)", a.readSeq, remote, len(payload))
		a.readSeq = remote
		a.started = true
		return payload, nil
	}
}

func (a *SequencedAdapter) nudge(ctx context.Context) {
	seq := strconv.FormatUint(uint64(a.readSeq), 10)
	if err := a.store.SetSlot(ctx, a.session.ReadGroup, SlotSecondary, seq); err != nil {
		a.logger.Debugf("nudge failed: %v", err)
	}
}

func (a *SequencedAdapter) fetchFrame(ctx context.Context) ([]byte, error) {
	primary, err := a.readSlot(ctx, SlotPrimary)
	if err != nil {
		return nil, err
	}
	if len(primary) != a.opts.Limits.Primary || a.opts.Limits.Secondary == 0 {
		return primary, nil
	}

	// A full primary slot is the head of a spilled frame or a complete
	// frame next to a stale secondary slot.
	secondary, err := a.readSlot(ctx, SlotSecondary)
	if err != nil {
		a.logger.Debugf("secondary slot ignored: %v", err)
		return primary, nil
	}

	joined := append(primary[:len(primary):len(primary)], secondary...)
	if a.started && a.isNew(primary) && !a.isNew(joined) {
		a.logger.Debugf("stale secondary slot ignored (%d bytes)", len(secondary))
		return primary, nil
	}
	return joined, nil
}

// isNew reports whether frame carries a payload and a sequence past the
// last delivered one.
func (a *SequencedAdapter) isNew(frame []byte) bool {
	payload, remote, err := header.SplitSequence(frame)
	return err == nil && len(payload) > 0 && remote > a.readSeq
}

func (a *SequencedAdapter) readSlot(ctx context.Context, slot Slot) ([]byte, error) {
	text, err := a.store.GetSlot(ctx, a.session.ReadGroup, slot)
	if err != nil {
		return nil, fmt.Errorf("reading %s slot: %w", slot, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: %s slot is empty", ErrDecode, slot)
	}

	b, err := a.opts.Codec.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s slot: %w", ErrDecode, slot, err)
	}
	return b, nil
}

func (a *SequencedAdapter) WritePacket(ctx context.Context, packet []byte) error {
	limits := a.opts.Limits
	if len(packet)+header.SeqLen > limits.MaxFrame() {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPacketTooLarge, len(packet), limits.MaxPacket())
	}

	frame := make([]byte, 0, len(packet)+header.SeqLen)
	frame = append(frame, packet...)
	frame = header.AppendSequence(frame, a.writeSeq)
	a.writeSeq++

	// The overflow goes first so the primary never points at a missing tail.
	if len(frame) > limits.Primary {
		if err := a.writeSlot(ctx, SlotSecondary, frame[limits.Primary:]); err != nil {
			return err
		}
		frame = frame[:limits.Primary]
	}

	return a.writeSlot(ctx, SlotPrimary, frame)
}

func (a *SequencedAdapter) writeSlot(ctx context.Context, slot Slot, b []byte) error {
	if err := a.store.SetSlot(ctx, a.session.WriteGroup, slot, a.opts.Codec.Encode(b)); err != nil {
		return fmt.Errorf("writing %s slot: %w", slot, err)
	}
	return nil
}

// Close is a no-op; the slots outlive the session.
func (a *SequencedAdapter) Close() error {
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
