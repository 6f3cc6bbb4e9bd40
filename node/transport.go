package node

import (
	"context"
	"fmt"

	"github.com/caldog20/chattun/adapter"
	"github.com/caldog20/chattun/pkg/codec"
	"github.com/caldog20/chattun/platform/discord"
	"github.com/caldog20/chattun/platform/telegram"
)

// newAdapter connects to the configured platform. The config must be
// validated.
func newAdapter(ctx context.Context, cfg *Config) (adapter.PacketAdapter, error) {
	cdc, err := codec.Lookup(cfg.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Transport {
	case TransportDiscord:
		platform, err := discord.New(cfg.Discord.Token, cfg.Discord.Channel)
		if err != nil {
			return nil, err
		}
		policy, err := adapter.ParseQueuePolicy(cfg.Queue.Policy)
		if err != nil {
			return nil, err
		}

		session := adapter.NewSession(cfg.Discord.Channel, cfg.Discord.Channel)
		return adapter.NewEventStreamAdapter(ctx, platform, session, adapter.EventStreamOptions{
			Codec:     cdc,
			QueueSize: cfg.Queue.Size,
			Policy:    policy,
		}), nil

	case TransportTelegram:
		store, err := telegram.New(cfg.Telegram.Token)
		if err != nil {
			return nil, err
		}
		interval, err := cfg.PollInterval()
		if err != nil {
			return nil, err
		}

		session := adapter.NewSession(cfg.Telegram.ReadGroup, cfg.Telegram.WriteGroup)
		return adapter.NewSequencedAdapter(store, session, adapter.SequencedOptions{
			Codec:        cdc,
			Limits:       cfg.SlotLimits(),
			PollInterval: interval,
			Nudge:        cfg.Telegram.Nudge,
		}), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
