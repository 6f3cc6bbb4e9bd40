package node

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go4.org/netipx"
	"gopkg.in/yaml.v3"

	"github.com/caldog20/chattun/adapter"
	"github.com/caldog20/chattun/pkg/codec"
	"github.com/caldog20/chattun/pkg/header"
	"github.com/caldog20/chattun/platform/discord"
	"github.com/caldog20/chattun/platform/telegram"
)

const (
	TransportDiscord  = "discord"
	TransportTelegram = "telegram"

	DefaultPrefixLen = 24
	DefaultMTU       = 1300
)

type Config struct {
	Transport   string `yaml:"transport" toml:"transport"`
	Address     string `yaml:"address" toml:"address"`
	Destination string `yaml:"destination" toml:"destination"`
	PrefixLen   int    `yaml:"prefix_len" toml:"prefix_len"`
	MTU         int    `yaml:"mtu" toml:"mtu"`
	// Device is the path of an existing tun device. A new one is created
	// and configured when empty.
	Device  string `yaml:"device" toml:"device"`
	Framing string `yaml:"framing" toml:"framing"`
	Codec   string `yaml:"codec" toml:"codec"`
	Debug   bool   `yaml:"debug" toml:"debug"`

	Discord  DiscordConfig  `yaml:"discord" toml:"discord"`
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
	Queue    QueueConfig    `yaml:"queue" toml:"queue"`
}

type DiscordConfig struct {
	Token   string `yaml:"token" toml:"token"`
	Channel string `yaml:"channel" toml:"channel"`
}

type TelegramConfig struct {
	Token        string `yaml:"token" toml:"token"`
	ReadGroup    string `yaml:"read_group" toml:"read_group"`
	WriteGroup   string `yaml:"write_group" toml:"write_group"`
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
	Nudge        bool   `yaml:"nudge" toml:"nudge"`
	// Slot capacities in bytes. Zero fills the title and description
	// limits with the configured codec, a negative secondary limit leaves
	// the description alone.
	PrimaryLimit   int `yaml:"primary_limit" toml:"primary_limit"`
	SecondaryLimit int `yaml:"secondary_limit" toml:"secondary_limit"`
}

type QueueConfig struct {
	Size   int    `yaml:"size" toml:"size"`
	Policy string `yaml:"policy" toml:"policy"`
}

func DefaultConfig() *Config {
	return &Config{
		PrefixLen: DefaultPrefixLen,
		Telegram: TelegramConfig{
			PollInterval: adapter.DefaultPollInterval.String(),
		},
		Queue: QueueConfig{
			Size:   adapter.DefaultQueueSize,
			Policy: adapter.QueueBlock.String(),
		},
	}
}

// LoadConfig reads a YAML or TOML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the config and fills in transport dependent defaults.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportDiscord:
		if c.Discord.Token == "" || c.Discord.Channel == "" {
			return errors.New("discord transport needs a token and a channel")
		}
		if c.Codec == "" {
			c.Codec = codec.Base116.Name()
		}
	case TransportTelegram:
		if c.Telegram.Token == "" || c.Telegram.ReadGroup == "" {
			return errors.New("telegram transport needs a token and a read group")
		}
		if c.Telegram.WriteGroup == "" {
			c.Telegram.WriteGroup = c.Telegram.ReadGroup
		}
		if c.Codec == "" {
			c.Codec = codec.Base85.Name()
		}
		if _, err := c.PollInterval(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	cdc, err := codec.Lookup(c.Codec)
	if err != nil {
		return err
	}

	if _, err := c.Prefix(); err != nil {
		return err
	}
	if _, err := c.DestinationAddr(); err != nil {
		return err
	}
	if _, err := ParseFraming(c.Framing); err != nil {
		return err
	}
	if _, err := adapter.ParseQueuePolicy(c.Queue.Policy); err != nil {
		return err
	}

	if c.Transport == TransportTelegram {
		if err := c.validateSlots(cdc); err != nil {
			return err
		}
	}

	return c.validateMTU(cdc)
}

// validateSlots sizes the telegram slots so their encoded text stays within
// what the api accepts for titles and descriptions.
func (c *Config) validateSlots(cdc codec.Codec) error {
	t := &c.Telegram
	if t.PrimaryLimit == 0 {
		t.PrimaryLimit = codec.Capacity(cdc, telegram.MaxTitleLen)
	}
	if t.SecondaryLimit == 0 {
		t.SecondaryLimit = codec.Capacity(cdc, telegram.MaxDescriptionLen)
	}

	if t.PrimaryLimit <= header.SeqLen {
		return fmt.Errorf("primary limit %d leaves no room for a packet", t.PrimaryLimit)
	}
	if n := cdc.EncodedLen(t.PrimaryLimit); n > telegram.MaxTitleLen {
		return fmt.Errorf("primary limit %d encodes to %d characters with %s, titles take at most %d",
			t.PrimaryLimit, n, cdc.Name(), telegram.MaxTitleLen)
	}
	if t.SecondaryLimit > 0 {
		if n := cdc.EncodedLen(t.SecondaryLimit); n > telegram.MaxDescriptionLen {
			return fmt.Errorf("secondary limit %d encodes to %d characters with %s, descriptions take at most %d",
				t.SecondaryLimit, n, cdc.Name(), telegram.MaxDescriptionLen)
		}
	}
	return nil
}

// validateMTU makes sure a full sized packet always fits the transport, so
// the size limits of the adapters are never hit in normal operation.
func (c *Config) validateMTU(cdc codec.Codec) error {
	limit := MaxMTU
	switch c.Transport {
	case TransportDiscord:
		limit = min(limit, codec.Capacity(cdc, discord.MaxMessageLen))
	case TransportTelegram:
		limit = min(limit, c.SlotLimits().MaxPacket())
	}

	if c.MTU == 0 {
		c.MTU = min(DefaultMTU, limit)
	}
	if c.MTU < 68 || c.MTU > limit {
		return fmt.Errorf("mtu %d out of range for %s with %s, must be between 68 and %d",
			c.MTU, c.Transport, cdc.Name(), limit)
	}
	return nil
}

func (c *Config) Prefix() (netip.Prefix, error) {
	addr, err := netip.ParseAddr(c.Address)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("error parsing address: %w", err)
	}
	prefix, err := addr.Prefix(c.PrefixLen)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("error parsing prefix length: %w", err)
	}
	return netip.PrefixFrom(addr, prefix.Bits()), nil
}

func (c *Config) DestinationAddr() (netip.Addr, error) {
	dest, err := netip.ParseAddr(c.Destination)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing destination address: %w", err)
	}

	prefix, err := c.Prefix()
	if err != nil {
		return netip.Addr{}, err
	}
	if dest == prefix.Addr() {
		return netip.Addr{}, errors.New("destination must differ from the local address")
	}
	if dest.Is4() && prefix.Bits() < 31 && prefix.Masked().Contains(dest) && dest == netipx.PrefixLastIP(prefix) {
		return netip.Addr{}, fmt.Errorf("destination %s is the broadcast address of %s", dest, prefix.Masked())
	}
	return dest, nil
}

func (c *Config) PollInterval() (time.Duration, error) {
	if c.Telegram.PollInterval == "" {
		return adapter.DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(c.Telegram.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("error parsing poll interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll interval must be positive, got %s", d)
	}
	return d, nil
}

func (c *Config) SlotLimits() adapter.SlotLimits {
	return adapter.SlotLimits{
		Primary:   c.Telegram.PrimaryLimit,
		Secondary: c.Telegram.SecondaryLimit,
	}
}
