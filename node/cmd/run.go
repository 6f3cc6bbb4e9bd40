package cmd

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/caldog20/chattun/node"
)

// Flag setters by flag name. Only flags given on the command line override
// the config file.
var (
	stringFlags = map[string]func(c *node.Config) *string{
		"address":      func(c *node.Config) *string { return &c.Address },
		"destination":  func(c *node.Config) *string { return &c.Destination },
		"device":       func(c *node.Config) *string { return &c.Device },
		"framing":      func(c *node.Config) *string { return &c.Framing },
		"codec":        func(c *node.Config) *string { return &c.Codec },
		"channel":      func(c *node.Config) *string { return &c.Discord.Channel },
		"queue-policy": func(c *node.Config) *string { return &c.Queue.Policy },
		"read-group":   func(c *node.Config) *string { return &c.Telegram.ReadGroup },
		"write-group":  func(c *node.Config) *string { return &c.Telegram.WriteGroup },
		"poll-interval": func(c *node.Config) *string {
			return &c.Telegram.PollInterval
		},
		"token": func(c *node.Config) *string {
			if c.Transport == node.TransportDiscord {
				return &c.Discord.Token
			}
			return &c.Telegram.Token
		},
	}
	intFlags = map[string]func(c *node.Config) *int{
		"prefix-len":      func(c *node.Config) *int { return &c.PrefixLen },
		"mtu":             func(c *node.Config) *int { return &c.MTU },
		"queue-size":      func(c *node.Config) *int { return &c.Queue.Size },
		"primary-limit":   func(c *node.Config) *int { return &c.Telegram.PrimaryLimit },
		"secondary-limit": func(c *node.Config) *int { return &c.Telegram.SecondaryLimit },
	}
	boolFlags = map[string]func(c *node.Config) *bool{
		"nudge": func(c *node.Config) *bool { return &c.Telegram.Nudge },
		"debug": func(c *node.Config) *bool { return &c.Debug },
	}
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "runs a tunnel in the foreground",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("please use a subcommand or use -h for help")
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("address", "", "local tunnel address")
	flags.String("destination", "", "remote tunnel address")
	flags.Int("prefix-len", node.DefaultPrefixLen, "prefix length of the tunnel network")
	flags.Int("mtu", 0, "device mtu, defaults to the largest size the transport carries up to 1300")
	flags.String("device", "", "use an existing tun device at this path instead of creating one")
	flags.String("framing", "none", "device framing: none or af (4 byte address family prefix)")
	flags.String("codec", "", "text codec, defaults to base116 on discord and base85 on telegram")

	cmd.AddCommand(newRunDiscordCommand())
	cmd.AddCommand(newRunTelegramCommand())
	return cmd
}

func newRunDiscordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discord",
		Short: "tunnel through messages of a discord channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTunnel(cmd, node.TransportDiscord)
		},
	}

	cmd.Flags().String("token", "", "bot token")
	cmd.Flags().String("channel", "", "channel id")
	cmd.Flags().Int("queue-size", 512, "inbound message queue size")
	cmd.Flags().String("queue-policy", "block", "what to do when the queue is full: block or drop")
	return cmd
}

func newRunTelegramCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "tunnel through titles of telegram groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTunnel(cmd, node.TransportTelegram)
		},
	}

	cmd.Flags().String("token", "", "bot token")
	cmd.Flags().String("read-group", "", "group the peer writes to, chat id or @username")
	cmd.Flags().String("write-group", "", "group this side writes to, defaults to the read group")
	cmd.Flags().String("poll-interval", "1s", "wait between polls when nothing new arrived")
	cmd.Flags().Bool("nudge", false, "publish the read sequence into the read group description")
	cmd.Flags().Int("primary-limit", 0, "title capacity in bytes, 0 fills the title limit")
	cmd.Flags().Int("secondary-limit", 0, "description capacity in bytes, 0 fills the description limit, negative disables it")
	return cmd
}

func runTunnel(cmd *cobra.Command, transport string) error {
	cfg, err := loadConfig(cmd.Flags(), transport)
	if err != nil {
		return err
	}
	if cfg.Debug {
		setupLogging(true)
	}

	n, err := node.NewNode(cfg)
	if err != nil {
		return err
	}

	if err := n.Start(cmd.Context()); err != nil {
		return err
	}

	err = n.Wait()
	if err == nil {
		log.Info("shut down")
	}
	return err
}

// loadConfig reads the config file if given and applies the flags that
// were set on top of it.
func loadConfig(flags *pflag.FlagSet, transport string) (*node.Config, error) {
	cfg := node.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = node.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	if transport != "" {
		if cfg.Transport != "" && cfg.Transport != transport {
			log.Warnf("config file transport %s overridden by command line", cfg.Transport)
		}
		cfg.Transport = transport
	}

	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err == nil {
			err = applyFlag(cfg, f)
		}
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFlag(cfg *node.Config, f *pflag.Flag) error {
	value := f.Value.String()

	if set, ok := stringFlags[f.Name]; ok {
		*set(cfg) = value
		return nil
	}
	if set, ok := intFlags[f.Name]; ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for --%s: %w", f.Name, err)
		}
		*set(cfg) = n
		return nil
	}
	if set, ok := boolFlags[f.Name]; ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for --%s: %w", f.Name, err)
		}
		*set(cfg) = b
		return nil
	}

	// Flags that are not part of the tunnel config, like --config.
	return nil
}
