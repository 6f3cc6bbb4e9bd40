package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/caldog20/chattun/adapter"
)

// MaxMessageLen is the message length limit for bots in characters.
const MaxMessageLen = 2000

var ErrDisconnected = errors.New("gateway disconnected")

// Platform is a single Discord channel seen through a bot session.
type Platform struct {
	session  *discordgo.Session
	channel  string
	identity atomic.Value
	logger   *log.Entry
}

func New(token, channel string) (*Platform, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}

	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	// Handlers run on the gateway goroutine in arrival order, a blocked
	// handler holds back the next event.
	s.SyncEvents = true
	s.ShouldReconnectOnError = false
	s.StateEnabled = false

	p := &Platform{
		session: s,
		channel: channel,
		logger:  log.WithFields(log.Fields{"platform": "discord", "channel": channel}),
	}
	p.identity.Store("")

	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			p.identity.Store(r.User.ID)
			p.logger.Infof("connected as %s (%s)", r.User.Username, r.User.ID)
		}
	})

	return p, nil
}

// Identity is the bot user id, known once Subscribe connected.
func (p *Platform) Identity() string {
	return p.identity.Load().(string)
}

func (p *Platform) MaxMessageLen() int {
	return MaxMessageLen
}

func (p *Platform) Subscribe(ctx context.Context, deliver func(adapter.Message)) error {
	disconnected := make(chan struct{})
	var once sync.Once

	removeCreate := p.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if msg, ok := toMessage(p.channel, m); ok {
			deliver(msg)
		}
	})
	defer removeCreate()

	removeDisconnect := p.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		once.Do(func() { close(disconnected) })
	})
	defer removeDisconnect()

	if err := p.session.Open(); err != nil {
		return fmt.Errorf("error opening gateway: %w", err)
	}
	defer func() {
		if err := p.session.Close(); err != nil {
			p.logger.Debugf("error closing gateway: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-disconnected:
		return ErrDisconnected
	}
}

func (p *Platform) Publish(ctx context.Context, content string) error {
	_, err := p.session.ChannelMessageSend(p.channel, content, discordgo.WithContext(ctx))
	return err
}

func toMessage(channel string, m *discordgo.MessageCreate) (adapter.Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return adapter.Message{}, false
	}
	if m.ChannelID != channel {
		return adapter.Message{}, false
	}
	return adapter.Message{Author: m.Author.ID, Content: m.Content}, true
}
