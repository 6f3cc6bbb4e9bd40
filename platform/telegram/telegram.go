package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/caldog20/chattun/adapter"
)

const (
	requestTimeout = 30 * time.Second

	// Character limits the Bot API enforces on setChatTitle and
	// setChatDescription.
	MaxTitleLen       = 128
	MaxDescriptionLen = 255
)

// Store keeps slots in group chats: the title is the primary slot and the
// description the secondary one. The bot must be an admin of every group.
type Store struct {
	bot    *tgbotapi.BotAPI
	logger *log.Entry
}

func New(token string) (*Store, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: requestTimeout})
}

// NewWithEndpoint talks to a custom Bot API server. endpoint is a format
// string taking the token and the method name.
func NewWithEndpoint(token, endpoint string, client *http.Client) (*Store, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("error connecting to bot api: %w", err)
	}

	logger := log.WithField("platform", "telegram")
	logger.Infof("authorized as @%s", bot.Self.UserName)

	return &Store{bot: bot, logger: logger}, nil
}

type group struct {
	id       int64
	username string
}

// parseGroup accepts a numeric chat id or a public @username.
func parseGroup(s string) (group, error) {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return group{id: id}, nil
	}
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return group{username: s}, nil
	}
	return group{}, fmt.Errorf("invalid group %q, want a chat id or @username", s)
}

func (s *Store) GetSlot(ctx context.Context, name string, slot adapter.Slot) (string, error) {
	g, err := parseGroup(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	chat, err := s.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: g.id, SuperGroupUsername: g.username},
	})
	if err != nil {
		return "", err
	}

	if slot == adapter.SlotSecondary {
		return chat.Description, nil
	}
	return chat.Title, nil
}

func (s *Store) SetSlot(ctx context.Context, name string, slot adapter.Slot, value string) error {
	g, err := parseGroup(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var config tgbotapi.Chattable
	if slot == adapter.SlotSecondary {
		config = tgbotapi.SetChatDescriptionConfig{ChatID: g.id, ChannelUsername: g.username, Description: value}
	} else {
		config = tgbotapi.SetChatTitleConfig{ChatID: g.id, ChannelUsername: g.username, Title: value}
	}

	_, err = s.bot.Request(config)
	if err != nil && notModified(err) {
		s.logger.Debugf("%s slot of %s unchanged", slot, name)
		return nil
	}
	return err
}

// notModified reports the error the api returns for a write of the value
// already stored.
func notModified(err error) bool {
	return strings.Contains(err.Error(), "is not modified")
}
