package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/caldog20/chattun/adapter"
)

func create(channel, author, content string) *discordgo.MessageCreate {
	m := &discordgo.Message{ChannelID: channel, Content: content}
	if author != "" {
		m.Author = &discordgo.User{ID: author}
	}
	return &discordgo.MessageCreate{Message: m}
}

func TestToMessage(t *testing.T) {
	msg, ok := toMessage("100", create("100", "42", "abc"))
	assert.True(t, ok)
	assert.Equal(t, adapter.Message{Author: "42", Content: "abc"}, msg)

	_, ok = toMessage("100", create("200", "42", "abc"))
	assert.False(t, ok, "other channel")

	_, ok = toMessage("100", create("100", "", "abc"))
	assert.False(t, ok, "no author")

	_, ok = toMessage("100", &discordgo.MessageCreate{})
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	p, err := New("token", "100")
	assert.NoError(t, err)
	assert.Equal(t, "", p.Identity())
	assert.Equal(t, MaxMessageLen, p.MaxMessageLen())
	assert.True(t, p.session.SyncEvents)
	assert.False(t, p.session.ShouldReconnectOnError)
	assert.Equal(t, "Bot token", p.session.Token)
	assert.Equal(t, discordgo.IntentGuildMessages|discordgo.IntentMessageContent, p.session.Identify.Intents,
		"only guild channel messages are read")
}
