package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldog20/chattun/node"
	"github.com/caldog20/chattun/pkg/codec"
)

func TestEncodeDecode(t *testing.T) {
	packet := []byte{0x45, 0, 0, 0x1c, 0xff, 0x80}

	for _, name := range codec.Names() {
		var encoded, decoded bytes.Buffer
		require.NoError(t, encode(bytes.NewReader(packet), &encoded, name))
		require.NoError(t, decode(&encoded, &decoded, name))
		assert.Equal(t, packet, decoded.Bytes(), name)
	}

	assert.Error(t, encode(strings.NewReader("x"), &bytes.Buffer{}, "rot13"))
	assert.Error(t, decode(strings.NewReader("~~"), &bytes.Buffer{}, "base116"))
}

func TestCapacity(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	capacity(&out)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"base116", "1714", "bytes", "323", "bytes"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"base64", "1500", "bytes", "281", "bytes"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"base85", "1600", "bytes", "302", "bytes"}, strings.Fields(lines[3]))
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chattun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport: telegram
address: 10.1.0.1
destination: 10.1.0.2
mtu: 300
telegram:
  token: "1:a"
  read_group: "-1"
`), 0o600))

	configPath = path
	defer func() { configPath = "" }()

	cmd := newRunTelegramCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--token", "2:b", "--nudge", "--primary-limit", "100"}))

	cfg, err := loadConfig(cmd.Flags(), node.TransportTelegram)
	require.NoError(t, err)

	assert.Equal(t, "2:b", cfg.Telegram.Token)
	assert.True(t, cfg.Telegram.Nudge)
	assert.Equal(t, 100, cfg.Telegram.PrimaryLimit)
	// Unset flags keep file values.
	assert.Equal(t, "-1", cfg.Telegram.ReadGroup)
	assert.Equal(t, 300, cfg.MTU)
	assert.Equal(t, "1s", cfg.Telegram.PollInterval)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cmd := newRunDiscordCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--token", "t", "--channel", "9", "--queue-size", "8"}))

	cfg, err := loadConfig(cmd.Flags(), node.TransportDiscord)
	require.NoError(t, err)

	assert.Equal(t, node.TransportDiscord, cfg.Transport)
	assert.Equal(t, "t", cfg.Discord.Token)
	assert.Equal(t, "", cfg.Telegram.Token)
	assert.Equal(t, "9", cfg.Discord.Channel)
	assert.Equal(t, 8, cfg.Queue.Size)
}

func TestServiceConfigRestartsOnFailure(t *testing.T) {
	cfg := serviceConfig("service", "run", "--config", "/etc/chattun.yaml")

	assert.Equal(t, serviceName, cfg.Name)
	assert.Equal(t, []string{"service", "run", "--config", "/etc/chattun.yaml"}, cfg.Arguments)
	assert.Equal(t, "on-failure", cfg.Option["Restart"])
	// A failed tunnel exits with status 1, which must count as a failure.
	_, ok := cfg.Option["SuccessExitStatus"]
	assert.False(t, ok)
}
