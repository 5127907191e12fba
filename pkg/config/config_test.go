package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "danmuji.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, cfg.Connector.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Connector.HeartbeatInterval)
	assert.Equal(t, 256, cfg.Bus.SubscriberBuffer)
	assert.True(t, cfg.Plugins.GiftThanker.Enabled)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadFile(t *testing.T) {
	chdir(t, t.TempDir())

	path := writeConfig(t, `
connector:
  heartbeat_interval: 20s
  reconnect_delay: 1s
rooms:
  - room_id: 21452505
  - room_id: 5050
    user_id: 10086
kafka:
  brokers: ["localhost:9092"]
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Connector.HeartbeatInterval)
	assert.Equal(t, time.Second, cfg.Connector.ReconnectDelay)
	// 未覆盖的字段保留默认值
	assert.Equal(t, DefaultEndpoint, cfg.Connector.Endpoint)
	assert.Equal(t, []RoomConfig{{RoomID: 21452505}, {RoomID: 5050, UserID: 10086}}, cfg.Rooms)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "danmuji.events", cfg.Kafka.EventTopic)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvUserID, "42")
	t.Setenv(EnvOpenAIKey, "sk-test")
	t.Setenv(EnvBridgeSecret, "secret")

	path := writeConfig(t, `
rooms:
  - room_id: 1
  - room_id: 2
    user_id: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Rooms[0].UserID)
	assert.Equal(t, uint64(7), cfg.Rooms[1].UserID)
	assert.Equal(t, "sk-test", cfg.Plugins.Chatbot.APIKey)
	assert.Equal(t, "secret", cfg.Bridge.JWTSecret)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvAuthKey+"=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv(EnvAuthKey) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Connector.AuthKey)
}

func TestLoadInvalidUserID(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvUserID, "not-a-number")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Connector.Endpoint = ""
	cfg.Connector.HeartbeatInterval = 0
	cfg.Bus.SubscriberBuffer = 0
	cfg.Rooms = []RoomConfig{{RoomID: 0}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector.endpoint")
	assert.Contains(t, err.Error(), "heartbeat_interval")
	assert.Contains(t, err.Error(), "subscriber_buffer")
	assert.Contains(t, err.Error(), "rooms[0]")

	require.NoError(t, Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
