package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TALK_URL", "https://cloud.example.com")
	t.Setenv("TALK_USER", "bot")
	t.Setenv("TALK_PASSWORD", "secret")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 90*time.Second, cfg.TalkTimeout)
	assert.Equal(t, 256, cfg.RoomCacheSize)
	assert.False(t, cfg.RelayEnabled)
	assert.Empty(t, cfg.WatchRooms)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WATCH_ROOMS", "abc, def,,")
	t.Setenv("RELAY_ENABLED", "true")
	t.Setenv("ROOM_CACHE_TTL", "2m")
	t.Setenv("HISTORY_DEPTH", "notanumber")

	cfg := Load()
	assert.Equal(t, []string{"abc", "def"}, cfg.WatchRooms)
	assert.True(t, cfg.RelayEnabled)
	assert.Equal(t, 2*time.Minute, cfg.RoomCacheTTL)
	assert.Equal(t, 20, cfg.HistoryDepth)
}

func TestValidate(t *testing.T) {
	cfg := &Config{RoomCacheSize: 1, PollTimeout: 90 * time.Second}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TALK_URL")
	assert.Contains(t, err.Error(), "TALK_USER")
	assert.Contains(t, err.Error(), "POLL_TIMEOUT")
}

func TestValidate_TalkTimeoutBelowPoll(t *testing.T) {
	cfg := &Config{
		TalkURL:       "https://cloud.example.com",
		TalkUser:      "bot",
		TalkPassword:  "secret",
		RoomCacheSize: 1,
		TalkTimeout:   20 * time.Second,
		PollTimeout:   30 * time.Second,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TALK_TIMEOUT")
}
