package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ListenAddress())
	assert.Equal(t, 30*time.Second, cfg.TurnTimeout())
	assert.Equal(t, time.Second, cfg.BotDelayMin())
	assert.Equal(t, 2*time.Second, cfg.BotDelayMax())
	assert.Nil(t, cfg.Mongo)
	assert.Nil(t, cfg.Redis)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigParsesFile(t *testing.T) {
	content := `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
}

game {
  turn_timeout_seconds = 45
  bot_delay_min_ms     = 250
  bot_delay_max_ms     = 750
  seed                 = 12345
}

mongo {
  uri = "mongodb://localhost:27017"
}

redis {
  addr = "localhost:6379"
  db   = 2
}
`
	path := filepath.Join(t.TempDir(), "babanuki.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.TurnTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.BotDelayMin())
	assert.Equal(t, 750*time.Millisecond, cfg.BotDelayMax())
	assert.Equal(t, int64(12345), cfg.Game.Seed)

	require.NotNil(t, cfg.Mongo)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "babanuki", cfg.Mongo.Database)

	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Game.TurnTimeoutSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Game.BotDelayMinMs = 500
	cfg.Game.BotDelayMaxMs = 100
	assert.Error(t, cfg.Validate())
}
