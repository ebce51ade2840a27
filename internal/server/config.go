package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
	Mongo  *MongoConfig   `hcl:"mongo,block"`
	Redis  *RedisConfig   `hcl:"redis,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings tunes the room engines.
type GameSettings struct {
	TurnTimeoutSeconds int   `hcl:"turn_timeout_seconds,optional"`
	BotDelayMinMs      int   `hcl:"bot_delay_min_ms,optional"`
	BotDelayMaxMs      int   `hcl:"bot_delay_max_ms,optional"`
	Seed               int64 `hcl:"seed,optional"`
}

// MongoConfig points at the profile database. Absent block means the
// in-memory store.
type MongoConfig struct {
	URI      string `hcl:"uri"`
	Database string `hcl:"database,optional"`
}

// RedisConfig points at the rankings leaderboard. Optional.
type RedisConfig struct {
	Addr     string `hcl:"addr"`
	Password string `hcl:"password,optional"`
	DB       int    `hcl:"db,optional"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			TurnTimeoutSeconds: 30,
			BotDelayMinMs:      1000,
			BotDelayMaxMs:      2000,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.TurnTimeoutSeconds == 0 {
		config.Game.TurnTimeoutSeconds = defaults.Game.TurnTimeoutSeconds
	}
	if config.Game.BotDelayMinMs == 0 {
		config.Game.BotDelayMinMs = defaults.Game.BotDelayMinMs
	}
	if config.Game.BotDelayMaxMs == 0 {
		config.Game.BotDelayMaxMs = defaults.Game.BotDelayMaxMs
	}
	if config.Mongo != nil && config.Mongo.Database == "" {
		config.Mongo.Database = "babanuki"
	}

	return &config, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.TurnTimeoutSeconds < 1 {
		return fmt.Errorf("turn timeout must be positive, got %d", c.Game.TurnTimeoutSeconds)
	}
	if c.Game.BotDelayMinMs > c.Game.BotDelayMaxMs {
		return fmt.Errorf("bot delay min %dms exceeds max %dms", c.Game.BotDelayMinMs, c.Game.BotDelayMaxMs)
	}
	return nil
}

// ListenAddress returns the host:port to bind.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TurnTimeout returns the human idle timeout as a duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.Game.TurnTimeoutSeconds) * time.Second
}

// BotDelayMin returns the lower bot delay bound.
func (c *Config) BotDelayMin() time.Duration {
	return time.Duration(c.Game.BotDelayMinMs) * time.Millisecond
}

// BotDelayMax returns the upper bot delay bound.
func (c *Config) BotDelayMax() time.Duration {
	return time.Duration(c.Game.BotDelayMaxMs) * time.Millisecond
}
