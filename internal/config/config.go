// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every runtime knob for the server. Values come from the
// environment, with .env files loaded by godotenv before parsing.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// Heartbeat pacing for connected clients. A client that misses
	// HeartbeatTimeoutMult consecutive intervals is considered dead.
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"15s"`
	HeartbeatTimeoutMult int           `env:"HEARTBEAT_TIMEOUT_MULT" envDefault:"3"`

	// DisconnectGrace is how long a dropped player's seat is held before
	// the room may act on the absence.
	DisconnectGrace        time.Duration `env:"DISCONNECT_GRACE" envDefault:"60s"`
	AutoSurrenderOnTimeout bool          `env:"AUTO_SURRENDER_ON_TIMEOUT" envDefault:"false"`

	// RoomIdleTimeout tears down rooms with no connected clients.
	RoomIdleTimeout time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"10m"`

	// LinePolicy picks the changing-line selection strategy for
	// divination and transformation effects: "uniform" or "conservative".
	LinePolicy string `env:"LINE_POLICY" envDefault:"conservative"`

	MaxPlayers int `env:"MAX_PLAYERS" envDefault:"4"`

	// Session signing keys. When both paths are set the server loads
	// the ed25519 pair from disk so guest tokens survive restarts;
	// otherwise a fresh pair is generated at startup.
	PrivateKeyPath string `env:"PRIVATE_KEY_PATH"`
	PublicKeyPath  string `env:"PUBLIC_KEY_PATH"`

	// DatabaseURL enables state persistence when set.
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisAddr enables the event feed publisher when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	FeedQueue     string `env:"FEED_QUEUE" envDefault:"zhouyi_events"`
}

// Load parses the process environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.HeartbeatTimeoutMult < 1 {
		return Config{}, fmt.Errorf("HEARTBEAT_TIMEOUT_MULT must be at least 1, got %d", cfg.HeartbeatTimeoutMult)
	}
	if cfg.MaxPlayers < 2 {
		return Config{}, fmt.Errorf("MAX_PLAYERS must be at least 2, got %d", cfg.MaxPlayers)
	}
	return cfg, nil
}
