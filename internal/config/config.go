// Package config loads the server's TOML configuration file into an
// explicit struct threaded through constructors, generalizing the
// teacher's env-var AppConfig pattern to spec.md §6's file-based format.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/webuild-community/spacebot/internal/arena"
)

// GameConfig mirrors the [game_config] TOML table.
type GameConfig struct {
	BoundX float64 `toml:"bound_x"`
	BoundY float64 `toml:"bound_y"`
}

// AppConfig is the full, explicit configuration for one server process.
type AppConfig struct {
	ServerPort            int        `toml:"server_port"`
	DevMode               bool       `toml:"dev_mode"`
	APIKeys               []string   `toml:"api_keys"`
	GameConfig            GameConfig `toml:"game_config"`
	RedisURI              string     `toml:"redis_uri"`
	MaxWSConnectionsPerIP int        `toml:"max_ws_connections_per_ip"`
}

// Default returns a dev-mode config with no API key enforcement, matching
// the teacher's Default* helpers.
func Default() AppConfig {
	return AppConfig{
		ServerPort: 8080,
		DevMode:    true,
		GameConfig: GameConfig{
			BoundX: arena.DefaultWorldWidth,
			BoundY: arena.DefaultWorldHeight,
		},
		MaxWSConnectionsPerIP: 10,
	}
}

// Load reads path as TOML over the defaults, then overlays REDIS_URI and
// SERVER_PORT from the environment (and a local .env file, if present) the
// same way the teacher's *FromEnv helpers layer env vars over struct
// defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return AppConfig{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return AppConfig{}, fmt.Errorf("config: failed to stat %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if v := os.Getenv("REDIS_URI"); v != "" {
		cfg.RedisURI = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.ServerPort = port
		}
	}

	return cfg, nil
}

// APIKeySet returns the configured keys as a lookup set.
func (c AppConfig) APIKeySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.APIKeys))
	for _, k := range c.APIKeys {
		set[k] = struct{}{}
	}
	return set
}

// ToArenaConfig converts the TOML game table into an arena.GameConfig with
// the remaining arena defaults filled in.
func (c AppConfig) ToArenaConfig() arena.GameConfig {
	cfg := arena.DefaultGameConfig()
	if c.GameConfig.BoundX > 0 {
		cfg.BoundX = c.GameConfig.BoundX
	}
	if c.GameConfig.BoundY > 0 {
		cfg.BoundY = c.GameConfig.BoundY
	}
	return cfg
}
