// Package config loads server settings from config.yaml, ARENA_*
// environment overrides, and coded defaults, in that order of
// precedence (highest last).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Relay struct {
	Mode    string `mapstructure:"mode"`
	URL     string `mapstructure:"url"`
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type Phases struct {
	LobbyMs    int64 `mapstructure:"lobby_ms"`
	BattleMs   int64 `mapstructure:"battle_ms"`
	ShowdownMs int64 `mapstructure:"showdown_ms"`
}

type Store struct {
	FlushMs   int64 `mapstructure:"flush_ms"`
	BatchSize int   `mapstructure:"batch_size"`
}

type Obstacle struct {
	X      float64 `mapstructure:"x"`
	Z      float64 `mapstructure:"z"`
	Radius float64 `mapstructure:"radius"`
}

type Config struct {
	Listen       string     `mapstructure:"listen"`
	PublicURL    string     `mapstructure:"public_url"`
	DataDir      string     `mapstructure:"data_dir"`
	AdminToken   string     `mapstructure:"admin_token"`
	RoomName     string     `mapstructure:"room_name"`
	RoomCapacity int        `mapstructure:"room_capacity"`
	Relay        Relay      `mapstructure:"relay"`
	Phases       Phases     `mapstructure:"phases"`
	Store        Store      `mapstructure:"store"`
	Obstacles    []Obstacle `mapstructure:"obstacles"`
}

// Load reads configuration. An explicit path must exist; otherwise
// config.yaml is searched in the working directory and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", ":8080")
	v.SetDefault("public_url", "")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("admin_token", "")
	v.SetDefault("room_name", "arena")
	v.SetDefault("room_capacity", 100)
	v.SetDefault("relay.mode", "off")
	v.SetDefault("relay.url", "")
	v.SetDefault("relay.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("relay.subject", "arena.events")
	v.SetDefault("phases.lobby_ms", int64(48*60*60*1000))
	v.SetDefault("phases.battle_ms", int64(72*60*60*1000))
	v.SetDefault("phases.showdown_ms", int64(48*60*60*1000))
	v.SetDefault("store.flush_ms", 1000)
	v.SetDefault("store.batch_size", 256)

	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Relay.Mode {
	case "off", "http", "nats":
	default:
		return fmt.Errorf("config: relay.mode %q (want off, http or nats)", c.Relay.Mode)
	}
	if c.Relay.Mode == "http" && c.Relay.URL == "" {
		return errors.New("config: relay.mode=http needs relay.url")
	}
	if c.RoomCapacity <= 0 {
		return fmt.Errorf("config: room_capacity %d", c.RoomCapacity)
	}
	if c.Phases.LobbyMs <= 0 || c.Phases.BattleMs <= 0 || c.Phases.ShowdownMs <= 0 {
		return errors.New("config: phase durations must be positive")
	}
	return nil
}
