package config

import (
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/validator"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v2"
)

const (
	cfgFile = "tictactoe/config.yaml"
	envFile = "TICTACTOE_CONFIG"
)

// ServerConfig configures the HTTP and websocket listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr" validate:"required"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"gt=0"`
}

// RedisConfig configures the event publisher. An empty address disables it.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel" validate:"required"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CollectorAddr string `yaml:"collector_addr" validate:"required_if=Enabled true"`
	Stdout        bool   `yaml:"stdout"`
	ServiceName   string `yaml:"service_name" validate:"required"`
}

// SessionConfig configures game sessions and their tokens.
type SessionConfig struct {
	Secret       string        `yaml:"secret" validate:"required,min=16"`
	TokenTTL     time.Duration `yaml:"token_ttl" validate:"gt=0"`
	AutoOpponent bool          `yaml:"auto_opponent"`
}

// LogConfig configures the global slog logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// ProfileConfig is one opponent tier as written in YAML.
type ProfileConfig struct {
	Name       string        `yaml:"name" validate:"required"`
	Difficulty string        `yaml:"difficulty" validate:"required,difficulty"`
	ThinkMin   time.Duration `yaml:"think_min" validate:"gte=0"`
	ThinkMax   time.Duration `yaml:"think_max" validate:"gtefield=ThinkMin"`
	ErrorRate  float64       `yaml:"error_rate" validate:"gte=0,lte=1"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Profiles  []ProfileConfig `yaml:"profiles,omitempty" validate:"dive"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			HeartbeatInterval: 10 * time.Second,
		},
		Redis: RedisConfig{
			Channel: "channel:events",
		},
		Telemetry: TelemetryConfig{
			CollectorAddr: "otel-collector:4317",
			ServiceName:   "tic-tac-toe",
		},
		Session: SessionConfig{
			Secret:       "change-me-in-production",
			TokenTTL:     72 * time.Hour,
			AutoOpponent: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the file named by TICTACTOE_CONFIG, or the first
// tictactoe/config.yaml found in the XDG config directories, on top of the
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv(envFile)
	if path == "" {
		if found, err := xdg.SearchConfigFile(cfgFile); err == nil {
			path = found
		}
	}
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
		slog.Debug("loaded config file", "config.path", path)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REDIS_CONNSTRING"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("OTEL_COLLECTOR_ADDR"); v != "" {
		cfg.Telemetry.CollectorAddr = v
		cfg.Telemetry.Enabled = true
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
}

// Validate checks struct tags and that the opponent tiers form a valid set.
func (c *Config) Validate() error {
	if err := validator.GetValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.OpponentProfiles(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// OpponentProfiles converts the configured tiers. With none configured the
// built-in tiers are used.
func (c *Config) OpponentProfiles() (*bot.Profiles, error) {
	if len(c.Profiles) == 0 {
		return bot.DefaultProfiles(), nil
	}
	list := make([]bot.Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		d, err := bot.ParseDifficulty(p.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		list = append(list, bot.Profile{
			Name:       p.Name,
			Difficulty: d,
			ThinkMin:   p.ThinkMin,
			ThinkMax:   p.ThinkMax,
			ErrorRate:  p.ErrorRate,
		})
	}
	return bot.NewProfiles(list...)
}

// SlogLevel maps the configured level name.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return slog.LevelInfo
	}
	return level
}

var ErrNoConfigDir = errors.New("no writable config directory")

// WriteDefault writes the defaults to the user's XDG config file and returns
// its path.
func WriteDefault() (string, error) {
	path, err := xdg.ConfigFile(cfgFile)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoConfigDir, err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return path, nil
}
