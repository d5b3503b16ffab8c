package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	DBPath string `mapstructure:"db_path"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	RoomTTL         time.Duration `mapstructure:"room_ttl"`
	ChatRetention   time.Duration `mapstructure:"chat_retention"`
	ChatReplayLimit int           `mapstructure:"chat_replay_limit"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3001)
	v.SetDefault("db_path", "./data/syncpad.db")

	v.SetDefault("jwt_secret", "change-me-in-production")
	v.SetDefault("token_ttl", "168h")

	// Rooms expire after a day idle, chat after a week; both swept in
	// the background regardless of live participant count.
	v.SetDefault("room_ttl", "24h")
	v.SetDefault("chat_retention", "168h")
	v.SetDefault("chat_replay_limit", 100)
	v.SetDefault("sweep_interval", "5m")

	v.SetDefault("read_limit", 1048576)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 256)
}

// Default returns the built-in configuration without touching the
// filesystem. Tests use it to avoid config-file coupling.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}
