package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
}

type BusConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type Config struct {
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Advertise      bool          `mapstructure:"advertise"`
	OutboxSize     int           `mapstructure:"outbox_size"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	Store          StoreConfig   `mapstructure:"store"`
	Bus            BusConfig     `mapstructure:"bus"`
	Rate           RateConfig    `mapstructure:"rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8888)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("advertise", true)
	v.SetDefault("outbox_size", 256)
	v.SetDefault("ping_interval", 30*time.Second)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "sharedboard.db")
	v.SetDefault("store.url", "")
	v.SetDefault("bus.driver", "none")
	v.SetDefault("bus.url", "")
	v.SetDefault("rate.per_second", 30.0)
	v.SetDefault("rate.burst", 60)
}

// ReadConfig loads the configuration from defaults, the optional file at
// configPath and BOARD_* environment variables, in increasing priority.
// Nested keys map to variables like BOARD_STORE_DRIVER.
func ReadConfig(configPath string) (Config, error) {
	var cfg Config

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("board")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// MustReadConfig reads the configuration or panics if there's an error.
func MustReadConfig(configPath string) Config {
	cfg, err := ReadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return cfg
}
