package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type ChannelConfig struct {
	Transport         string        `mapstructure:"transport"`
	URL               string        `mapstructure:"url"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

type NotifyConfig struct {
	DisplayDuration time.Duration `mapstructure:"display_duration"`
}

type Config struct {
	APIBaseURL   string        `mapstructure:"api_base_url"`
	SessionFile  string        `mapstructure:"session_file"`
	HistoryDir   string        `mapstructure:"history_dir"`
	SensorWindow int           `mapstructure:"sensor_window"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	Channel      ChannelConfig `mapstructure:"channel"`
	Notify       NotifyConfig  `mapstructure:"notify"`
}

// Load reads the configuration from a YAML file and returns a Config
// instance. A missing file is fine; every key has a fallback default.
func Load() (*Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.AddConfigPath(defaultDir())
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills every unset field with its fallback value.
func (c *Config) ApplyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "http://localhost:5000"
	}
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join(defaultDir(), "session.json")
	}
	if c.HistoryDir == "" {
		c.HistoryDir = filepath.Join(defaultDir(), "history")
	}
	if c.SensorWindow <= 0 {
		c.SensorWindow = 50
	}
	if c.Channel.Transport == "" {
		c.Channel.Transport = "websocket"
	}
	if c.Channel.URL == "" {
		c.Channel.URL = "ws://localhost:5000/ws"
	}
	if c.Channel.ReconnectAttempts <= 0 {
		c.Channel.ReconnectAttempts = 5
	}
	if c.Channel.ReconnectDelay <= 0 {
		c.Channel.ReconnectDelay = time.Second
	}
	if c.Notify.DisplayDuration <= 0 {
		c.Notify.DisplayDuration = 12 * time.Second
	}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".machwatch")
}
