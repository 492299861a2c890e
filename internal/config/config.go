package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StreamPath is appended to the stream base address.
const StreamPath = "/ws/evomap"

type Config struct {
	Stream   StreamConfig   `yaml:"stream"`
	Activity ActivityConfig `yaml:"activity"`
	NATS     NATSConfig     `yaml:"nats"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type StreamConfig struct {
	URL              string        `yaml:"url"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type ActivityConfig struct {
	LogCapacity int `yaml:"log_capacity"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Endpoint returns the full event stream URL.
func (c StreamConfig) Endpoint() string {
	return strings.TrimRight(c.URL, "/") + StreamPath
}

func defaults() Config {
	return Config{
		Stream: StreamConfig{
			URL:              "ws://localhost:8000",
			ReconnectDelay:   3 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Activity: ActivityConfig{
			LogCapacity: 80,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("EVOMAP_CONFIG")
	if path == "" {
		path = "config/evomap.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EVOMAP_WS_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := os.Getenv("EVOMAP_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.ReconnectDelay = d
		}
	}
	if v := os.Getenv("EVOMAP_LOG_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Activity.LogCapacity = n
		}
	}
	if v := os.Getenv("EVOMAP_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("EVOMAP_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("EVOMAP_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("EVOMAP_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Validate checks the values the sync core cannot run without.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Stream.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("stream.url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("stream.url: scheme must be ws or wss, got %q", u.Scheme))
	}
	if c.Stream.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("stream.reconnect_delay must be positive, got %v", c.Stream.ReconnectDelay))
	}
	if c.Activity.LogCapacity <= 0 {
		errs = append(errs, fmt.Errorf("activity.log_capacity must be positive, got %d", c.Activity.LogCapacity))
	}

	return errors.Join(errs...)
}
