package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent irobot configuration stored as config.toml
// in the .irobot/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Server  ServerConfig  `toml:"server"`
	Chat    ChatConfig    `toml:"chat"`
	Stream  StreamConfig  `toml:"stream"`
	History HistoryConfig `toml:"history"`
	Events  EventsConfig  `toml:"events"`
	Demo    DemoConfig    `toml:"demo"`
}

// ServerConfig holds the IroBot backend location.
type ServerConfig struct {
	// BaseURL is the scheme + host + port of the IroBot API,
	// e.g. "https://api.irobot.example" or "http://localhost:8098".
	BaseURL string `toml:"base_url,omitempty"`
}

// ChatConfig holds chat consumer settings.
type ChatConfig struct {
	// MaxMessageLength bounds outgoing chat messages. Longer messages are
	// rejected client-side before any connection is opened.
	MaxMessageLength int `toml:"max_message_length,omitempty"`

	// RenderMarkdown controls whether completed assistant answers are
	// rendered through glamour in plain (non-TUI) chat mode.
	RenderMarkdown bool `toml:"render_markdown,omitempty"`
}

// StreamConfig holds settings shared by all event-stream connections:
// chat generation and the notification channels.
type StreamConfig struct {
	// HeartbeatSeconds is the idle window after which a silent connection
	// is treated as failed.
	HeartbeatSeconds uint `toml:"heartbeat_seconds,omitempty"`

	// MaxReconnectAttempts is the retry budget per outage.
	MaxReconnectAttempts uint `toml:"max_reconnect_attempts,omitempty"`

	// BaseDelayMs is the delay before the first reconnection attempt.
	// Subsequent attempts back off from this value.
	BaseDelayMs uint `toml:"base_delay_ms,omitempty"`
}

// HistoryConfig holds the local conversation cache settings.
type HistoryConfig struct {
	// Driver selects the history backend: "sqlite", "postgres" or "inmemory".
	Driver string `toml:"driver,omitempty"`

	// SQLitePath is the history database file. Empty means
	// <dotdir>/history.db.
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// PostgresDSN is the connection string for the postgres driver.
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig holds the outbound event publisher settings.
type EventsConfig struct {
	// Publisher selects the backend: "nop" or "kafka".
	Publisher string `toml:"publisher,omitempty"`

	// KafkaBrokers is a comma-separated broker list for the kafka publisher.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`

	// KafkaTopic is the topic events are published to.
	KafkaTopic string `toml:"kafka_topic,omitempty"`
}

// DemoConfig holds settings for the bundled demo event server.
type DemoConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.base_url": {
		get: func(c *Config) string { return c.Server.BaseURL },
		set: func(c *Config, v string) error { c.Server.BaseURL = v; return nil },
	},
	"chat.max_message_length": {
		get: func(c *Config) string {
			if c.Chat.MaxMessageLength == 0 {
				return ""
			}
			return strconv.Itoa(c.Chat.MaxMessageLength)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid value for chat.max_message_length: %q", v)
			}
			c.Chat.MaxMessageLength = n
			return nil
		},
	},
	"chat.render_markdown": {
		get: func(c *Config) string { return strconv.FormatBool(c.Chat.RenderMarkdown) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.render_markdown: %w", err)
			}
			c.Chat.RenderMarkdown = b
			return nil
		},
	},
	"stream.heartbeat_seconds": {
		get: func(c *Config) string { return uintString(c.Stream.HeartbeatSeconds) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for stream.heartbeat_seconds: %w", err)
			}
			c.Stream.HeartbeatSeconds = uint(n)
			return nil
		},
	},
	"stream.max_reconnect_attempts": {
		get: func(c *Config) string { return uintString(c.Stream.MaxReconnectAttempts) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for stream.max_reconnect_attempts: %w", err)
			}
			c.Stream.MaxReconnectAttempts = uint(n)
			return nil
		},
	},
	"stream.base_delay_ms": {
		get: func(c *Config) string { return uintString(c.Stream.BaseDelayMs) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for stream.base_delay_ms: %w", err)
			}
			c.Stream.BaseDelayMs = uint(n)
			return nil
		},
	},
	"history.driver": {
		get: func(c *Config) string { return c.History.Driver },
		set: func(c *Config, v string) error { c.History.Driver = v; return nil },
	},
	"history.sqlite_path": {
		get: func(c *Config) string { return c.History.SQLitePath },
		set: func(c *Config, v string) error { c.History.SQLitePath = v; return nil },
	},
	"history.postgres_dsn": {
		get: func(c *Config) string { return c.History.PostgresDSN },
		set: func(c *Config, v string) error { c.History.PostgresDSN = v; return nil },
	},
	"events.publisher": {
		get: func(c *Config) string { return c.Events.Publisher },
		set: func(c *Config, v string) error { c.Events.Publisher = v; return nil },
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return c.Events.KafkaBrokers },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = v; return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"demo.listen": {
		get: func(c *Config) string { return c.Demo.Listen },
		set: func(c *Config, v string) error { c.Demo.Listen = v; return nil },
	},
}

func uintString(v uint) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(v), 10)
}
