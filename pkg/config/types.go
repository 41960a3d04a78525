package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent drift configuration stored as config.toml
// in the .drift/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Client     ClientConfig     `toml:"client"`
	Completion CompletionConfig `toml:"completion"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Drift      DriftConfig      `toml:"drift"`
	Journal    JournalConfig    `toml:"journal"`
}

// ServerConfig holds settings for "drift serve".
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running drift
// server (e.g. drift chat). Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// CompletionConfig selects the completion service that answers intents.
type CompletionConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider  string `toml:"provider,omitempty"`
	Target    string `toml:"target,omitempty"`
	Model     string `toml:"model,omitempty"`
	CacheSize int    `toml:"cache_size,omitempty"`
}

// DriftConfig holds the weighting applied when blending strict and
// progressive drift.
type DriftConfig struct {
	StrictFloor float64 `toml:"strict_floor,omitempty"`
	DecayRate   float64 `toml:"decay_rate,omitempty"`
}

// JournalConfig selects where turn and decision events are published.
type JournalConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Topic      string `toml:"topic,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"client.target": stringKey(func(c *Config) *string { return &c.Client.Target }),

	"completion.provider": stringKey(func(c *Config) *string { return &c.Completion.Provider }),
	"completion.target":   stringKey(func(c *Config) *string { return &c.Completion.Target }),
	"completion.model":    stringKey(func(c *Config) *string { return &c.Completion.Model }),
	"completion.api_key":  stringKey(func(c *Config) *string { return &c.Completion.APIKey }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.cache_size": intKey("embedding.cache_size", func(c *Config) *int { return &c.Embedding.CacheSize }),

	"drift.strict_floor": floatKey("drift.strict_floor", func(c *Config) *float64 { return &c.Drift.StrictFloor }),
	"drift.decay_rate":   floatKey("drift.decay_rate", func(c *Config) *float64 { return &c.Drift.DecayRate }),

	"journal.provider":    stringKey(func(c *Config) *string { return &c.Journal.Provider }),
	"journal.target":      stringKey(func(c *Config) *string { return &c.Journal.Target }),
	"journal.topic":       stringKey(func(c *Config) *string { return &c.Journal.Topic }),
	"journal.sqlite_path": stringKey(func(c *Config) *string { return &c.Journal.SQLitePath }),
}
