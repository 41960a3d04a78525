package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/drift/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DRIFT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DRIFT_SERVER_LISTEN, DRIFT_COMPLETION_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: DRIFT_SERVER_LISTEN, DRIFT_JOURNAL_SQLITE_PATH, etc.
	v.SetEnvPrefix("DRIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("client.target", d.Client.Target)

	v.SetDefault("completion.provider", d.Completion.Provider)
	v.SetDefault("completion.target", d.Completion.Target)
	v.SetDefault("completion.model", d.Completion.Model)
	v.SetDefault("completion.api_key", d.Completion.APIKey)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)

	v.SetDefault("drift.strict_floor", d.Drift.StrictFloor)
	v.SetDefault("drift.decay_rate", d.Drift.DecayRate)

	v.SetDefault("journal.provider", d.Journal.Provider)
	v.SetDefault("journal.target", d.Journal.Target)
	v.SetDefault("journal.topic", d.Journal.Topic)
	v.SetDefault("journal.sqlite_path", d.Journal.SQLitePath)
}

// FromViper resolves every known key through v, so flags, environment and
// config.toml values are all reflected in the returned Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Client: ClientConfig{
			Target: v.GetString("client.target"),
		},
		Completion: CompletionConfig{
			Provider: v.GetString("completion.provider"),
			Target:   v.GetString("completion.target"),
			Model:    v.GetString("completion.model"),
			APIKey:   v.GetString("completion.api_key"),
		},
		Embedding: EmbeddingConfig{
			Provider:  v.GetString("embedding.provider"),
			Target:    v.GetString("embedding.target"),
			Model:     v.GetString("embedding.model"),
			CacheSize: v.GetInt("embedding.cache_size"),
		},
		Drift: DriftConfig{
			StrictFloor: v.GetFloat64("drift.strict_floor"),
			DecayRate:   v.GetFloat64("drift.decay_rate"),
		},
		Journal: JournalConfig{
			Provider:   v.GetString("journal.provider"),
			Target:     v.GetString("journal.target"),
			Topic:      v.GetString("journal.topic"),
			SQLitePath: v.GetString("journal.sqlite_path"),
		},
	}
}
