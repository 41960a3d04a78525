package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, AddFloatFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen          = "listen"
	FlagClientTarget    = "target"
	FlagProvider        = "provider"
	FlagUpstream        = "upstream"
	FlagModel           = "model"
	FlagAPIKey          = "api-key"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingCache  = "embedding-cache-size"
	FlagStrictFloor     = "strict-floor"
	FlagDecayRate       = "decay-rate"
	FlagJournalProvider = "journal-provider"
	FlagJournalTarget   = "journal-target"
	FlagJournalTopic    = "journal-topic"
	FlagJournalSQLite   = "journal-sqlite"
)

// Flags is the registry shared by every drift command.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the drift server to listen on",
	},
	FlagClientTarget: {
		Name:        "target",
		Shorthand:   "t",
		ViperKey:    "client.target",
		Description: "Drift server URL",
	},
	FlagProvider: {
		Name:        "provider",
		Shorthand:   "p",
		ViperKey:    "completion.provider",
		Description: "Completion provider type (ollama, openai)",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "completion.target",
		Description: "Completion provider URL",
	},
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "completion.model",
		Description: "Completion model name",
	},
	FlagAPIKey: {
		Name:        "api-key",
		ViperKey:    "completion.api_key",
		Description: "API key for the completion provider",
	},
	FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider type (ollama)",
	},
	FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingCache: {
		Name:        "embedding-cache-size",
		ViperKey:    "embedding.cache_size",
		Description: "Number of embeddings to keep in memory (0 disables the cache)",
	},
	FlagStrictFloor: {
		Name:        "strict-floor",
		ViperKey:    "drift.strict_floor",
		Description: "Minimum weight of strict drift",
	},
	FlagDecayRate: {
		Name:        "decay-rate",
		ViperKey:    "drift.decay_rate",
		Description: "Strict weight handed to progressive drift per iteration",
	},
	FlagJournalProvider: {
		Name:        "journal-provider",
		ViperKey:    "journal.provider",
		Description: "Event journal type (none, kafka, sqlite)",
	},
	FlagJournalTarget: {
		Name:        "journal-target",
		ViperKey:    "journal.target",
		Description: "Comma-separated Kafka brokers for the kafka journal",
	},
	FlagJournalTopic: {
		Name:        "journal-topic",
		ViperKey:    "journal.topic",
		Description: "Kafka topic for the kafka journal",
	},
	FlagJournalSQLite: {
		Name:        "journal-sqlite",
		ViperKey:    "journal.sqlite_path",
		Description: "Path to the SQLite database for the sqlite journal",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper instance holding only the values from NewDefaultConfig.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
