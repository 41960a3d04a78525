package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/drift/pkg/config"
	"github.com/papercomputeco/drift/pkg/drift"
)

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file and fills the gaps with defaults", func() {
			writeConfig(`version = 0

[completion]
provider = "openai"
model = "gpt-3.5-turbo-instruct"

[drift]
strict_floor = 0.5
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Completion.Provider).To(Equal("openai"))
			Expect(cfg.Completion.Model).To(Equal("gpt-3.5-turbo-instruct"))
			Expect(cfg.Drift.StrictFloor).To(Equal(0.5))

			defaults := config.NewDefaultConfig()
			Expect(cfg.Drift.DecayRate).To(Equal(defaults.Drift.DecayRate))
			Expect(cfg.Server.Listen).To(Equal(defaults.Server.Listen))
			Expect(cfg.Embedding).To(Equal(defaults.Embedding))
			Expect(cfg.Journal.Provider).To(Equal("none"))
		})

		It("loads all config sections", func() {
			writeConfig(`[server]
listen = ":9090"

[client]
target = "http://drift.local:9090"

[completion]
provider = "ollama"
target = "http://gpu:11434"
model = "mistral"
api_key = "secret"

[embedding]
provider = "ollama"
target = "http://gpu:11434"
model = "all-minilm"
cache_size = 64

[drift]
strict_floor = 0.3
decay_rate = 0.2

[journal]
provider = "kafka"
target = "k1:9092,k2:9092"
topic = "drift.audit"
sqlite_path = "/tmp/drift.db"
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Listen).To(Equal(":9090"))
			Expect(cfg.Client.Target).To(Equal("http://drift.local:9090"))
			Expect(cfg.Completion).To(Equal(config.CompletionConfig{
				Provider: "ollama",
				Target:   "http://gpu:11434",
				Model:    "mistral",
				APIKey:   "secret",
			}))
			Expect(cfg.Embedding.Model).To(Equal("all-minilm"))
			Expect(cfg.Embedding.CacheSize).To(Equal(64))
			Expect(cfg.Weights()).To(Equal(drift.Weights{Floor: 0.3, DecayRate: 0.2}))
			Expect(cfg.Journal).To(Equal(config.JournalConfig{
				Provider:   "kafka",
				Target:     "k1:9092,k2:9092",
				Topic:      "drift.audit",
				SQLitePath: "/tmp/drift.db",
			}))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(`[server`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig(`version = 7`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Server.Listen = ":7070"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`listen = ":7070"`))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("completion.model", "mistral")).To(Succeed())

			v, err := c.GetConfigValue("completion.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("mistral"))
		})

		It("sets numeric keys", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("embedding.cache_size", "32")).To(Succeed())
			Expect(c.SetConfigValue("drift.decay_rate", "0.25")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Embedding.CacheSize).To(Equal(32))
			Expect(cfg.Drift.DecayRate).To(Equal(0.25))
		})

		It("rejects unparseable numbers", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("embedding.cache_size", "lots")).To(MatchError(ContainSubstring("invalid value for embedding.cache_size")))
			Expect(c.SetConfigValue("embedding.cache_size", "-1")).To(MatchError(ContainSubstring("must not be negative")))
			Expect(c.SetConfigValue("drift.strict_floor", "high")).To(MatchError(ContainSubstring("invalid value for drift.strict_floor")))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("preserves existing values when setting a new key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("journal.provider", "sqlite")).To(Succeed())
			Expect(c.SetConfigValue("journal.sqlite_path", "/tmp/j.db")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Journal.Provider).To(Equal("sqlite"))
			Expect(cfg.Journal.SQLitePath).To(Equal("/tmp/j.db"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns defaults when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("drift.strict_floor")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("0.4"))

			v, err = c.GetConfigValue("embedding.cache_size")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("256"))
		})

		It("returns empty string for keys without a default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("completion.api_key")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nope")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(HaveLen(16))
		Expect(keys[0]).To(Equal("server.listen"))
		Expect(keys[len(keys)-1]).To(Equal("journal.sqlite_path"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
	})

	It("rejects unknown keys", func() {
		Expect(config.IsValidConfigKey("storage.sqlite_path")).To(BeFalse())
		Expect(config.IsValidConfigKey("")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("returns the ollama preset as the defaults", func() {
		cfg, err := config.PresetConfig("ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("points completions at openai and keeps local embeddings", func() {
		cfg, err := config.PresetConfig("OpenAI")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Completion.Provider).To(Equal("openai"))
		Expect(cfg.Completion.Target).To(Equal("https://api.openai.com"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("lists the preset names", func() {
		Expect(config.ValidPresetNames()).To(ConsistOf("ollama", "openai"))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(&config.Config{}))
	})

	It("rejects unsupported config version", func() {
		_, err := config.ParseConfigTOML([]byte("version = 2"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("returns fully-populated defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Server.Listen).To(Equal(":8080"))
		Expect(cfg.Client.Target).To(Equal("http://localhost:8080"))
		Expect(cfg.Completion.Provider).To(Equal("ollama"))
		Expect(cfg.Completion.Target).To(Equal("http://localhost:11434"))
		Expect(cfg.Completion.Model).To(Equal("llama3.1:8b"))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(cfg.Embedding.CacheSize).To(Equal(256))
		Expect(cfg.Weights()).To(Equal(drift.DefaultWeights()))
		Expect(cfg.Journal.Provider).To(Equal("none"))
		Expect(cfg.Journal.Topic).To(Equal("drift.events"))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[completion]
model = "mistral"

[drift]
decay_rate = 0.05
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Completion.Model).To(Equal("mistral"))
		Expect(cfg.Drift.DecayRate).To(Equal(0.05))
		Expect(cfg.Drift.StrictFloor).To(Equal(0.4))
	})

	It("env vars take precedence over config file values", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[server]
listen = ":7000"
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("DRIFT_SERVER_LISTEN", ":7001")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("server.listen")).To(Equal(":7001"))
	})
})

var _ = Describe("Flag registry", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("maps every flag onto a valid config key", func() {
		for key, f := range config.Flags {
			Expect(config.IsValidConfigKey(f.ViperKey)).To(BeTrue(), key)
		}
	})

	It("binds a set flag over the config file", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[server]
listen = ":5555"
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
		Expect(v.GetString("server.listen")).To(Equal(":7777"))
	})

	It("falls through to the config file when the flag is not set", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[drift]
strict_floor = 0.6
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var floor float64
		config.AddFloatFlag(cmd, config.Flags, config.FlagStrictFloor, &floor)

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagStrictFloor, "nonexistent"})
		Expect(v.GetFloat64("drift.strict_floor")).To(Equal(0.6))
	})

	It("takes flag defaults from NewDefaultConfig", func() {
		cmd := &cobra.Command{Use: "test"}
		var (
			target string
			size   int
			rate   float64
		)
		config.AddStringFlag(cmd, config.Flags, config.FlagClientTarget, &target)
		config.AddIntFlag(cmd, config.Flags, config.FlagEmbeddingCache, &size)
		config.AddFloatFlag(cmd, config.Flags, config.FlagDecayRate, &rate)

		f := cmd.Flags().Lookup("target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("t"))
		Expect(f.DefValue).To(Equal("http://localhost:8080"))

		Expect(size).To(Equal(256))
		Expect(rate).To(Equal(0.1))
	})

	It("ignores unknown registry keys", func() {
		cmd := &cobra.Command{Use: "test"}
		var s string
		config.AddStringFlag(cmd, config.Flags, "nope", &s)
		Expect(cmd.Flags().HasFlags()).To(BeFalse())
	})
})
