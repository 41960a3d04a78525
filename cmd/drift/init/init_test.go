package initcmder_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/drift/cmd/drift/init"
	"github.com/papercomputeco/drift/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origDir) })
	})

	loadConfig := func() *config.Config {
		var cfg config.Config
		_, err := toml.DecodeFile(filepath.Join(tmpDir, ".drift", "config.toml"), &cfg)
		Expect(err).NotTo(HaveOccurred())
		return &cfg
	}

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(GinkgoWriter)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates .drift with a default config.toml", func() {
		Expect(execute()).To(Succeed())

		Expect(filepath.Join(tmpDir, ".drift")).To(BeADirectory())
		Expect(loadConfig()).To(Equal(config.NewDefaultConfig()))
	})

	It("keeps an existing config.toml when no preset is given", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".drift"), 0o755)).To(Succeed())
		path := filepath.Join(tmpDir, ".drift", "config.toml")
		Expect(os.WriteFile(path, []byte("[server]\nlisten = \":9999\"\n"), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("[server]\nlisten = \":9999\"\n"))
	})

	It("overwrites the config with a built-in preset", func() {
		Expect(execute()).To(Succeed())
		Expect(execute("--preset", "openai")).To(Succeed())

		cfg := loadConfig()
		Expect(cfg.Completion.Provider).To(Equal("openai"))
		Expect(cfg.Completion.Target).To(Equal("https://api.openai.com"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
	})

	It("rejects unknown preset names without creating anything", func() {
		err := execute("--preset", "anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(filepath.Join(tmpDir, ".drift")).NotTo(BeAnExistingFile())
	})

	Describe("--preset with a remote URL", func() {
		It("fetches and writes the remote config.toml", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "[completion]\nmodel = \"mistral\"\n\n[journal]\nprovider = \"sqlite\"\n")
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(Succeed())

			cfg := loadConfig()
			Expect(cfg.Completion.Model).To(Equal("mistral"))
			Expect(cfg.Journal.Provider).To(Equal("sqlite"))
		})

		It("returns error for non-200 HTTP response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns error for invalid TOML", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("parsing")))
		})

		It("returns error for unreachable URL", func() {
			Expect(execute("--preset", "http://127.0.0.1:1")).To(MatchError(ContainSubstring("fetching remote config")))
		})
	})
})
