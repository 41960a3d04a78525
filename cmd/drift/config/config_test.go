package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/drift/cmd/drift/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		root := &cobra.Command{Use: "drift"}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append(append([]string{"config"}, args...), "--config-dir", tmpDir))
		return root.Execute()
	}

	Describe("set subcommand", func() {
		It("writes config.toml", func() {
			Expect(run("set", "completion.provider", "openai")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`provider = "openai"`))
			Expect(out.String()).To(ContainSubstring("Set completion.provider = openai"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "proxy.upstream", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects invalid numbers", func() {
			Expect(run("set", "drift.decay_rate", "fast")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "completion.provider")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "completion.model", "mistral")).To(Succeed())
			out.Reset()

			Expect(run("get", "completion.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("mistral"))
		})

		It("shows defaults and unset keys", func() {
			Expect(run("get", "drift.strict_floor")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("0.4"))

			out.Reset()
			Expect(run("get", "completion.api_key")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "nope")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("set", "journal.provider", "sqlite")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Using config file: " + filepath.Join(tmpDir, "config.toml")))
			Expect(out.String()).To(MatchRegexp(`journal\.provider\s+= "sqlite"`))
			Expect(out.String()).To(MatchRegexp(`completion\.api_key\s+= <not set>`))
			Expect(out.String()).To(MatchRegexp(`server\.listen\s+= ":8080"`))
		})

		It("rejects arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
