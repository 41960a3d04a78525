package authcmder_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/drift/cmd/drift/auth"
	"github.com/papercomputeco/drift/pkg/credentials"
)

var _ = Describe("auth command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	run := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "drift"}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(authcmder.NewAuthCmd())
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append(append([]string{"auth"}, args...), "--config-dir", tmpDir))
		return root.Execute()
	}

	storedKey := func(provider string) string {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		key, err := mgr.GetKey(provider)
		Expect(err).NotTo(HaveOccurred())
		return key
	}

	It("stores a piped key", func() {
		Expect(run("  sk-piped \n", "openai")).To(Succeed())
		Expect(storedKey("openai")).To(Equal("sk-piped"))
		Expect(out.String()).To(ContainSubstring("Stored"))
	})

	It("warns about keys that do not look like OpenAI keys", func() {
		Expect(run("abc\n", "OpenAI")).To(Succeed())
		Expect(storedKey("openai")).To(Equal("abc"))
		Expect(out.String()).To(ContainSubstring("does not look like"))
	})

	It("rejects empty input", func() {
		Expect(run("\n", "openai")).To(MatchError("API key cannot be empty"))
		Expect(run("", "openai")).To(MatchError("no input received on stdin"))
	})

	It("rejects unsupported providers", func() {
		Expect(run("sk-1\n", "ollama")).To(MatchError(ContainSubstring("unsupported provider")))
	})

	It("requires a provider", func() {
		Expect(run("")).To(MatchError(ContainSubstring("provider argument required")))
	})

	It("lists and removes stored keys", func() {
		Expect(run("", "--list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No stored credentials"))

		Expect(run("sk-1\n", "openai")).To(Succeed())
		out.Reset()
		Expect(run("", "--list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("OPENAI_API_KEY"))

		Expect(run("", "--remove", "openai")).To(Succeed())
		Expect(storedKey("openai")).To(BeEmpty())
	})
})
