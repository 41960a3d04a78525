package driftcmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	driftcmder "github.com/papercomputeco/drift/cmd/drift"
)

var _ = Describe("NewDriftCmd", func() {
	It("registers every subcommand", func() {
		cmd := driftcmder.NewDriftCmd()

		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "chat", "config", "init", "auth", "version"))
	})

	It("has the global flags", func() {
		cmd := driftcmder.NewDriftCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("prints the version", func() {
		var out bytes.Buffer
		cmd := driftcmder.NewDriftCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: "))
		Expect(out.String()).To(ContainSubstring("Built at: "))
	})

	It("binds serve flags over the config file", func() {
		dir := GinkgoT().TempDir()
		cmd := driftcmder.NewDriftCmd()
		serve, _, err := cmd.Find([]string{"serve"})
		Expect(err).NotTo(HaveOccurred())

		Expect(serve.Flags().Lookup("listen").DefValue).To(Equal(":8080"))
		Expect(serve.Flags().Lookup("strict-floor").DefValue).To(Equal("0.4"))
		Expect(serve.Flags().Lookup("journal-provider").DefValue).To(Equal("none"))

		// Failing the completer construction stops serve before it listens.
		cmd.SetArgs([]string{"serve", "--config-dir", dir, "--provider", "bogus"})
		cmd.SetOut(GinkgoWriter)
		cmd.SetErr(GinkgoWriter)
		Expect(cmd.Execute()).To(MatchError(ContainSubstring(`unknown provider type: "bogus"`)))
	})
})
