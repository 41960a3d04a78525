// Package driftcmder is the root drift command.
package driftcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/drift/cmd/drift/auth"
	chatcmder "github.com/papercomputeco/drift/cmd/drift/chat"
	configcmder "github.com/papercomputeco/drift/cmd/drift/config"
	initcmder "github.com/papercomputeco/drift/cmd/drift/init"
	servecmder "github.com/papercomputeco/drift/cmd/drift/serve"
	versioncmder "github.com/papercomputeco/drift/cmd/version"
)

const driftLongDesc string = `Drift measures how far a conversation with a language model wanders
from where it started.

Every answer is compared with the conversation anchor (strict drift) and
with the previous answer (progressive drift). The two are blended into a
hybrid score that is reported as stable, drifting or critical.

Run the server and talk to it:
  drift serve      Run the drift server
  drift chat       Interactive session against a running server
  drift init       Create a local .drift/ directory
  drift config     Manage persistent configuration
  drift auth       Store provider API keys`

const driftShortDesc string = "Drift - conversation drift tracking"

func NewDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "drift",
		Short:        driftShortDesc,
		Long:         driftLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.drift or ~/.drift)")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
