// Package configcmder provides the config command for managing persistent
// drift configuration stored in the .drift/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent drift configuration.

Configuration is stored as config.toml in the .drift/ directory and provides
default values for command flags. CLI flags and DRIFT_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, client.target,
  completion.provider, completion.target, completion.model, completion.api_key,
  embedding.provider, embedding.target, embedding.model, embedding.cache_size,
  drift.strict_floor, drift.decay_rate,
  journal.provider, journal.target, journal.topic, journal.sqlite_path

Use subcommands to get, set, or list configuration values:
  drift config set <key> <value>    Set a configuration value
  drift config get <key>            Get a configuration value
  drift config list                 List all configuration values

Examples:
  drift config set completion.model mistral
  drift config set drift.strict_floor 0.5
  drift config get journal.provider
  drift config list`

const configShortDesc string = "Manage persistent drift configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
