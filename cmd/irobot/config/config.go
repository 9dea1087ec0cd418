// Package configcmder provides the config command for managing persistent
// irobot configuration stored in the .irobot/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent irobot configuration.

Configuration is stored as config.toml in the .irobot/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values, and IROBOT_-prefixed environment variables take
precedence over the file.

Keys use dotted notation matching the TOML section structure:
  server.base_url,
  chat.max_message_length, chat.render_markdown,
  stream.heartbeat_seconds, stream.max_reconnect_attempts, stream.base_delay_ms,
  history.driver, history.sqlite_path, history.postgres_dsn,
  events.publisher, events.kafka_brokers, events.kafka_topic,
  demo.listen

Use subcommands to get, set, or list configuration values:
  irobot config set <key> <value>    Set a configuration value
  irobot config get <key>            Get a configuration value
  irobot config list                 List all configuration values

Examples:
  irobot config set server.base_url https://api.irobot.example
  irobot config set history.driver postgres
  irobot config get stream.heartbeat_seconds
  irobot config list`

const configShortDesc string = "Manage persistent irobot configuration"

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
