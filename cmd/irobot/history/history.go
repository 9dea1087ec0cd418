// Package historycmder provides commands for browsing the local
// conversation history cache.
package historycmder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/dotdir"
	"github.com/irobothq/irobot/pkg/history"
	"github.com/irobothq/irobot/pkg/history/inmemory"
	"github.com/irobothq/irobot/pkg/history/postgres"
	"github.com/irobothq/irobot/pkg/history/sqlite"
)

const historyLongDesc string = `Browse the local conversation history cache.

Every completed chat turn is cached locally so past conversations can be
listed, shown, and searched without the backend. The cache backend is
selected with history.driver: sqlite (the default, stored as history.db
in the .irobot/ directory), postgres, or inmemory.

Examples:
  irobot history list
  irobot history show <conversation-id>
  irobot history search "refund policy"
  irobot history search --history-driver postgres "refund policy"`

const historyShortDesc string = "Browse the local conversation history cache"

type historyCommander struct {
	driver      string
	sqlitePath  string
	postgresDSN string
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newShowCmd())
	cmd.AddCommand(cmder.newSearchCmd())

	return cmd
}

func (c *historyCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagHistoryDriver,
		config.FlagSQLite,
		config.FlagPostgresDSN,
	})

	c.driver = v.GetString("history.driver")
	c.sqlitePath = v.GetString("history.sqlite_path")
	c.postgresDSN = v.GetString("history.postgres_dsn")

	return nil
}

func (c *historyCommander) addDriverFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryDriver, &c.driver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &c.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &c.postgresDSN)
}

func (c *historyCommander) open(ctx context.Context, configDir string) (history.Driver, error) {
	return OpenDriver(ctx, configDir, c.driver, c.sqlitePath, c.postgresDSN)
}

// OpenDriver builds a history driver from the configured backend name. The
// chat command shares it to record completed turns. The caller owns Close.
func OpenDriver(ctx context.Context, configDir, driver, sqlitePath, postgresDSN string) (history.Driver, error) {
	switch driver {
	case "", "sqlite":
		path := sqlitePath
		if path == "" {
			target, err := dotdir.NewManager().Target(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving .irobot directory: %w", err)
			}
			path = filepath.Join(target, "history.db")
		}
		return sqlite.NewDriver(path)
	case "postgres":
		if postgresDSN == "" {
			return nil, fmt.Errorf("history.postgres_dsn is required for the postgres driver")
		}
		return postgres.NewDriver(ctx, postgresDSN)
	case "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unknown history driver %q (expected sqlite, postgres or inmemory)", driver)
	}
}
