// Package initcmder provides the init command for initializing a local
// .irobot directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
)

const (
	dirName = ".irobot"
)

const initLongDesc string = `Initialize a new .irobot/ directory in the current working directory.

Creates a local .irobot/ directory that takes precedence over the default
~/.irobot/ directory for credentials, configuration, session state, and
the local conversation history database, then writes a config.toml with
default values.

This is useful for maintaining separate irobot state per project or directory.

Examples:
  irobot init`

const initShortDesc string = "Initialize a local .irobot/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return scaffoldConfig(dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .irobot directory: %w", err)
	}

	fmt.Printf("Initialized .irobot directory: %s\n", dir)
	return scaffoldConfig(dir)
}

// scaffoldConfig writes a default config.toml unless one already exists.
func scaffoldConfig(dir string) error {
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  %s config.toml already present, leaving it alone\n", cliui.DimStyle.Render("●"))
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}

	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("  %s Wrote default config.toml\n", cliui.SuccessMark)
	return nil
}
