package historycmder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/history"
)

const showLongDesc string = `Show all turns of one cached conversation in chronological order.

Examples:
  irobot history show 4f0c2d1a-...`

func (c *historyCommander) newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show one cached conversation",
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			driver, err := c.open(cmd.Context(), configDir)
			if err != nil {
				return err
			}
			defer driver.Close()

			turns, err := driver.Turns(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, history.ErrNotFound) {
					fmt.Printf("\n  %s No cached conversation %s\n\n",
						cliui.DimStyle.Render("●"), args[0])
					return nil
				}
				return fmt.Errorf("loading conversation: %w", err)
			}

			fmt.Println()
			for _, turn := range turns {
				fmt.Printf("  %s %s\n",
					cliui.KeyStyle.Render("you>"), turn.Question)
				fmt.Printf("  %s %s\n",
					cliui.DimStyle.Render("assistant>"), turn.Answer)
				if len(turn.Sources) > 0 {
					fmt.Printf("  %s\n",
						cliui.DimStyle.Render("sources: "+strings.Join(turn.Sources, ", ")))
				}
				fmt.Println()
			}

			return nil
		},
	}

	c.addDriverFlags(cmd)

	return cmd
}
