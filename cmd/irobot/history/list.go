package historycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/cliui"
)

const listLongDesc string = `List locally cached conversations, most recently updated first.

Examples:
  irobot history list`

func (c *historyCommander) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached conversations",
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			driver, err := c.open(cmd.Context(), configDir)
			if err != nil {
				return err
			}
			defer driver.Close()

			conversations, err := driver.Conversations(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}

			if len(conversations) == 0 {
				fmt.Printf("\n  %s No cached conversations yet. Start one with 'irobot chat'.\n\n",
					cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Println()
			for _, conv := range conversations {
				title := conv.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("  %s  %s %s\n",
					cliui.KeyStyle.Render(conv.ID),
					cliui.NameStyle.Render(cliui.Truncate(title, 48)),
					cliui.DimStyle.Render(fmt.Sprintf("(%d turns, %s)",
						conv.Turns, conv.UpdatedAt.Format("2006-01-02 15:04"))),
				)
			}
			fmt.Println()

			return nil
		},
	}

	c.addDriverFlags(cmd)

	return cmd
}
