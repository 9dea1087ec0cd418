package historycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/cliui"
)

const searchLongDesc string = `Search cached turns by question or answer text, case-insensitively.

Examples:
  irobot history search "refund policy"`

func (c *historyCommander) newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached turns",
		Long:  searchLongDesc,
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

			turns, err := driver.Search(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("searching history: %w", err)
			}

			if len(turns) == 0 {
				fmt.Printf("\n  %s No cached turns match %q\n\n",
					cliui.DimStyle.Render("●"), args[0])
				return nil
			}

			fmt.Println()
			for _, turn := range turns {
				fmt.Printf("  %s %s\n",
					cliui.KeyStyle.Render(turn.ConversationID),
					cliui.DimStyle.Render(turn.CreatedAt.Format("2006-01-02 15:04")),
				)
				fmt.Printf("    %s %s\n", cliui.NameStyle.Render("Q:"), cliui.Truncate(turn.Question, 72))
				fmt.Printf("    %s %s\n", cliui.DimStyle.Render("A:"), cliui.Truncate(turn.Answer, 72))
				fmt.Println()
			}

			return nil
		},
	}

	c.addDriverFlags(cmd)

	return cmd
}
