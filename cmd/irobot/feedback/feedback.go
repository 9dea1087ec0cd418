// Package feedbackcmder provides commands for rating assistant answers
// and reviewing submitted feedback.
package feedbackcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
)

const feedbackLongDesc string = `Rate assistant answers and review submitted feedback.

Ratings are thumbs_up or thumbs_down (up/down and +1/-1 are accepted
and normalized).

Examples:
  irobot feedback submit <message-id> thumbs_up
  irobot feedback submit <message-id> down --comment "wrong policy cited"
  irobot feedback list
  irobot feedback summary`

const feedbackShortDesc string = "Rate assistant answers"

type feedbackCommander struct {
	server string
}

func NewFeedbackCmd() *cobra.Command {
	cmder := &feedbackCommander{}

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: feedbackShortDesc,
		Long:  feedbackLongDesc,
	}

	cmd.AddCommand(cmder.newSubmitCmd())
	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newSummaryCmd())

	return cmd
}

func (c *feedbackCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagServer})
	c.server = v.GetString("server.base_url")

	return nil
}

func (c *feedbackCommander) client(configDir string) (*api.Client, error) {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	return api.NewClient(c.server, api.WithTokenSource(credentials.DefaultSource(mgr))), nil
}

func (c *feedbackCommander) newSubmitCmd() *cobra.Command {
	var comment string
	var conversationID string

	cmd := &cobra.Command{
		Use:   "submit <message-id> <rating>",
		Short: "Submit a rating for an assistant answer",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return c.runSubmit(cmd.Context(), configDir, args[0], args[1], comment, conversationID)
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "Optional free-form comment")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation the message belongs to")
	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *feedbackCommander) runSubmit(ctx context.Context, configDir, messageID, rawRating, comment, conversationID string) error {
	rating, err := api.ParseRating(rawRating)
	if err != nil {
		return err
	}

	client, err := c.client(configDir)
	if err != nil {
		return err
	}

	fb, err := client.SubmitFeedback(ctx, api.SubmitFeedbackRequest{
		ConversationID: conversationID,
		MessageID:      messageID,
		Rating:         rating,
		Comment:        comment,
	})
	if err != nil {
		return fmt.Errorf("submitting feedback: %w", err)
	}

	fmt.Printf("\n  %s Recorded %s for message %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(string(fb.Rating)),
		cliui.KeyStyle.Render(messageID),
	)

	return nil
}

func (c *feedbackCommander) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted feedback",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			client, err := c.client(configDir)
			if err != nil {
				return err
			}

			entries, err := client.ListFeedback(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing feedback: %w", err)
			}

			if len(entries) == 0 {
				fmt.Printf("\n  %s No feedback submitted yet.\n\n", cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Println()
			for _, fb := range entries {
				mark := cliui.SuccessMark
				if fb.Rating == api.RatingThumbsDown {
					mark = cliui.FailMark
				}
				line := fmt.Sprintf("  %s %s %s",
					mark,
					cliui.KeyStyle.Render(fb.MessageID),
					cliui.DimStyle.Render(fb.CreatedAt.Format("2006-01-02 15:04")),
				)
				if fb.Comment != "" {
					line += "  " + cliui.ValueStyle.Render(cliui.Truncate(fb.Comment, 48))
				}
				fmt.Println(line)
			}
			fmt.Println()

			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *feedbackCommander) newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the aggregate feedback breakdown",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			client, err := c.client(configDir)
			if err != nil {
				return err
			}

			summary, err := client.GetFeedbackSummary(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading feedback summary: %w", err)
			}

			fmt.Printf("\n  %s %d\n", cliui.KeyStyle.Render("Total:"), summary.Total)
			fmt.Printf("  %s %d\n", cliui.KeyStyle.Render("Up:   "), summary.ThumbsUp)
			fmt.Printf("  %s %d\n\n", cliui.KeyStyle.Render("Down: "), summary.ThumbsDown)

			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}
