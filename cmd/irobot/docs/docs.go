// Package docscmder provides commands for listing documents and following
// their processing status over the push channel.
package docscmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
	"github.com/irobothq/irobot/pkg/notify"
	"github.com/irobothq/irobot/pkg/stream"
)

const docsLongDesc string = `List uploaded documents and follow their processing status.

"docs watch" subscribes to the per-document status stream and prints each
transition until the document reaches a terminal status (COMPLETED or
FAILED), then exits on its own.

Examples:
  irobot docs list
  irobot docs list --category <category-id>
  irobot docs status <document-id>
  irobot docs watch <document-id>`

const docsShortDesc string = "List documents and watch processing status"

type docsCommander struct {
	server        string
	heartbeat     uint
	maxReconnects uint
	baseDelay     uint
	debug         bool
}

func NewDocsCmd() *cobra.Command {
	cmder := &docsCommander{}

	cmd := &cobra.Command{
		Use:   "docs",
		Short: docsShortDesc,
		Long:  docsLongDesc,
	}

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newStatusCmd())
	cmd.AddCommand(cmder.newWatchCmd())

	return cmd
}

func (c *docsCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagServer,
		config.FlagHeartbeat,
		config.FlagMaxReconnects,
		config.FlagBaseDelay,
	})

	c.server = v.GetString("server.base_url")
	c.heartbeat = v.GetUint("stream.heartbeat_seconds")
	c.maxReconnects = v.GetUint("stream.max_reconnect_attempts")
	c.baseDelay = v.GetUint("stream.base_delay_ms")

	return nil
}

func (c *docsCommander) newListCmd() *cobra.Command {
	var categoryID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
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

			docs, err := client.ListDocuments(cmd.Context(), categoryID)
			if err != nil {
				return fmt.Errorf("listing documents: %w", err)
			}

			if len(docs) == 0 {
				fmt.Printf("\n  %s No documents found.\n\n", cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Println()
			for _, doc := range docs {
				fmt.Printf("  %s %s  %s %s\n",
					statusMark(doc.Status),
					cliui.KeyStyle.Render(doc.ID),
					cliui.NameStyle.Render(cliui.Truncate(doc.Name, 40)),
					cliui.DimStyle.Render(doc.Status),
				)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().StringVar(&categoryID, "category", "", "Only list documents in this category")
	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *docsCommander) newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show a document's current processing status",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			client, err := c.client(configDir)
			if err != nil {
				return err
			}

			doc, err := client.GetDocumentStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching document status: %w", err)
			}

			fmt.Printf("\n  %s %s  %s\n",
				statusMark(doc.Status),
				cliui.NameStyle.Render(doc.Name),
				cliui.ValueStyle.Render(doc.Status),
			)
			if doc.Error != "" {
				fmt.Printf("  %s %s\n", cliui.FailMark, doc.Error)
			}
			fmt.Println()

			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *docsCommander) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <document-id>",
		Short: "Follow a document until processing finishes",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return c.runWatch(cmd, configDir, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)
	config.AddUintFlag(cmd, config.Flags, config.FlagHeartbeat, &c.heartbeat)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxReconnects, &c.maxReconnects)
	config.AddUintFlag(cmd, config.Flags, config.FlagBaseDelay, &c.baseDelay)

	return cmd
}

func (c *docsCommander) runWatch(cmd *cobra.Command, configDir, documentID string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	policy := stream.DefaultPolicy()
	if c.maxReconnects > 0 {
		policy.MaxAttempts = int(c.maxReconnects)
	}
	if c.baseDelay > 0 {
		policy.BaseDelay = time.Duration(c.baseDelay) * time.Millisecond
	}

	watcher := notify.NewDocumentWatcher(c.server, documentID,
		notify.WithTokenSource(credentials.DefaultSource(mgr)),
		notify.WithHeartbeatTimeout(time.Duration(c.heartbeat)*time.Second),
		notify.WithPolicy(policy),
		notify.WithLogger(log),
	)

	watcher.OnStatus(func(p notify.DocumentStatusPayload) {
		fmt.Printf("  %s %s\n", statusMark(p.Status), cliui.ValueStyle.Render(p.Status))
		if p.Error != "" {
			fmt.Printf("    %s\n", cliui.DimStyle.Render(p.Error))
		}
	})

	fmt.Printf("\n  Watching document %s\n\n", cliui.KeyStyle.Render(documentID))

	if err := watcher.Watch(cmd.Context()); err != nil {
		return fmt.Errorf("opening document stream: %w", err)
	}
	defer watcher.Stop()

	select {
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case <-watcher.Done():
	}

	if err := watcher.Err(); err != nil {
		return fmt.Errorf("document stream failed: %w", err)
	}

	final := watcher.Status()
	fmt.Printf("\n  %s Document reached %s\n\n", statusMark(final), cliui.NameStyle.Render(final))

	return nil
}

func (c *docsCommander) client(configDir string) (*api.Client, error) {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	return api.NewClient(c.server, api.WithTokenSource(credentials.DefaultSource(mgr))), nil
}

func statusMark(status string) string {
	switch status {
	case api.DocumentStatusCompleted:
		return cliui.SuccessMark
	case api.DocumentStatusFailed:
		return cliui.FailMark
	default:
		return cliui.DimStyle.Render("●")
	}
}
