// Package irobotcmder
package irobotcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/irobothq/irobot/cmd/irobot/auth"
	chatcmder "github.com/irobothq/irobot/cmd/irobot/chat"
	configcmder "github.com/irobothq/irobot/cmd/irobot/config"
	docscmder "github.com/irobothq/irobot/cmd/irobot/docs"
	feedbackcmder "github.com/irobothq/irobot/cmd/irobot/feedback"
	historycmder "github.com/irobothq/irobot/cmd/irobot/history"
	initcmder "github.com/irobothq/irobot/cmd/irobot/initcmd"
	mcpcmder "github.com/irobothq/irobot/cmd/irobot/mcp"
	notifycmder "github.com/irobothq/irobot/cmd/irobot/notify"
	servecmder "github.com/irobothq/irobot/cmd/irobot/serve"
	versioncmder "github.com/irobothq/irobot/cmd/version"
)

const irobotLongDesc string = `IroBot is a streaming client for the IroBot assistant.

Chat with the assistant, watch live notifications, track document
processing, and browse your local conversation history:
  irobot chat              Interactive chat session
  irobot notify            Live notification stream
  irobot docs watch <id>   Follow a document until processing finishes
  irobot history list      Browse locally cached conversations

State lives in the .irobot/ directory (local ./.irobot/ takes
precedence over ~/.irobot/). Run "irobot init" to scaffold one.`

const irobotShortDesc string = "IroBot - Assistant Streaming Client"

func NewIrobotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "irobot",
		Short: irobotShortDesc,
		Long:  irobotLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .irobot/ directory location")

	// Add subcommands
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(docscmder.NewDocsCmd())
	cmd.AddCommand(feedbackcmder.NewFeedbackCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(mcpcmder.NewMCPCmd())
	cmd.AddCommand(notifycmder.NewNotifyCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
